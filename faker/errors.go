package faker

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ViolationError means the client under test broke the protocol contract.
// It is fatal to the profile: a buggy client should crash the faker loudly
// rather than be tolerated.
type ViolationError struct {
	State  State
	Reason string
	Frame  []byte
}

func (e *ViolationError) Error() string {
	if len(e.Frame) == 0 {
		return fmt.Sprintf("protocol violation in %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("protocol violation in %s: %s (frame %x)", e.State, e.Reason, e.Frame)
}

func violation(state State, frame []byte, format string, args ...any) *ViolationError {
	return &ViolationError{State: state, Reason: fmt.Sprintf(format, args...), Frame: frame}
}

func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}

// transportKind labels a transport failure for logs.
func transportKind(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return "connection reset"
	case errors.Is(err, syscall.EPIPE):
		return "broken pipe"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "short read"
	case errors.Is(err, net.ErrClosed):
		return "closed"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	return "other"
}
