package p2p

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const MaxMessageLength = 16 * 1024 * 1024

type Decoder interface {
	Decode(io.Reader, *Message) error
}

// BinaryDecoder reads length-prefixed frames. It keeps the prefix as sent so
// callers can spot frames whose prefix disagrees with the expected shape.
type BinaryDecoder struct {
	br *bufio.Reader
}

func (d *BinaryDecoder) Decode(r io.Reader, msg *Message) error {
	// safe to cache: one decoder per connection
	if d.br == nil {
		if br, ok := r.(*bufio.Reader); ok {
			d.br = br
		} else {
			d.br = bufio.NewReaderSize(r, 64*1024)
		}
	}

	var length uint32
	if err := binary.Read(d.br, binary.BigEndian, &length); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return err
	}

	*msg = Message{Length: length}
	if length == 0 {
		return nil
	}

	if length > MaxMessageLength {
		return fmt.Errorf("message length %d exceeds maximum allowed %d", length, MaxMessageLength)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(d.br, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	msg.ID = MessageID(buf[0])
	msg.Payload = buf[1:]
	return nil
}
