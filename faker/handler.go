package faker

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/p2p"
)

// DefaultPeerID is what every faker answers the handshake with.
var DefaultPeerID = [20]byte{'W', 'h', 'o', 'L', 'e', 't', 'T', 'h', 'e', 'D', 'o', 'g', 's', 'O', 'u', 't', '-', '-', '-', '-'}

// Handler serves one accepted connection to completion. It fills in rec and
// reports how the session ended. Returning journal.TermHung tells the
// supervisor to leave the connection open and untouched.
type Handler interface {
	Handle(peer p2p.Peer, rec *journal.Record) (journal.Termination, error)
}

type HandlerFunc func(peer p2p.Peer, rec *journal.Record) (journal.Termination, error)

func (f HandlerFunc) Handle(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
	return f(peer, rec)
}

// readHandshake reads the fixed 68-byte frame. A peer that closes first
// yields io.EOF.
func readHandshake(peer p2p.Peer, rec *journal.Record, log *slog.Logger) ([]byte, error) {
	hs, err := peer.ReadExact(p2p.HandshakeLen)
	if err != nil {
		return nil, err
	}

	if id, ok := p2p.PeerIDText(hs); ok {
		peer.SetID(id)
		rec.PeerID = id
		log.Info("handshake", "peer_id", id)
	} else {
		rec.PeerID = hex.EncodeToString(hs[p2p.PeerIDOffset:])
		log.Info("handshake", "peer_id", "<non-text identifier>")
	}
	return hs, nil
}

// expectControl reads one 5-byte control frame and requires it to equal want.
// A frame cut short by the peer closing is a violation like any other
// mismatch; only a close before the first byte is graceful.
func expectControl(peer p2p.Peer, state State, want []byte) error {
	frame, err := peer.ReadExact(p2p.ControlFrameLen)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return violation(state, frame, "truncated frame, expected %x", want)
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(frame, want) {
		return violation(state, frame, "expected %x", want)
	}
	return nil
}

func send(peer p2p.Peer, log *slog.Logger, frame []byte, what string) error {
	if err := peer.Send(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", what, err)
	}
	log.Debug("sent", "msg", what, "len", len(frame))
	return nil
}

// readRequest reads one 17-byte Request frame. A truncated frame is a
// violation.
func readRequest(peer p2p.Peer) ([]byte, error) {
	frame, err := peer.ReadExact(p2p.RequestFrameLen)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, violation(RequestLoop, frame, "truncated request after %d bytes", len(frame))
	}
	if err != nil && !isEOF(err) {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return frame, err
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
