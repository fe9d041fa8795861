package faker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/p2p"
)

// Stubs are the degenerate fakers: fixed scripts with no fault policy.
type Stubs struct {
	PeerID [20]byte
	Rand   fault.Rand
	Delay  time.Duration
	Logger *slog.Logger
}

func (st Stubs) logger(peer p2p.Peer) *slog.Logger {
	l := st.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("remote", peer.RemoteAddr().String())
}

// Echo10 reads up to 10 bytes and writes them back.
func (st Stubs) Echo10() Handler {
	return st.echo(0)
}

// Slow is Echo10 with a pause before answering.
func (st Stubs) Slow() Handler {
	return st.echo(st.Delay)
}

func (st Stubs) echo(delay time.Duration) Handler {
	return HandlerFunc(func(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
		buf := make([]byte, 10)
		n, err := peer.Read(buf)
		if n == 0 && isEOF(err) {
			return journal.TermEOF, nil
		}
		if n == 0 && err != nil {
			return journal.TermTransport, fmt.Errorf("failed to read: %w", err)
		}
		time.Sleep(delay)
		if err := send(peer, st.logger(peer), buf[:n], "echo"); err != nil {
			return journal.TermTransport, err
		}
		rec.Uploaded = int64(n)
		return journal.TermDone, nil
	})
}

// Handshake only answers the handshake.
func (st Stubs) Handshake() Handler {
	return HandlerFunc(func(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
		_, term, err := st.greet(peer, rec)
		if err != nil || term != "" {
			return term, err
		}
		return journal.TermDone, nil
	})
}

// Friendly handshakes, advertises pieces 5 and 7 (0x05) and unchokes.
func (st Stubs) Friendly() Handler {
	return st.negotiate(p2p.Bitfield{0x05}, false)
}

// Connect handshakes, advertises piece 0, unchokes and expects the client
// to unchoke and declare interest.
func (st Stubs) Connect() Handler {
	return st.negotiate(p2p.Bitfield{0x80}, true)
}

func (st Stubs) negotiate(bf p2p.Bitfield, expectReply bool) Handler {
	return HandlerFunc(func(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
		log, term, err := st.greet(peer, rec)
		if err != nil || term != "" {
			return term, err
		}
		rec.Bitfield = fmt.Sprintf("%08b", bf[0])

		if err := send(peer, log, p2p.BitfieldMessage(bf), "bitfield"); err != nil {
			return journal.TermTransport, err
		}
		if err := send(peer, log, p2p.Unchoke(), "unchoke"); err != nil {
			return journal.TermTransport, err
		}
		if !expectReply {
			return journal.TermDone, nil
		}
		return awaitNegotiation(peer)
	})
}

// ConnectPlusPiece negotiates like Friendly, then expects exactly
// Request(0, 0, 16384) and answers with a random block.
func (st Stubs) ConnectPlusPiece() Handler {
	return HandlerFunc(func(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
		log, term, err := st.greet(peer, rec)
		if err != nil || term != "" {
			return term, err
		}
		rec.Bitfield = "00000101"

		if err := send(peer, log, p2p.BitfieldMessage(p2p.Bitfield{0x05}), "bitfield"); err != nil {
			return journal.TermTransport, err
		}
		if err := send(peer, log, p2p.Unchoke(), "unchoke"); err != nil {
			return journal.TermTransport, err
		}

		frame, err := readRequest(peer)
		if isEOF(err) {
			return journal.TermEOF, nil
		}
		if IsViolation(err) {
			return journal.TermViolation, err
		}
		if err != nil {
			return journal.TermTransport, err
		}
		req, err := p2p.ParseRequest(frame)
		if err != nil {
			return journal.TermViolation, violation(RequestLoop, frame, "%v", err)
		}
		if req != (p2p.BlockRequest{Index: 0, Begin: 0, Length: 16384}) {
			return journal.TermViolation, violation(RequestLoop, frame, "expected request(0, 0, 16384), got %+v", req)
		}

		block := make([]byte, 1<<14)
		for i := range block {
			block[i] = byte(st.Rand.IntN(256))
		}
		if err := send(peer, log, p2p.Piece(0, 0, block), "piece"); err != nil {
			return journal.TermTransport, err
		}
		rec.Pieces, rec.Uploaded = 1, int64(len(block))
		return journal.TermDone, nil
	})
}

// greet reads the handshake and answers it. A non-empty termination means
// the session is already over.
func (st Stubs) greet(peer p2p.Peer, rec *journal.Record) (*slog.Logger, journal.Termination, error) {
	log := st.logger(peer)
	peerID := st.PeerID
	if peerID == [20]byte{} {
		peerID = DefaultPeerID
	}

	hs, err := readHandshake(peer, rec, log)
	if isEOF(err) {
		return log, journal.TermEOF, nil
	}
	if err != nil {
		return log, journal.TermTransport, fmt.Errorf("failed to read handshake: %w", err)
	}
	if err := send(peer, log, p2p.ReplyTo(hs, peerID), "handshake"); err != nil {
		return log, journal.TermTransport, err
	}
	return log, "", nil
}

func awaitNegotiation(peer p2p.Peer) (journal.Termination, error) {
	for _, exp := range []struct {
		state State
		frame []byte
	}{
		{AwaitPeerUnchoke, p2p.Unchoke()},
		{AwaitPeerInterested, p2p.Interested()},
	} {
		err := expectControl(peer, exp.state, exp.frame)
		if isEOF(err) {
			return journal.TermEOF, nil
		}
		if IsViolation(err) {
			return journal.TermViolation, err
		}
		if err != nil {
			return journal.TermTransport, err
		}
	}
	return journal.TermDone, nil
}
