package faker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/fixture"
	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/p2p"
)

type State uint8

const (
	AwaitHandshake State = iota
	HandshakeReplied
	BitfieldPhase
	UnchokePhase
	AwaitPeerUnchoke
	AwaitPeerInterested
	RequestLoop
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitHandshake:
		return "await-handshake"
	case HandshakeReplied:
		return "handshake-replied"
	case BitfieldPhase:
		return "bitfield"
	case UnchokePhase:
		return "unchoke"
	case AwaitPeerUnchoke:
		return "await-peer-unchoke"
	case AwaitPeerInterested:
		return "await-peer-interested"
	case RequestLoop:
		return "request-loop"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type SeederOpts struct {
	NumPieces int
	// BitProbability is the chance each piece is advertised in the initial
	// bitfield.
	BitProbability float64
	Policy         *fault.Policy
	Fixture        fixture.Source
	PeerID         [20]byte
	// Stall is the pause between a choke pulse and the unchoke that follows.
	Stall  time.Duration
	Logger *slog.Logger
}

// Seeder pretends to seed the fixture while deviating from the protocol
// wherever its fault policy says so.
type Seeder struct {
	SeederOpts
}

func NewSeeder(opts SeederOpts) *Seeder {
	if opts.NumPieces <= 0 {
		opts.NumPieces = fixture.NumPieces
	}
	if opts.Policy == nil {
		opts.Policy = fault.NewPolicy(fault.Reference(), fault.Global())
	}
	if opts.PeerID == [20]byte{} {
		opts.PeerID = DefaultPeerID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Seeder{SeederOpts: opts}
}

func (s *Seeder) Handle(peer p2p.Peer, rec *journal.Record) (journal.Termination, error) {
	sess := &session{
		Seeder:    s,
		peer:      peer,
		rec:       rec,
		peerState: p2p.NewPeerState(),
		log:       s.Logger.With("remote", peer.RemoteAddr().String()),
	}
	return sess.run()
}

type session struct {
	*Seeder
	peer      p2p.Peer
	rec       *journal.Record
	peerState *p2p.PeerState
	bitfield  p2p.Bitfield
	handshake []byte
	term      journal.Termination
	log       *slog.Logger
}

func (s *session) run() (journal.Termination, error) {
	defer func() {
		s.rec.Uploaded, s.rec.Pieces = s.peerState.Uploaded, s.peerState.PiecesServed
		s.rec.Flags = s.peerState.Flags()
	}()

	current := AwaitHandshake
	for current != Terminated {
		next, err := s.step(current)
		if err != nil {
			if IsViolation(err) {
				return journal.TermViolation, err
			}
			return journal.TermTransport, fmt.Errorf("%s: %w", current, err)
		}
		s.log.Debug("state", "from", current, "to", next)
		current = next
	}
	return s.term, nil
}

func (s *session) step(st State) (State, error) {
	switch st {
	case AwaitHandshake:
		return s.awaitHandshake()
	case HandshakeReplied:
		return s.replyHandshake()
	case BitfieldPhase:
		return s.sendBitfield()
	case UnchokePhase:
		return s.sendUnchoke()
	case AwaitPeerUnchoke:
		return s.awaitControl(AwaitPeerUnchoke, p2p.Unchoke(), AwaitPeerInterested)
	case AwaitPeerInterested:
		return s.awaitControl(AwaitPeerInterested, p2p.Interested(), RequestLoop)
	case RequestLoop:
		return s.serveRequest()
	}
	return Terminated, fmt.Errorf("no transition out of %s", st)
}

func (s *session) terminate(term journal.Termination) (State, error) {
	s.term = term
	return Terminated, nil
}

func (s *session) fires(g fault.Gate) bool {
	if !s.Policy.Fires(g) {
		return false
	}
	s.rec.Fault(g.String())
	s.log.Info("fault", "gate", g.String())
	return true
}

func (s *session) firesAfter(g fault.Gate, condition bool) bool {
	if !s.Policy.FiresAfter(g, condition) {
		return false
	}
	parent, _ := fault.Parent(g)
	s.rec.Fault(g.String())
	s.log.Info("fault", "gate", g.String(), "after", parent.String())
	return true
}

func (s *session) send(frame []byte, what string) error {
	return send(s.peer, s.log, frame, what)
}

func (s *session) awaitHandshake() (State, error) {
	if s.fires(fault.DropBeforeHandshake) {
		return s.terminate(journal.TermDropped)
	}

	hs, err := readHandshake(s.peer, s.rec, s.log)
	if isEOF(err) {
		return s.terminate(journal.TermEOF)
	}
	if err != nil {
		return Terminated, fmt.Errorf("failed to read handshake: %w", err)
	}
	s.handshake = hs
	return HandshakeReplied, nil
}

func (s *session) replyHandshake() (State, error) {
	reply := p2p.ReplyTo(s.handshake, s.PeerID)
	if s.fires(fault.CorruptInfoHash) {
		p2p.CorruptInfoHash(reply)
	}
	if err := s.send(reply, "handshake"); err != nil {
		return Terminated, err
	}

	if s.fires(fault.DropAfterHandshake) {
		return s.terminate(journal.TermDropped)
	}
	return BitfieldPhase, nil
}

func (s *session) sendBitfield() (State, error) {
	s.bitfield = p2p.FreshBitfield(s.NumPieces, s.BitProbability, s.Policy.Rand())
	s.rec.Bitfield = s.bitfield.Format(s.NumPieces)
	s.log.Info("bitfield", "bits", s.rec.Bitfield)

	if s.fires(fault.OmitBitfield) {
		return UnchokePhase, nil
	}
	if err := s.send(p2p.BitfieldMessage(s.bitfield), "bitfield"); err != nil {
		return Terminated, err
	}
	return UnchokePhase, nil
}

func (s *session) sendUnchoke() (State, error) {
	omitted := s.fires(fault.OmitUnchoke)
	if omitted {
		return AwaitPeerUnchoke, nil
	}

	frame, what := p2p.Unchoke(), "unchoke"
	if s.firesAfter(fault.MalformedUnchoke, !omitted) {
		frame, what = p2p.MalformedUnchoke(byte(s.Policy.Rand().IntN(256))), "malformed unchoke"
	}
	if err := s.send(frame, what); err != nil {
		return Terminated, err
	}
	s.peerState.AmChoking = false
	return AwaitPeerUnchoke, nil
}

// awaitControl expects the client's Unchoke then Interested. A client that
// hangs up here is fine: omitted or malformed negotiation should make a
// correct client give up.
func (s *session) awaitControl(st State, want []byte, next State) (State, error) {
	err := expectControl(s.peer, st, want)
	if isEOF(err) {
		s.log.Info("peer closed during negotiation", "state", st)
		return s.terminate(journal.TermEOF)
	}
	if err != nil {
		return Terminated, err
	}

	if st == AwaitPeerUnchoke {
		s.peerState.PeerChoking = false
	} else {
		s.peerState.PeerInterested = true
	}
	return next, nil
}

func (s *session) serveRequest() (State, error) {
	if s.fires(fault.DropMidLoop) {
		return s.terminate(journal.TermDropped)
	}

	frame, err := readRequest(s.peer)
	if isEOF(err) {
		s.log.Info("EOF")
		return s.terminate(journal.TermEOF)
	}
	if err != nil {
		return Terminated, err
	}

	req, err := p2p.ParseRequest(frame)
	if err != nil {
		return Terminated, violation(RequestLoop, frame, "%v", err)
	}
	if !s.bitfield.Has(req.Index) {
		return Terminated, violation(RequestLoop, frame, "requested piece %d not in bitfield %s", req.Index, s.bitfield.Format(s.NumPieces))
	}

	block := s.Fixture.Read(req.Index, req.Begin, req.Length)
	if s.fires(fault.CorruptBlock) {
		corruptBlock(block, s.Policy.Rand())
	}
	if err := s.send(p2p.Piece(req.Index, req.Begin, block), "piece"); err != nil {
		return Terminated, err
	}
	s.peerState.AddUploaded(int64(len(block)))
	s.log.Info("sent piece", "index", req.Index, "begin", req.Begin, "length", len(block), "digest", fmt.Sprintf("%016x", fixture.Digest(block)))

	if err := s.announceNewPiece(); err != nil {
		return Terminated, err
	}
	if err := s.sendSpurious(); err != nil {
		return Terminated, err
	}
	return s.pulseChoke()
}

// announceNewPiece pretends another piece just finished downloading.
func (s *session) announceNewPiece() error {
	if s.bitfield.Complete(s.NumPieces) {
		return nil
	}
	index, err := s.bitfield.Update(s.NumPieces, s.Policy.Rand())
	if err != nil {
		return err
	}
	s.rec.Bitfield = s.bitfield.Format(s.NumPieces)
	s.log.Info("now also have piece", "index", index)

	if s.fires(fault.MalformedHave) {
		return s.send(p2p.MalformedHave(index, byte(s.Policy.Rand().IntN(256))), "malformed have")
	}
	return s.send(p2p.Have(index), "have")
}

func (s *session) sendSpurious() error {
	spurious := []struct {
		gate  fault.Gate
		frame func() []byte
	}{
		{fault.SpuriousKeepAlive, p2p.KeepAlive},
		{fault.SpuriousInterested, p2p.Interested},
		{fault.SpuriousNotInterested, p2p.NotInterested},
	}
	for _, sp := range spurious {
		if s.fires(sp.gate) {
			if err := s.send(sp.frame(), sp.gate.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// pulseChoke briefly chokes the client. If the hang gate fires the session
// ends with the connection left open and never touched again, which a
// correct client has to detect with its own timeout.
func (s *session) pulseChoke() (State, error) {
	pulsed := s.fires(fault.ChokePulse)
	if !pulsed {
		return RequestLoop, nil
	}

	if err := s.send(p2p.Choke(), "choke"); err != nil {
		return Terminated, err
	}
	s.peerState.AmChoking = true

	if s.firesAfter(fault.Hang, pulsed) {
		s.log.Warn("hanging forever")
		return s.terminate(journal.TermHung)
	}

	time.Sleep(s.Stall)
	if err := s.send(p2p.Unchoke(), "unchoke"); err != nil {
		return Terminated, err
	}
	s.peerState.AmChoking = false
	return RequestLoop, nil
}

// corruptBlock replaces one uniformly chosen byte with a different,
// uniformly chosen value.
func corruptBlock(block []byte, r fault.Rand) {
	if len(block) == 0 {
		return
	}
	pos := r.IntN(len(block))
	block[pos] ^= byte(1 + r.IntN(255))
}
