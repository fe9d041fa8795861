package faker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/p2p"
)

type SupervisorOpts struct {
	Profile    string
	ListenAddr string
	Handler    Handler
	// Journal is optional; nil disables session recording.
	Journal journal.Storage
	Logger  *slog.Logger
}

// Supervisor owns one profile's port. It serves one connection at a time and
// survives every transport failure; only a protocol violation by the client
// stops it.
type Supervisor struct {
	SupervisorOpts

	mu        sync.Mutex
	listener  net.Listener
	abandoned []net.Conn
}

func NewSupervisor(opts SupervisorOpts) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("profile", opts.Profile)
	return &Supervisor{SupervisorOpts: opts}
}

func (s *Supervisor) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Abandoned returns how many hung sessions are holding a connection open.
func (s *Supervisor) Abandoned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.abandoned)
}

func (s *Supervisor) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.ListenAddr)
	if err != nil {
		return fmt.Errorf("profile %s: %w", s.Profile, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done. Cancelling closes the listener; a
// session in progress is not interrupted.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.Logger.Info("faker listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.Logger.Info("faker stopped")
				return nil
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > time.Second {
				backoff = time.Second
			}
			s.Logger.Warn("tcp accept error", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.handleConn(conn); err != nil {
			ln.Close()
			return err
		}
	}
}

func (s *Supervisor) handleConn(conn net.Conn) error {
	remote := conn.RemoteAddr().String()
	s.Logger.Info("new tcp connection", "remote", remote)

	rec := journal.NewRecord(s.Profile, remote)
	peer := p2p.NewTCPPeer(conn)
	term, err := s.Handler.Handle(peer, rec)
	switch {
	case IsViolation(err):
		term = journal.TermViolation
	case err != nil:
		term = journal.TermTransport
	}
	rec.Finish(term, err)
	s.record(rec)

	if term == journal.TermHung {
		// Keep a reference so the runtime never finalizes and closes it.
		s.mu.Lock()
		s.abandoned = append(s.abandoned, conn)
		s.mu.Unlock()
		s.Logger.Warn("abandoning connection", "remote", remote, "faults", rec.Faults)
		return nil
	}
	conn.Close()

	switch term {
	case journal.TermViolation:
		s.Logger.Error("client broke the protocol", "remote", remote, "error", err)
		return fmt.Errorf("profile %s: %w", s.Profile, err)
	case journal.TermTransport:
		s.Logger.Warn("dropping peer connection", "remote", remote, "kind", transportKind(err), "error", err)
	default:
		s.Logger.Info("session ended",
			"remote", remote,
			"peer_id", peer.ID(),
			"termination", term,
			"pieces", rec.Pieces,
			"faults", rec.Faults,
			"flags", rec.Flags,
			"duration", rec.Duration(),
		)
	}
	return nil
}

func (s *Supervisor) record(rec *journal.Record) {
	if s.Journal == nil {
		return
	}
	if err := s.Journal.Record(rec); err != nil {
		s.Logger.Warn("failed to journal session", "error", err)
	}
}
