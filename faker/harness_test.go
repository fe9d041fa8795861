package faker

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/fixture"
	"github.com/pixperk/pixfaker/journal"
	"github.com/pixperk/pixfaker/logger"
	"github.com/pixperk/pixfaker/p2p"
)

const readTimeout = 2 * time.Second

var clientHandshake = p2p.Handshake{
	InfoHash: [20]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
	PeerID:   [20]byte{'-', 'P', 'X', '0', '0', '0', '1', '-', 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l'},
}

func testFixture() *fixture.Bytes {
	return fixture.New(fixture.Generate(fixture.NumPieces*fixture.PieceLength), fixture.PieceLength)
}

func testSeeder(table fault.Table, bitProbability float64) *Seeder {
	return NewSeeder(SeederOpts{
		BitProbability: bitProbability,
		Policy:         fault.NewPolicy(table, fault.NewSeeded(7)),
		Fixture:        testFixture(),
		Stall:          10 * time.Millisecond,
		Logger:         logger.Discard(),
	})
}

type harness struct {
	sup   *Supervisor
	store *journal.MemoryStorage
	addr  string
	done  chan error
}

// serve runs h behind a supervisor on a loopback port until the test ends.
func serve(t *testing.T, h Handler) *harness {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hs := &harness{
		store: journal.NewMemoryStorage(0),
		addr:  ln.Addr().String(),
		done:  make(chan error, 1),
	}
	hs.sup = NewSupervisor(SupervisorOpts{
		Profile: "test",
		Handler: h,
		Journal: hs.store,
		Logger:  logger.Discard(),
	})
	go func() { hs.done <- hs.sup.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return hs
}

// sessions waits until n sessions have been journaled.
func (hs *harness) sessions(t *testing.T, n int) []*journal.Record {
	t.Helper()
	var recs []*journal.Record
	require.Eventually(t, func() bool {
		var err error
		recs, err = hs.store.Sessions("test", 0)
		return err == nil && len(recs) >= n
	}, readTimeout, 5*time.Millisecond)
	return recs
}

// stopped waits for the supervisor to give up and returns its error.
func (hs *harness) stopped(t *testing.T) error {
	t.Helper()
	select {
	case err := <-hs.done:
		return err
	case <-time.After(readTimeout):
		t.Fatal("supervisor still running")
		return nil
	}
}

func (hs *harness) requireRunning(t *testing.T) {
	t.Helper()
	select {
	case err := <-hs.done:
		t.Fatalf("supervisor stopped: %v", err)
	default:
	}
}

type client struct {
	t    *testing.T
	conn net.Conn
	dec  p2p.BinaryDecoder
}

func (hs *harness) dial(t *testing.T) *client {
	t.Helper()
	conn, err := net.Dial("tcp", hs.addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(frames ...[]byte) {
	c.t.Helper()
	for _, f := range frames {
		_, err := c.conn.Write(f)
		require.NoError(c.t, err)
	}
}

// handshake sends ours and returns the raw 68-byte reply.
func (c *client) handshake() []byte {
	c.t.Helper()
	c.send(clientHandshake.Bytes())
	reply := make([]byte, p2p.HandshakeLen)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, err := io.ReadFull(c.conn, reply)
	require.NoError(c.t, err)
	return reply
}

func (c *client) next() p2p.Message {
	c.t.Helper()
	var msg p2p.Message
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	require.NoError(c.t, c.dec.Decode(c.conn, &msg))
	return msg
}

// expectClosed requires the faker to close the connection without sending
// anything else.
func (c *client) expectClosed() {
	c.t.Helper()
	var msg p2p.Message
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	err := c.dec.Decode(c.conn, &msg)
	require.ErrorIs(c.t, err, io.EOF, "got %v instead", msg)
}

// expectSilence requires that nothing arrives for d and the connection stays
// open.
func (c *client) expectSilence(d time.Duration) {
	c.t.Helper()
	var msg p2p.Message
	c.conn.SetReadDeadline(time.Now().Add(d))
	err := c.dec.Decode(c.conn, &msg)
	var ne net.Error
	require.True(c.t, errors.As(err, &ne) && ne.Timeout(), "expected a timeout, got %v (%v)", err, msg)
}

// negotiate reads bitfield and unchoke and answers with our own.
func (c *client) negotiate() p2p.Bitfield {
	c.t.Helper()
	bf := c.next()
	require.Equal(c.t, p2p.MsgBitfield, bf.ID)
	unchoke := c.next()
	require.Equal(c.t, p2p.MsgUnchoke, unchoke.ID)
	c.send(p2p.Unchoke(), p2p.Interested())
	return p2p.Bitfield(bf.Payload)
}
