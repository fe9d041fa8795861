package faker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/logger"
	"github.com/pixperk/pixfaker/p2p"
)

type seederFeature struct {
	seeder *Seeder
	cancel context.CancelFunc
	done   chan error
	conn   net.Conn
	dec    p2p.BinaryDecoder
}

func (f *seederFeature) aSeeder(advertising, faults string) error {
	bitProbability := 1.0
	if advertising == "only the last piece" {
		bitProbability = 0
	}

	table := fault.Quiet()
	if faults != "" {
		for _, name := range strings.Split(faults, ",") {
			g, err := fault.ParseGate(name)
			if err != nil {
				return err
			}
			table = table.With(g, 1)
		}
	}
	f.seeder = testSeeder(table, bitProbability)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	var ctx context.Context
	ctx, f.cancel = context.WithCancel(context.Background())
	f.done = make(chan error, 1)
	sup := NewSupervisor(SupervisorOpts{Profile: "feature", Handler: f.seeder, Logger: logger.Discard()})
	go func() { f.done <- sup.Serve(ctx, ln) }()

	f.conn, err = net.Dial("tcp", ln.Addr().String())
	return err
}

func (f *seederFeature) aSeederWithNoFaults(advertising string) error {
	return f.aSeeder(advertising, "")
}

func (f *seederFeature) next() (p2p.Message, error) {
	var msg p2p.Message
	f.conn.SetReadDeadline(time.Now().Add(readTimeout))
	err := f.dec.Decode(f.conn, &msg)
	return msg, err
}

func (f *seederFeature) theClientCompletesTheHandshake() error {
	if _, err := f.conn.Write(clientHandshake.Bytes()); err != nil {
		return err
	}
	reply := make([]byte, p2p.HandshakeLen)
	f.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, err := io.ReadFull(f.conn, reply)
	return err
}

func (f *seederFeature) theClientCompletesTheHandshakeAndNegotiation() error {
	if err := f.theClientCompletesTheHandshake(); err != nil {
		return err
	}
	bf, err := f.next()
	if err != nil {
		return err
	}
	if bf.ID != p2p.MsgBitfield || p2p.Bitfield(bf.Payload).Empty() {
		return fmt.Errorf("expected a non-empty bitfield, got %v", bf)
	}
	if err := f.theNextFrameIs("unchoke"); err != nil {
		return err
	}
	_, err = f.conn.Write(append(p2p.Unchoke(), p2p.Interested()...))
	return err
}

func (f *seederFeature) theClientRequests(index, begin, length int) error {
	_, err := f.conn.Write(p2p.Request(index, begin, length))
	return err
}

func (f *seederFeature) theClientReceivesPieceMatchingTheFixture(index, begin int) error {
	msg, err := f.next()
	if err != nil {
		return err
	}
	gotIndex, gotBegin, block, err := p2p.ParsePiece(msg)
	if err != nil {
		return err
	}
	if gotIndex != index || gotBegin != begin {
		return fmt.Errorf("got piece %d at %d", gotIndex, gotBegin)
	}
	if !bytes.Equal(block, f.seeder.Fixture.Read(index, begin, len(block))) {
		return errors.New("block does not match the fixture")
	}
	return nil
}

func (f *seederFeature) theNextFrameIs(name string) error {
	msg, err := f.next()
	if err != nil {
		return err
	}
	if msg.IsKeepAlive() || msg.ID.String() != name {
		return fmt.Errorf("expected %s, got %v", name, msg)
	}
	return nil
}

func (f *seederFeature) nothingElseArrivesWithin(ms int) error {
	var msg p2p.Message
	f.conn.SetReadDeadline(time.Now().Add(time.Duration(ms) * time.Millisecond))
	err := f.dec.Decode(f.conn, &msg)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return fmt.Errorf("expected silence, got %v (%v)", msg, err)
}

func (f *seederFeature) theConnectionClosesWithoutAPiece() error {
	msg, err := f.next()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("expected the connection to close, got %v (%v)", msg, err)
}

func (f *seederFeature) theProfileStopsWithAProtocolViolation() error {
	select {
	case err := <-f.done:
		if !IsViolation(err) {
			return fmt.Errorf("expected a violation, got %v", err)
		}
		return nil
	case <-time.After(readTimeout):
		return errors.New("profile still running")
	}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	f := &seederFeature{}

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if f.conn != nil {
			f.conn.Close()
		}
		if f.cancel != nil {
			f.cancel()
		}
		return ctx, nil
	})

	ctx.Step(`^a seeder advertising (every piece|only the last piece) with no faults$`, f.aSeederWithNoFaults)
	ctx.Step(`^a seeder advertising (every piece|only the last piece) with "([^"]*)" always firing$`, f.aSeeder)
	ctx.Step(`^the client completes the handshake$`, f.theClientCompletesTheHandshake)
	ctx.Step(`^the client completes the handshake and negotiation$`, f.theClientCompletesTheHandshakeAndNegotiation)
	ctx.Step(`^the client requests piece (\d+) at offset (\d+) for (\d+) bytes$`, f.theClientRequests)
	ctx.Step(`^the client receives piece (\d+) at offset (\d+) matching the fixture$`, f.theClientReceivesPieceMatchingTheFixture)
	ctx.Step(`^the next frame is "([^"]*)"$`, f.theNextFrameIs)
	ctx.Step(`^nothing else arrives within (\d+)ms$`, f.nothingElseArrivesWithin)
	ctx.Step(`^the connection closes without a piece$`, f.theConnectionClosesWithoutAPiece)
	ctx.Step(`^the profile stops with a protocol violation$`, f.theProfileStopsWithAProtocolViolation)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
