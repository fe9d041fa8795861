package cmd

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixperk/pixfaker/config"
	"github.com/pixperk/pixfaker/p2p"
)

var (
	probeHost    string
	probeTimeout time.Duration
	probePiece   int
)

var probeCmd = &cobra.Command{
	Use:   "probe <profile>",
	Short: "Connect to a running faker and print what it sends",
	Long: `Run one session against a faker as a minimal well-behaved client:
handshake, unchoke, interested, then request one block of --piece.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeHost, "host", "H", "127.0.0.1", "Host the faker listens on")
	probeCmd.Flags().DurationVarP(&probeTimeout, "timeout", "t", 3*time.Second, "Give up when the faker goes silent this long")
	probeCmd.Flags().IntVarP(&probePiece, "piece", "p", -1, "Piece to request (default: first advertised)")

	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	p, ok := config.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown faker %q", args[0])
	}
	cmd.SilenceUsage = true

	addr := p.Addr(probeHost)
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	PrintHeader("Probing " + p.Name)
	PrintKeyValue("Address", addr)

	hs, err := newClientHandshake()
	if err != nil {
		return err
	}
	if _, err := conn.Write(hs.Bytes()); err != nil {
		return fmt.Errorf("failed to send handshake: %w", err)
	}

	reply := make([]byte, p2p.HandshakeLen)
	conn.SetReadDeadline(time.Now().Add(probeTimeout))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return reportProbeEnd(err)
	}
	got, err := p2p.ParseHandshake(reply)
	if err != nil {
		PrintWarning(err.Error())
	} else {
		PrintStatus("Info hash", infoHashVerdict(hs, got), infoHashColor(hs, got))
		PrintKeyValue("Peer id", fmt.Sprintf("%q", got.PeerID[:]))
	}

	PrintSection("Frames")
	var (
		dec       p2p.BinaryDecoder
		bitfield  p2p.Bitfield
		requested bool
	)
	for {
		var msg p2p.Message
		conn.SetReadDeadline(time.Now().Add(probeTimeout))
		if err := dec.Decode(conn, &msg); err != nil {
			return reportProbeEnd(err)
		}
		PrintInfo(msg.String() + malformedNote(msg))

		if msg.IsKeepAlive() {
			continue
		}
		switch msg.ID {
		case p2p.MsgBitfield:
			bitfield = p2p.Bitfield(msg.Payload)
		case p2p.MsgUnchoke:
			if requested {
				continue
			}
			index := probePiece
			if index < 0 {
				index = firstSet(bitfield)
			}
			frames := append(p2p.Unchoke(), p2p.Interested()...)
			frames = append(frames, p2p.Request(index, 0, 1<<14)...)
			if _, err := conn.Write(frames); err != nil {
				return fmt.Errorf("failed to send request: %w", err)
			}
			PrintCommand(fmt.Sprintf("request(%d, 0, 16384)", index))
			requested = true
		case p2p.MsgPiece:
			PrintSuccess(fmt.Sprintf("received %s", FormatBytes(int64(len(msg.Payload)-8))))
			return nil
		}
	}
}

// newClientHandshake uses a random info hash; fakers echo whatever they get.
func newClientHandshake() (p2p.Handshake, error) {
	var hs p2p.Handshake
	if _, err := rand.Read(hs.InfoHash[:]); err != nil {
		return hs, fmt.Errorf("failed to generate info hash: %w", err)
	}
	copy(hs.PeerID[:], "-PF0001-probeprobe00")
	return hs, nil
}

func firstSet(bf p2p.Bitfield) int {
	for i := 0; i < len(bf)*8; i++ {
		if bf.Has(i) {
			return i
		}
	}
	return 0
}

func malformedNote(msg p2p.Message) string {
	switch {
	case msg.IsKeepAlive():
		return ""
	case msg.ID == p2p.MsgUnchoke && msg.Length != 1,
		msg.ID == p2p.MsgHave && msg.Length != 5:
		return Red + " (malformed, prefix " + fmt.Sprint(msg.Length) + ")" + Reset
	}
	return ""
}

func infoHashVerdict(sent, got p2p.Handshake) string {
	if sent.InfoHash == got.InfoHash {
		return "echoed"
	}
	return "corrupted"
}

func infoHashColor(sent, got p2p.Handshake) string {
	if sent.InfoHash == got.InfoHash {
		return Green
	}
	return Red
}

func reportProbeEnd(err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
		PrintWarning("faker closed the connection")
		return nil
	case errors.As(err, &ne) && ne.Timeout():
		PrintWarning("faker went silent")
		return nil
	}
	return err
}
