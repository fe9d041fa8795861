package faker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pixperk/pixfaker/config"
	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/fixture"
)

type BuildOpts struct {
	Table   fault.Table
	Rand    fault.Rand
	Fixture *fixture.Bytes
	Stall   time.Duration
	Logger  *slog.Logger
}

// Build returns the handler a profile runs.
func Build(p config.Profile, opts BuildOpts) (Handler, error) {
	if opts.Rand == nil {
		opts.Rand = fault.Global()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("profile", p.Name)

	stubs := Stubs{PeerID: DefaultPeerID, Rand: opts.Rand, Delay: time.Second, Logger: logger}

	switch p.Kind {
	case config.KindSeeder:
		if opts.Fixture == nil {
			return nil, fmt.Errorf("profile %s: seeder needs a fixture", p.Name)
		}
		return NewSeeder(SeederOpts{
			NumPieces:      advertisedPieces(opts.Fixture),
			BitProbability: p.BitProbability,
			Policy:         fault.NewPolicy(opts.Table, opts.Rand),
			Fixture:        opts.Fixture,
			PeerID:         DefaultPeerID,
			Stall:          opts.Stall,
			Logger:         logger,
		}), nil
	case config.KindEcho10:
		return stubs.Echo10(), nil
	case config.KindSlow:
		return stubs.Slow(), nil
	case config.KindHandshake:
		return stubs.Handshake(), nil
	case config.KindFriendly:
		return stubs.Friendly(), nil
	case config.KindConnect:
		return stubs.Connect(), nil
	case config.KindConnectPlusPiece:
		return stubs.ConnectPlusPiece(), nil
	}
	return nil, fmt.Errorf("profile %s: unknown kind %q", p.Name, p.Kind)
}

// advertisedPieces is the bitfield size for a fixture: the reference piece
// count, or fewer when the file is shorter. Bytes past the fifth piece are
// never offered.
func advertisedPieces(fx *fixture.Bytes) int {
	return min(fx.NumPieces(), fixture.NumPieces)
}
