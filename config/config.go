package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/pixperk/pixfaker/fault"
	"github.com/pixperk/pixfaker/fixture"
)

// Kind selects the handler a profile runs.
type Kind string

const (
	KindSeeder           Kind = "seeder"
	KindEcho10           Kind = "echo10"
	KindSlow             Kind = "slow"
	KindHandshake        Kind = "handshake"
	KindFriendly         Kind = "friendly"
	KindConnect          Kind = "connect"
	KindConnectPlusPiece Kind = "connect_plus_piece"
)

type Profile struct {
	Name string
	Port int
	Kind Kind
	// BitProbability is the per-piece chance a seeder advertises a piece.
	BitProbability float64
}

func (p Profile) Addr(host string) string {
	return net.JoinHostPort(host, strconv.Itoa(p.Port))
}

// Profiles is the reference deployment.
var Profiles = []Profile{
	{Name: "friendly", Port: 4001, Kind: KindFriendly},
	{Name: "echo10", Port: 4002, Kind: KindEcho10},
	{Name: "slow", Port: 4003, Kind: KindSlow},
	{Name: "connect", Port: 4004, Kind: KindConnect},
	{Name: "connect_plus_piece", Port: 4005, Kind: KindConnectPlusPiece},
	{Name: "alice", Port: 4006, Kind: KindSeeder, BitProbability: 0.7},
	{Name: "mad_hatter", Port: 4007, Kind: KindSeeder, BitProbability: 0.3},
	{Name: "handshake", Port: 4242, Kind: KindHandshake},
}

func Lookup(name string) (Profile, bool) {
	for _, p := range Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

func Names() []string {
	names := make([]string, len(Profiles))
	for i, p := range Profiles {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}

// Select resolves the CLI selector: "all" or one profile name.
func Select(selector string) ([]Profile, error) {
	if selector == "all" {
		return append([]Profile(nil), Profiles...), nil
	}
	if p, ok := Lookup(selector); ok {
		return []Profile{p}, nil
	}
	return nil, fmt.Errorf("unknown faker %q (want all|%s)", selector, strings.Join(Names(), "|"))
}

type Config struct {
	Host        string
	FixturePath string
	Stall       time.Duration
	Gates       map[string]string
	Seed        uint64

	Journal       string
	RedisAddr     string
	RedisDB       int
	RedisPassword string
	StatsAddr     string

	LogFile string
	Debug   bool
}

func Default() *Config {
	return &Config{
		Host:        getEnvOrDefault("PIXFAKER_HOST", "127.0.0.1"),
		FixturePath: getEnvOrDefault("PIXFAKER_FIXTURE", ""),
		Stall:       time.Second,
		Gates:       map[string]string{},
		Journal:     getEnvOrDefault("PIXFAKER_JOURNAL", "memory"),
		RedisAddr:   getEnvOrDefault("PIXFAKER_REDIS_ADDR", "localhost:6379"),
		StatsAddr:   getEnvOrDefault("PIXFAKER_STATS_ADDR", ""),
	}
}

func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Host, "host", "H", c.Host, "Address every profile binds to")
	fs.StringVarP(&c.FixturePath, "fixture", "f", c.FixturePath, "Reference file served in pieces (generated when empty)")
	fs.DurationVar(&c.Stall, "stall", c.Stall, "Pause between a choke pulse and the following unchoke")
	fs.StringToStringVarP(&c.Gates, "gate", "g", c.Gates, "Override a fault probability, e.g. --gate corrupt_block=0.5")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "Seed the fault source for reproducible runs (0 is unseeded)")
	fs.StringVarP(&c.Journal, "journal", "j", c.Journal, "Session journal: memory, redis or none")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for --journal redis")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.StringVarP(&c.StatsAddr, "stats-addr", "s", c.StatsAddr, "Serve the journal over HTTP on this address")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Write JSON logs to this file instead of stderr")
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "Log every frame")
}

// Table is the reference gate table with --gate overrides applied.
func (c *Config) Table() (fault.Table, error) {
	return fault.Reference().Override(c.Gates)
}

// Rand returns the fault source for one profile. Seeded runs derive a
// distinct stream per profile so profiles stay independent.
func (c *Config) Rand(profile Profile) fault.Rand {
	if c.Seed == 0 {
		return fault.Global()
	}
	return fault.NewSeeded(c.Seed + uint64(profile.Port))
}

// Fixture loads the configured file or generates the reference bytes.
func (c *Config) Fixture() (*fixture.Bytes, error) {
	if c.FixturePath == "" {
		return fixture.New(fixture.Generate(fixture.NumPieces*fixture.PieceLength), fixture.PieceLength), nil
	}
	return fixture.Load(c.FixturePath, fixture.PieceLength)
}

func (c *Config) Validate() error {
	switch c.Journal {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown journal %q (want memory, redis or none)", c.Journal)
	}
	if c.Stall < 0 {
		return fmt.Errorf("stall must not be negative")
	}
	if c.Journal == "none" && c.StatsAddr != "" {
		return fmt.Errorf("--stats-addr needs a journal")
	}
	_, err := c.Table()
	return err
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
