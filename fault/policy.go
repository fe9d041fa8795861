package fault

import (
	"fmt"
	"sort"
	"strconv"
)

// Gate names a decision point where the seeder may deviate from the protocol.
type Gate uint8

const (
	DropBeforeHandshake Gate = iota
	CorruptInfoHash
	DropAfterHandshake
	OmitBitfield
	OmitUnchoke
	MalformedUnchoke
	DropMidLoop
	CorruptBlock
	MalformedHave
	SpuriousKeepAlive
	SpuriousInterested
	SpuriousNotInterested
	ChokePulse
	Hang

	numGates
)

var gateNames = [numGates]string{
	DropBeforeHandshake:   "drop_before_handshake",
	CorruptInfoHash:       "corrupt_info_hash",
	DropAfterHandshake:    "drop_after_handshake",
	OmitBitfield:          "omit_bitfield",
	OmitUnchoke:           "omit_unchoke",
	MalformedUnchoke:      "malformed_unchoke",
	DropMidLoop:           "drop_mid_loop",
	CorruptBlock:          "corrupt_block",
	MalformedHave:         "malformed_have",
	SpuriousKeepAlive:     "spurious_keep_alive",
	SpuriousInterested:    "spurious_interested",
	SpuriousNotInterested: "spurious_not_interested",
	ChokePulse:            "choke_pulse",
	Hang:                  "hang",
}

func (g Gate) String() string {
	if g >= numGates {
		return fmt.Sprintf("gate(%d)", uint8(g))
	}
	return gateNames[g]
}

// Gates lists every decision point in evaluation order.
func Gates() []Gate {
	gs := make([]Gate, numGates)
	for i := range gs {
		gs[i] = Gate(i)
	}
	return gs
}

func ParseGate(name string) (Gate, error) {
	for i, n := range gateNames {
		if n == name {
			return Gate(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fault gate %q", name)
}

// Table maps each gate to its trigger probability. Tables are values; With
// and Override return modified copies.
type Table struct {
	p [numGates]float64
}

// Reference is the probability table of the reference deployment.
// DropBeforeHandshake is a defined but inert point.
func Reference() Table {
	var t Table
	t.p[DropBeforeHandshake] = 0
	t.p[CorruptInfoHash] = 0.05
	t.p[DropAfterHandshake] = 0.05
	t.p[OmitBitfield] = 0.15
	t.p[OmitUnchoke] = 0.15
	t.p[MalformedUnchoke] = 0.30
	t.p[DropMidLoop] = 0.02
	t.p[CorruptBlock] = 0.10
	t.p[MalformedHave] = 0.05
	t.p[SpuriousKeepAlive] = 0.20
	t.p[SpuriousInterested] = 0.20
	t.p[SpuriousNotInterested] = 0.20
	t.p[ChokePulse] = 0.03
	t.p[Hang] = 0.30
	return t
}

// Quiet never deviates from the protocol.
func Quiet() Table {
	return Table{}
}

func (t Table) Probability(g Gate) float64 {
	if g >= numGates {
		return 0
	}
	return t.p[g]
}

func (t Table) With(g Gate, p float64) Table {
	if g < numGates {
		t.p[g] = clamp(p)
	}
	return t
}

// Override applies name=probability pairs as given on the command line.
func (t Table) Override(values map[string]string) (Table, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g, err := ParseGate(name)
		if err != nil {
			return t, err
		}
		p, err := strconv.ParseFloat(values[name], 64)
		if err != nil {
			return t, fmt.Errorf("gate %s: invalid probability %q: %w", name, values[name], err)
		}
		if p < 0 || p > 1 {
			return t, fmt.Errorf("gate %s: probability %v out of [0,1]", name, p)
		}
		t.p[g] = p
	}
	return t, nil
}

// Parent returns the gate a chained gate is conditioned on.
func Parent(g Gate) (Gate, bool) {
	switch g {
	case MalformedUnchoke:
		return OmitUnchoke, true
	case Hang:
		return ChokePulse, true
	}
	return 0, false
}

func clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Policy draws gate outcomes from a table. Every Fires call is an independent
// Bernoulli draw that consumes exactly one Float64.
type Policy struct {
	table Table
	rand  Rand
}

func NewPolicy(table Table, r Rand) *Policy {
	if r == nil {
		r = Global()
	}
	return &Policy{table: table, rand: r}
}

func (p *Policy) Table() Table { return p.table }

func (p *Policy) Rand() Rand { return p.rand }

func (p *Policy) Fires(g Gate) bool {
	return p.rand.Float64() < p.table.Probability(g)
}

// FiresAfter evaluates a chained gate. When the chain condition does not hold
// nothing is drawn. MalformedUnchoke is conditioned on OmitUnchoke having
// not fired, Hang on ChokePulse having fired; callers pass that condition.
func (p *Policy) FiresAfter(g Gate, condition bool) bool {
	if !condition {
		return false
	}
	return p.Fires(g)
}
