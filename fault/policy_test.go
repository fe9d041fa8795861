package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceTable(t *testing.T) {
	ref := Reference()
	want := map[Gate]float64{
		DropBeforeHandshake:   0,
		CorruptInfoHash:       0.05,
		DropAfterHandshake:    0.05,
		OmitBitfield:          0.15,
		OmitUnchoke:           0.15,
		MalformedUnchoke:      0.30,
		DropMidLoop:           0.02,
		CorruptBlock:          0.10,
		MalformedHave:         0.05,
		SpuriousKeepAlive:     0.20,
		SpuriousInterested:    0.20,
		SpuriousNotInterested: 0.20,
		ChokePulse:            0.03,
		Hang:                  0.30,
	}
	for g, p := range want {
		assert.Equal(t, p, ref.Probability(g), g.String())
	}
	assert.Len(t, Gates(), len(want))
}

func TestParseGate(t *testing.T) {
	for _, g := range Gates() {
		parsed, err := ParseGate(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}

	_, err := ParseGate("drop_everything")
	assert.Error(t, err)
}

func TestOverride(t *testing.T) {
	var tests = []struct {
		name   string
		values map[string]string
		assert func(t *testing.T, table Table, err error)
	}{
		{
			name:   "sets named gates",
			values: map[string]string{"corrupt_block": "1", "hang": "0.5"},
			assert: func(t *testing.T, table Table, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1.0, table.Probability(CorruptBlock))
				assert.Equal(t, 0.5, table.Probability(Hang))
				assert.Equal(t, 0.15, table.Probability(OmitBitfield))
			},
		},
		{
			name:   "unknown gate",
			values: map[string]string{"explode": "1"},
			assert: func(t *testing.T, _ Table, err error) {
				assert.ErrorContains(t, err, "unknown fault gate")
			},
		},
		{
			name:   "probability out of range",
			values: map[string]string{"hang": "1.5"},
			assert: func(t *testing.T, _ Table, err error) {
				assert.ErrorContains(t, err, "out of [0,1]")
			},
		},
		{
			name:   "not a number",
			values: map[string]string{"hang": "often"},
			assert: func(t *testing.T, _ Table, err error) {
				assert.ErrorContains(t, err, "invalid probability")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Reference().Override(tt.values)
			tt.assert(t, table, err)
		})
	}
}

func TestWithDoesNotMutateReceiver(t *testing.T) {
	base := Quiet()
	loud := base.With(CorruptBlock, 1)
	assert.Equal(t, 0.0, base.Probability(CorruptBlock))
	assert.Equal(t, 1.0, loud.Probability(CorruptBlock))
	assert.Equal(t, 1.0, base.With(Hang, 7).Probability(Hang))
}

func TestPolicyFires(t *testing.T) {
	table := Quiet().With(CorruptBlock, 0.10)
	script := NewScript().PushFloats(0.05, 0.10, 0.5)
	p := NewPolicy(table, script)

	assert.True(t, p.Fires(CorruptBlock))
	assert.False(t, p.Fires(CorruptBlock), "draw equal to p must not fire")
	assert.False(t, p.Fires(CorruptBlock))
}

func TestPolicyZeroNeverFires(t *testing.T) {
	p := NewPolicy(Reference(), NewSeeded(7))
	for i := 0; i < 10000; i++ {
		require.False(t, p.Fires(DropBeforeHandshake))
	}
}

func TestPolicyOneAlwaysFires(t *testing.T) {
	p := NewPolicy(Quiet().With(ChokePulse, 1), NewSeeded(7))
	for i := 0; i < 10000; i++ {
		require.True(t, p.Fires(ChokePulse))
	}
}

func TestFiresAfterSkipsDrawWhenConditionFails(t *testing.T) {
	script := NewScript().PushFloats(0.0)
	p := NewPolicy(Quiet().With(Hang, 1), script)

	assert.False(t, p.FiresAfter(Hang, false))
	floats, _ := script.Remaining()
	assert.Equal(t, 1, floats, "no draw should be consumed")

	assert.True(t, p.FiresAfter(Hang, true))
	floats, _ = script.Remaining()
	assert.Equal(t, 0, floats)
}

func TestParent(t *testing.T) {
	parent, ok := Parent(MalformedUnchoke)
	assert.True(t, ok)
	assert.Equal(t, OmitUnchoke, parent)

	parent, ok = Parent(Hang)
	assert.True(t, ok)
	assert.Equal(t, ChokePulse, parent)

	_, ok = Parent(CorruptBlock)
	assert.False(t, ok)
}

func TestPolicyFrequency(t *testing.T) {
	p := NewPolicy(Reference(), NewSeeded(42))
	const n = 20000
	fired := 0
	for i := 0; i < n; i++ {
		if p.Fires(OmitBitfield) {
			fired++
		}
	}
	assert.InDelta(t, 0.15, float64(fired)/n, 0.02)
}

func TestScriptDefaults(t *testing.T) {
	s := NewScript().PushInts(9, -3)
	assert.Equal(t, 4, s.IntN(5), "clamped to n-1")
	assert.Equal(t, 0, s.IntN(5), "clamped to 0")
	assert.Equal(t, 0, s.IntN(5), "empty queue")
	assert.Less(t, s.Float64(), 1.0)
	assert.Greater(t, s.Float64(), 0.99)
}
