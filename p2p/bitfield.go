package p2p

import (
	"errors"
	"strings"

	"github.com/pixperk/pixfaker/fault"
)

var ErrBitfieldComplete = errors.New("bitfield already complete")

// Bitfield is a piece availability bitmap, MSB first within each byte as it
// travels on the wire.
type Bitfield []byte

func NewBitfield(numPieces int) Bitfield {
	return make(Bitfield, (numPieces+7)/8)
}

// FreshBitfield sets each of the numPieces bits independently with
// probability p. The result is never empty: if nothing was drawn the last
// piece is set.
func FreshBitfield(numPieces int, p float64, r fault.Rand) Bitfield {
	bf := NewBitfield(numPieces)
	for i := 0; i < numPieces; i++ {
		if r.Float64() < p {
			bf.Set(i)
		}
	}
	if bf.Empty() && numPieces > 0 {
		bf.Set(numPieces - 1)
	}
	return bf
}

func (bf Bitfield) Has(index int) bool {
	byteIndex := index / 8
	if index < 0 || byteIndex >= len(bf) {
		return false
	}
	bitIndex := 7 - (index % 8)
	return bf[byteIndex]&(1<<bitIndex) != 0
}

func (bf Bitfield) Set(index int) {
	byteIndex := index / 8
	if index < 0 || byteIndex >= len(bf) {
		return
	}
	bf[byteIndex] |= 1 << (7 - (index % 8))
}

func (bf Bitfield) Empty() bool {
	for _, b := range bf {
		if b != 0 {
			return false
		}
	}
	return true
}

func (bf Bitfield) Complete(numPieces int) bool {
	for i := 0; i < numPieces; i++ {
		if !bf.Has(i) {
			return false
		}
	}
	return true
}

func (bf Bitfield) Missing(numPieces int) []int {
	missing := []int{}
	for i := 0; i < numPieces; i++ {
		if !bf.Has(i) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Update pretends a new piece was acquired: it sets one unset bit chosen
// uniformly and returns its index.
func (bf Bitfield) Update(numPieces int, r fault.Rand) (int, error) {
	missing := bf.Missing(numPieces)
	if len(missing) == 0 {
		return 0, ErrBitfieldComplete
	}
	index := missing[r.IntN(len(missing))]
	bf.Set(index)
	return index, nil
}

// Format renders the first numPieces bits, e.g. "10011".
func (bf Bitfield) Format(numPieces int) string {
	var sb strings.Builder
	for i := 0; i < numPieces; i++ {
		if bf.Has(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
