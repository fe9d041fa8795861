// Package fixture serves the reference bytes a seeder hands out in Piece
// messages.
package fixture

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

const (
	// PieceLength matches the reference torrent: 32 KiB, two 16 KiB blocks per piece.
	PieceLength = 32768
	NumPieces   = 5
)

// Source answers block reads. Implementations must be safe for concurrent
// reads and must return a slice the caller may modify.
type Source interface {
	Read(pieceIndex, offset, length int) []byte
}

// Bytes is a Source over an in-memory reference resource.
type Bytes struct {
	data        []byte
	pieceLength int
}

func New(data []byte, pieceLength int) *Bytes {
	return &Bytes{data: data, pieceLength: pieceLength}
}

// Load reads a fixture file into memory.
func Load(path string, pieceLength int) (*Bytes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return New(data, pieceLength), nil
}

// Generate builds size deterministic bytes, eight at a time from the xxhash
// of a running counter.
func Generate(size int) []byte {
	data := make([]byte, size+7)
	var counter [8]byte
	for off := 0; off < size; off += 8 {
		binary.BigEndian.PutUint64(counter[:], uint64(off/8))
		binary.LittleEndian.PutUint64(data[off:], xxhash.Sum64(counter[:]))
	}
	return data[:size:size]
}

// Read returns a copy of length bytes at pieceIndex*pieceLength+offset.
// Reads running past the end are truncated, like reading a file.
func (b *Bytes) Read(pieceIndex, offset, length int) []byte {
	if pieceIndex < 0 || offset < 0 || length < 0 {
		return nil
	}
	start := pieceIndex*b.pieceLength + offset
	if start >= len(b.data) {
		return []byte{}
	}
	end := start + length
	if end > len(b.data) {
		end = len(b.data)
	}
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return out
}

func (b *Bytes) Len() int {
	return len(b.data)
}

func (b *Bytes) PieceLength() int {
	return b.pieceLength
}

// NumPieces is the number of pieces the resource spans, counting a short
// trailing piece.
func (b *Bytes) NumPieces() int {
	return (len(b.data) + b.pieceLength - 1) / b.pieceLength
}

func (b *Bytes) Digest() uint64 {
	return xxhash.Sum64(b.data)
}

// Digest fingerprints a delivered block for logs and the session journal.
func Digest(block []byte) uint64 {
	return xxhash.Sum64(block)
}
