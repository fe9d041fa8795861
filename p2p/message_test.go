package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBytes(t *testing.T) {
	var tests = []struct {
		name  string
		frame []byte
		want  []byte
	}{
		{"keep-alive", KeepAlive(), []byte{0, 0, 0, 0}},
		{"choke", Choke(), []byte{0, 0, 0, 1, 0}},
		{"unchoke", Unchoke(), []byte{0, 0, 0, 1, 1}},
		{"interested", Interested(), []byte{0, 0, 0, 1, 2}},
		{"not interested", NotInterested(), []byte{0, 0, 0, 1, 3}},
		{"malformed unchoke", MalformedUnchoke(0x42), []byte{0, 0, 0, 2, 1, 0x42}},
		{"have", Have(3), []byte{0, 0, 0, 5, 4, 0, 0, 0, 3}},
		{"malformed have", MalformedHave(3, 0x99), []byte{0, 0, 0, 6, 4, 0, 0, 0, 3, 0x99}},
		{"bitfield", BitfieldMessage(Bitfield{0b10011000}), []byte{0, 0, 0, 2, 5, 0b10011000}},
		{"request", Request(0, 0, 16384), []byte{0, 0, 0, 13, 6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x40, 0}},
		{"piece", Piece(1, 2, []byte{0xde, 0xad}), []byte{0, 0, 0, 11, 7, 0, 0, 0, 1, 0, 0, 0, 2, 0xde, 0xad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frame)
		})
	}
}

func TestMalformedHaveCarriesOneExtraByte(t *testing.T) {
	good, bad := Have(2), MalformedHave(2, 0)
	assert.Len(t, bad, len(good)+1)
	assert.Equal(t, byte(5), good[3])
	assert.Equal(t, byte(6), bad[3])
	assert.Equal(t, good[4:], bad[4:len(bad)-1])
}

func TestParseRequest(t *testing.T) {
	var tests = []struct {
		name   string
		frame  []byte
		assert func(t *testing.T, req BlockRequest, err error)
	}{
		{
			name:  "valid",
			frame: Request(4, 16384, 16384),
			assert: func(t *testing.T, req BlockRequest, err error) {
				require.NoError(t, err)
				assert.Equal(t, BlockRequest{Index: 4, Begin: 16384, Length: 16384}, req)
			},
		},
		{
			name:  "signed fields",
			frame: Request(-1, 0, 1),
			assert: func(t *testing.T, req BlockRequest, err error) {
				require.NoError(t, err)
				assert.Equal(t, -1, req.Index)
			},
		},
		{
			name:  "wrong length prefix",
			frame: append([]byte{0, 0, 0, 12}, Request(0, 0, 1)[4:]...),
			assert: func(t *testing.T, _ BlockRequest, err error) {
				assert.ErrorContains(t, err, "length prefix")
			},
		},
		{
			name:  "wrong id",
			frame: append([]byte{0, 0, 0, 13, 8}, Request(0, 0, 1)[5:]...),
			assert: func(t *testing.T, _ BlockRequest, err error) {
				assert.ErrorContains(t, err, "message id")
			},
		},
		{
			name:  "short frame",
			frame: Interested(),
			assert: func(t *testing.T, _ BlockRequest, err error) {
				assert.Error(t, err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest(tt.frame)
			tt.assert(t, req, err)
		})
	}
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, "keep-alive", Message{}.String())
	assert.Equal(t, "piece [3]", Message{Length: 4, ID: MsgPiece, Payload: []byte{1, 2, 3}}.String())
	assert.Equal(t, "unknown(20)", MessageID(20).String())
}
