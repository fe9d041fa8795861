package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandshake() Handshake {
	var h Handshake
	for i := range h.InfoHash {
		h.InfoHash[i] = byte(i + 1)
	}
	copy(h.PeerID[:], "-PC0001-123456789012")
	return h
}

func TestHandshakeRoundTrip(t *testing.T) {
	h := testHandshake()
	raw := h.Bytes()
	require.Len(t, raw, 68)
	assert.Equal(t, byte(19), raw[0])

	parsed, err := ParseHandshake(raw)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHandshakeErrors(t *testing.T) {
	_, err := ParseHandshake(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortHandshake)

	raw := testHandshake().Bytes()
	raw[1] = 'b'
	_, err = ParseHandshake(raw)
	assert.ErrorContains(t, err, "unexpected protocol")
}

func TestReplyTo(t *testing.T) {
	req := testHandshake().Bytes()
	var ours [20]byte
	copy(ours[:], "WhoLetTheDogsOut----")

	reply := ReplyTo(req, ours)
	assert.Equal(t, req[:PeerIDOffset], reply[:PeerIDOffset])
	assert.Equal(t, "WhoLetTheDogsOut----", string(reply[PeerIDOffset:]))

	CorruptInfoHash(reply)
	assert.NotEqual(t, req[InfoHashOffset], reply[InfoHashOffset])
	assert.Equal(t, req[:InfoHashOffset], reply[:InfoHashOffset])
	assert.Equal(t, req[InfoHashOffset+1:PeerIDOffset], reply[InfoHashOffset+1:PeerIDOffset])
}

func TestPeerIDText(t *testing.T) {
	raw := testHandshake().Bytes()
	id, ok := PeerIDText(raw)
	assert.True(t, ok)
	assert.Equal(t, "-PC0001-123456789012", id)

	raw[PeerIDOffset] = 0xff
	_, ok = PeerIDText(raw)
	assert.False(t, ok)
}
