package p2p

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Handshake structure:
// <pstrlen><pstr><reserved><info_hash><peer_id>
// - pstrlen: 1 byte, 19
// - pstr: "BitTorrent protocol"
// - reserved: 8 bytes
// - info_hash: 20 bytes
// - peer_id: 20 bytes
const (
	Protocol       = "BitTorrent protocol"
	HandshakeLen   = 49 + len(Protocol)
	InfoHashOffset = 1 + len(Protocol) + 8
	PeerIDOffset   = InfoHashOffset + 20
)

var ErrShortHandshake = errors.New("handshake shorter than 68 bytes")

type Handshake struct {
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

func (h Handshake) Bytes() []byte {
	buf := make([]byte, HandshakeLen)
	buf[0] = byte(len(Protocol))
	copy(buf[1:], Protocol)
	copy(buf[1+len(Protocol):], h.Reserved[:])
	copy(buf[InfoHashOffset:], h.InfoHash[:])
	copy(buf[PeerIDOffset:], h.PeerID[:])
	return buf
}

func ParseHandshake(b []byte) (Handshake, error) {
	var h Handshake
	if len(b) < HandshakeLen {
		return h, ErrShortHandshake
	}
	if int(b[0]) != len(Protocol) || string(b[1:1+len(Protocol)]) != Protocol {
		return h, fmt.Errorf("unexpected protocol header %q", b[:1+len(Protocol)])
	}
	copy(h.Reserved[:], b[1+len(Protocol):InfoHashOffset])
	copy(h.InfoHash[:], b[InfoHashOffset:PeerIDOffset])
	copy(h.PeerID[:], b[PeerIDOffset:HandshakeLen])
	return h, nil
}

// ReplyTo echoes the request's header and info hash and swaps in our peer id.
// The request is not validated: whatever the client sent comes back.
func ReplyTo(req []byte, peerID [20]byte) []byte {
	reply := make([]byte, HandshakeLen)
	copy(reply, req[:PeerIDOffset])
	copy(reply[PeerIDOffset:], peerID[:])
	return reply
}

// CorruptInfoHash flips the first info-hash byte so the reply claims a
// different torrent.
func CorruptInfoHash(reply []byte) {
	reply[InfoHashOffset] ^= 0xff
}

// PeerIDText returns the trailing 20-byte identifier as text, or false when
// it is not valid UTF-8.
func PeerIDText(handshake []byte) (string, bool) {
	if len(handshake) < HandshakeLen {
		return "", false
	}
	id := handshake[PeerIDOffset:HandshakeLen]
	if !utf8.Valid(id) {
		return "", false
	}
	return string(id), true
}
