package p2p

import (
	"encoding/binary"
	"fmt"
)

type MessageID uint8

const (
	MsgChoke         MessageID = 0
	MsgUnchoke       MessageID = 1
	MsgInterested    MessageID = 2
	MsgNotInterested MessageID = 3
	MsgHave          MessageID = 4
	MsgBitfield      MessageID = 5
	MsgRequest       MessageID = 6
	MsgPiece         MessageID = 7
)

const (
	// RequestFrameLen is the full size of a Request frame on the wire.
	RequestFrameLen = 17
	// RequestLength is the length prefix of a Request frame.
	RequestLength = 13
	// ControlFrameLen is the wire size of Choke, Unchoke, Interested and NotInterested.
	ControlFrameLen = 5
)

// Message is one length-prefixed frame. Length is the prefix as read from the
// wire, which malformed frames may set inconsistently with the payload.
type Message struct {
	Length  uint32
	ID      MessageID
	Payload []byte
}

func (m Message) IsKeepAlive() bool {
	return m.Length == 0
}

// Serialize encodes <len><id><payload> with a consistent length prefix.
func (m Message) Serialize() []byte {
	buf := make([]byte, 5+len(m.Payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(m.Payload)+1))
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

func (m Message) String() string {
	if m.IsKeepAlive() {
		return "keep-alive"
	}
	return fmt.Sprintf("%s [%d]", m.ID, len(m.Payload))
}

func (id MessageID) String() string {
	switch id {
	case MsgChoke:
		return "choke"
	case MsgUnchoke:
		return "unchoke"
	case MsgInterested:
		return "interested"
	case MsgNotInterested:
		return "not-interested"
	case MsgHave:
		return "have"
	case MsgBitfield:
		return "bitfield"
	case MsgRequest:
		return "request"
	case MsgPiece:
		return "piece"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

func KeepAlive() []byte {
	return make([]byte, 4)
}

func control(id MessageID) []byte {
	return Message{ID: id}.Serialize()
}

func Choke() []byte         { return control(MsgChoke) }
func Unchoke() []byte       { return control(MsgUnchoke) }
func Interested() []byte    { return control(MsgInterested) }
func NotInterested() []byte { return control(MsgNotInterested) }

// MalformedUnchoke is an Unchoke carrying one spurious payload byte (prefix 2).
func MalformedUnchoke(extra byte) []byte {
	return Message{ID: MsgUnchoke, Payload: []byte{extra}}.Serialize()
}

func Have(index int) []byte {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(index))
	return Message{ID: MsgHave, Payload: payload}.Serialize()
}

// MalformedHave is a Have with prefix 6: the index followed by one garbage byte.
func MalformedHave(index int, garbage byte) []byte {
	payload := make([]byte, 5)
	binary.BigEndian.PutUint32(payload, uint32(index))
	payload[4] = garbage
	return Message{ID: MsgHave, Payload: payload}.Serialize()
}

func BitfieldMessage(bf Bitfield) []byte {
	return Message{ID: MsgBitfield, Payload: bf}.Serialize()
}

func Request(index, begin, length int) []byte {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:12], uint32(length))
	return Message{ID: MsgRequest, Payload: payload}.Serialize()
}

func Piece(index, begin int, block []byte) []byte {
	payload := make([]byte, 8+len(block))
	binary.BigEndian.PutUint32(payload[0:4], uint32(index))
	binary.BigEndian.PutUint32(payload[4:8], uint32(begin))
	copy(payload[8:], block)
	return Message{ID: MsgPiece, Payload: payload}.Serialize()
}

// BlockRequest is a decoded Request. Fields are signed 32-bit on the wire.
type BlockRequest struct {
	Index  int
	Begin  int
	Length int
}

// ParseRequest validates a raw 17-byte Request frame.
func ParseRequest(frame []byte) (BlockRequest, error) {
	if len(frame) != RequestFrameLen {
		return BlockRequest{}, fmt.Errorf("request frame is %d bytes, want %d", len(frame), RequestFrameLen)
	}
	if length := binary.BigEndian.Uint32(frame[0:4]); length != RequestLength {
		return BlockRequest{}, fmt.Errorf("request length prefix %d, want %d", length, RequestLength)
	}
	if id := MessageID(frame[4]); id != MsgRequest {
		return BlockRequest{}, fmt.Errorf("request message id %d, want %d", id, MsgRequest)
	}
	return BlockRequest{
		Index:  int(int32(binary.BigEndian.Uint32(frame[5:9]))),
		Begin:  int(int32(binary.BigEndian.Uint32(frame[9:13]))),
		Length: int(int32(binary.BigEndian.Uint32(frame[13:17]))),
	}, nil
}

// ParsePiece splits a Piece message into index, begin and block.
func ParsePiece(m Message) (index, begin int, block []byte, err error) {
	if m.ID != MsgPiece {
		return 0, 0, nil, fmt.Errorf("message id is %s, not piece", m.ID)
	}
	if len(m.Payload) < 8 {
		return 0, 0, nil, fmt.Errorf("piece payload too short: %d", len(m.Payload))
	}
	index = int(int32(binary.BigEndian.Uint32(m.Payload[0:4])))
	begin = int(int32(binary.BigEndian.Uint32(m.Payload[4:8])))
	return index, begin, m.Payload[8:], nil
}

// ParseHave returns the index of a well-formed Have.
func ParseHave(m Message) (int, error) {
	if m.ID != MsgHave {
		return 0, fmt.Errorf("message id is %s, not have", m.ID)
	}
	if len(m.Payload) != 4 {
		return 0, fmt.Errorf("have payload is %d bytes, want 4", len(m.Payload))
	}
	return int(int32(binary.BigEndian.Uint32(m.Payload))), nil
}
