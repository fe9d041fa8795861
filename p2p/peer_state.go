package p2p

// PeerState tracks what a session has told the remote peer and what the
// remote peer has told us. It belongs to the goroutine serving the session.
type PeerState struct {
	AmChoking      bool
	PeerChoking    bool
	PeerInterested bool

	Uploaded     int64
	PiecesServed int
}

func NewPeerState() *PeerState {
	return &PeerState{
		AmChoking:   true,
		PeerChoking: true,
	}
}

func (ps *PeerState) AddUploaded(n int64) {
	ps.Uploaded += n
	ps.PiecesServed++
}

// Flags names the choke and interest flags currently set, e.g.
// ["am_choking", "peer_choking"] for a session that never got past the
// handshake.
func (ps *PeerState) Flags() []string {
	flags := []string{}
	if ps.AmChoking {
		flags = append(flags, "am_choking")
	}
	if ps.PeerChoking {
		flags = append(flags, "peer_choking")
	}
	if ps.PeerInterested {
		flags = append(flags, "peer_interested")
	}
	return flags
}
