package p2p

import (
	"io"
	"net"
)

type Peer interface {
	net.Conn
	Send([]byte) error
	ReadExact(n int) ([]byte, error)
	ID() string
	SetID(string)
}

type TCPPeer struct {
	net.Conn
	id string
}

func NewTCPPeer(conn net.Conn) *TCPPeer {
	return &TCPPeer{Conn: conn}
}

func (p *TCPPeer) Send(data []byte) error {
	_, err := p.Write(data)
	return err
}

// ReadExact blocks until n bytes arrive. It returns io.EOF when the peer
// closed before sending anything, and io.ErrUnexpectedEOF together with the
// bytes that did arrive on a partial frame.
func (p *TCPPeer) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(p.Conn, buf)
	return buf[:read], err
}

func (p *TCPPeer) SetID(id string) {
	p.id = id
}

func (p *TCPPeer) ID() string {
	return p.id
}
