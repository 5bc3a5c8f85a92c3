package protocol

import (
	"net"

	"stockex/pkg/tcp"
)

// Dialer opens a connection to a naming node or exchange.
type Dialer interface {
	Dial(addr Address) (net.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(addr Address) (net.Conn, error)

func (f DialerFunc) Dial(addr Address) (net.Conn, error) {
	return f(addr)
}

// NewTCPDialer dials ports on host.
func NewTCPDialer(host string) Dialer {
	client := tcp.NewClient(host)
	return DialerFunc(func(addr Address) (net.Conn, error) {
		return client.Dial(int(addr))
	})
}

// Open dials addr and wraps the connection with the line codec.
func Open(d Dialer, addr Address) (*Conn, error) {
	conn, err := d.Dial(addr)
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}
