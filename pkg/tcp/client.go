package tcp

import (
	"net"
	"strconv"

	"stockex/pkg/exception"
)

const (
	tcpNetwork = "tcp"
	maxPort    = 65535

	// DefaultHost is the loopback host every simulated exchange and naming node runs on.
	DefaultHost = "127.0.0.1"
)

// Client dials ports on a fixed host.
type Client struct {
	host string
}

// NewClient creates a client for the provided host.
func NewClient(host string) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{host: host}
}

// Host returns the configured host.
func (c *Client) Host() string {
	if c == nil {
		return ""
	}
	return c.host
}

// Dial opens a TCP connection to port on the client's host.
// There is no dial deadline: a refused or reset connection is the only failure signal.
func (c *Client) Dial(port int) (net.Conn, error) {
	if c == nil {
		return nil, exception.ErrNilClientTCP
	}
	if port <= 0 || port > maxPort {
		return nil, exception.ErrInvalidAddressTCP
	}
	return net.Dial(tcpNetwork, net.JoinHostPort(c.host, strconv.Itoa(port)))
}
