// Package memnet is an in-process Dialer used to wire naming nodes and
// exchanges together without real sockets.
package memnet

import (
	"net"
	"sync"

	"github.com/yanun0323/errors"

	"stockex/internal/protocol"
)

// ErrRefused is returned for addresses with no live handler.
var ErrRefused = errors.New("memnet: connection refused")

// Handler serves one accepted connection.
type Handler func(conn net.Conn)

// Network maps addresses to handlers.
type Network struct {
	mu       sync.Mutex
	handlers map[protocol.Address]Handler
	dials    map[protocol.Address]int
}

// New creates an empty network.
func New() *Network {
	return &Network{
		handlers: make(map[protocol.Address]Handler),
		dials:    make(map[protocol.Address]int),
	}
}

// Listen makes addr reachable.
func (n *Network) Listen(addr protocol.Address, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[addr] = h
}

// Down makes addr refuse connections.
func (n *Network) Down(addr protocol.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, addr)
}

// Dials returns how many dial attempts addr received, refused ones included.
func (n *Network) Dials(addr protocol.Address) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dials[addr]
}

// Dial implements protocol.Dialer.
func (n *Network) Dial(addr protocol.Address) (net.Conn, error) {
	n.mu.Lock()
	n.dials[addr]++
	h, ok := n.handlers[addr]
	n.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrRefused, "dial %d", addr)
	}
	client, server := net.Pipe()
	go h(server)
	return client, nil
}
