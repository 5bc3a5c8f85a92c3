package tcp

import (
	"errors"
	"net"
	"strconv"
	"sync"

	"stockex/pkg/exception"
)

var (
	// ErrNilServer is returned when a nil server receiver is used.
	ErrNilServer = errors.New("tcp: nil server")
	// ErrAlreadyListening is returned when Listen is called twice.
	ErrAlreadyListening = errors.New("tcp: already listening")
	// ErrNotListening is returned when Accept is called before Listen.
	ErrNotListening = errors.New("tcp: not listening")
)

// Server listens for TCP connections on a single host port.
// Port 0 asks the kernel for an ephemeral port, see Port.
type Server struct {
	host string
	port int

	mu sync.Mutex
	ln *net.TCPListener
}

// NewServer creates a server for the provided host and port.
func NewServer(host string, port int) (*Server, error) {
	if port < 0 || port > maxPort {
		return nil, exception.ErrInvalidAddressTCP
	}
	if host == "" {
		host = DefaultHost
	}
	return &Server{host: host, port: port}, nil
}

// Port returns the bound port once listening, otherwise the configured one.
func (s *Server) Port() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().(*net.TCPAddr).Port
	}
	return s.port
}

// Listen starts listening on the configured address.
func (s *Server) Listen() error {
	if s == nil {
		return ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return ErrAlreadyListening
	}
	addr, err := net.ResolveTCPAddr(tcpNetwork, net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return err
	}
	ln, err := net.ListenTCP(tcpNetwork, addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Accept waits for the next incoming connection.
func (s *Server) Accept() (net.Conn, error) {
	if s == nil {
		return nil, ErrNilServer
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return nil, ErrNotListening
	}
	return ln.AcceptTCP()
}

// Close stops the listener.
func (s *Server) Close() error {
	if s == nil {
		return ErrNilServer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}
