package naming

import (
	"context"
	"io"
	"net"

	"github.com/yanun0323/logs"

	"stockex/internal/protocol"
)

// Server answers naming requests for one node. Every connection carries one
// request and at most one response.
type Server struct {
	node *Node
}

// NewServer wraps node.
func NewServer(node *Node) *Server {
	return &Server{node: node}
}

// Serve accepts connections from ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln protocol.Listener) error {
	logs.Infof("%s: serving naming requests on %d", s.node.Name(), s.node.Address())
	return protocol.Serve(ctx, ln, s.ServeConn)
}

// ServeConn handles one connection and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	c := protocol.NewConn(conn)
	defer c.Close()

	msg, err := c.ReadMessage()
	if err != nil {
		if err == io.EOF {
			return
		}
		if protocol.IsProtocolError(err) {
			logs.Warnf("%s: bad request from %s, err: %+v", s.node.Name(), c.RemoteAddr(), err)
			_ = c.WriteMessage(protocol.ErrorResponse{Reason: err.Error()})
			return
		}
		logs.Warnf("%s: read request from %s, err: %+v", s.node.Name(), c.RemoteAddr(), err)
		return
	}

	switch m := msg.(type) {
	case protocol.Registration:
		s.node.Register(m.ExchangeName, m.Address, m.SecuritySet)
		s.reply(c, protocol.RegistrationAck{StartTime: s.node.StartTime()})
	case protocol.ResolveRequest:
		var originator protocol.Address
		if m.Src == protocol.SourceServer {
			originator = m.OriginalAddress
		}
		s.reply(c, s.node.Resolve(m.SecurityName, originator))
	case protocol.Notify:
		_ = c.Close()
		s.node.Notify(m)
	default:
		logs.Warnf("%s: unexpected %s from %s", s.node.Name(), msg.Kind(), c.RemoteAddr())
		s.reply(c, protocol.ErrorResponse{Reason: "naming: unexpected message " + string(msg.Kind())})
	}
}

func (s *Server) reply(c *protocol.Conn, m protocol.Message) {
	if err := c.WriteMessage(m); err != nil {
		logs.Warnf("%s: reply %s to %s, err: %+v", s.node.Name(), m.Kind(), c.RemoteAddr(), err)
	}
}
