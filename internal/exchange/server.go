package exchange

import (
	"context"
	"io"
	"net"

	"github.com/yanun0323/logs"

	"stockex/internal/protocol"
)

// Server accepts order connections for an endpoint. A connection carries
// any number of request/response pairs until the client closes it.
type Server struct {
	endpoint *Endpoint
	ctx      context.Context
}

// NewServer wraps endpoint.
func NewServer(endpoint *Endpoint) *Server {
	return &Server{endpoint: endpoint, ctx: context.Background()}
}

// Serve accepts connections from ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln protocol.Listener) error {
	s.ctx = ctx
	logs.Infof("%s: accepting orders on %d", s.endpoint.Name(), s.endpoint.Address())
	return protocol.Serve(ctx, ln, s.ServeConn)
}

// ServeConn handles one connection until it is closed. A malformed request
// is answered with an error message and ends the connection.
func (s *Server) ServeConn(conn net.Conn) {
	c := protocol.NewConn(conn)
	defer c.Close()

	for {
		msg, err := c.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return
			}
			if protocol.IsProtocolError(err) {
				logs.Warnf("%s: bad request from %s, err: %+v", s.endpoint.Name(), c.RemoteAddr(), err)
				_ = c.WriteMessage(protocol.ErrorResponse{Reason: err.Error()})
			}
			return
		}

		req, ok := msg.(protocol.OrderRequest)
		if !ok {
			_ = c.WriteMessage(protocol.ErrorResponse{Reason: "exchange: unexpected message " + string(msg.Kind())})
			return
		}
		if err := c.WriteMessage(s.endpoint.ExecuteOrder(s.ctx, req)); err != nil {
			logs.Warnf("%s: reply to %s, err: %+v", s.endpoint.Name(), c.RemoteAddr(), err)
			return
		}
	}
}
