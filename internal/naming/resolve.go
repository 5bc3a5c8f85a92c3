package naming

import (
	"net"

	"github.com/yanun0323/logs"

	"stockex/internal/obs"
	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

// Resolve finds the exchange hosting security. A zero originator means the
// request came from an exchange and this node is the entry point: the left
// side is asked first and the right side only if the left one had nothing.
// Otherwise the request keeps moving away from the originator. Every node
// that forwarded a successful request caches the answer.
func (n *Node) Resolve(security string, originator protocol.Address) protocol.ResolveResponse {
	if exchange, addr, ok := n.lookup(security); ok {
		n.metrics.IncResolution(obs.ResolveLocal)
		return protocol.ResolveResponse{ExchangeAddress: addr, ExchangeName: exchange}
	}

	resp := protocol.NotFound()
	if originator.IsZero() {
		req := protocol.ResolveRequest{Src: protocol.SourceServer, SecurityName: security, OriginalAddress: n.self}
		for _, s := range []side{sideLeft, sideRight} {
			if _, ok := n.neighborFor(s); !ok {
				continue
			}
			if resp = n.ask(s, req); resp.Found() {
				break
			}
		}
	} else if s := n.away(originator); s != sideNone {
		if _, ok := n.neighborFor(s); ok {
			resp = n.ask(s, protocol.ResolveRequest{Src: protocol.SourceServer, SecurityName: security, OriginalAddress: originator})
		}
	}

	if !resp.Found() {
		n.metrics.IncResolution(obs.ResolveNotFound)
		return protocol.NotFound()
	}
	n.cache(security, resp)
	n.metrics.IncResolution(obs.ResolveForwarded)
	logs.Infof("%s: resolved %s to %s at %d via chain", n.name, security, resp.ExchangeName, resp.ExchangeAddress)
	return resp
}

// ask forwards a resolve request to one neighbor. Any failure is NotFound.
func (n *Node) ask(s side, req protocol.ResolveRequest) protocol.ResolveResponse {
	conn, addr, err := n.dialNeighbor(s)
	if err != nil {
		logs.Warnf("%s: resolve %s, %s side unavailable, err: %+v", n.name, req.SecurityName, s, err)
		return protocol.NotFound()
	}
	c := protocol.NewConn(conn)
	defer c.Close()

	resp, err := protocol.Call[protocol.ResolveResponse](c, req)
	if err != nil {
		logs.Warnf("%s: resolve %s, %s neighbor %d failed mid-request, err: %+v", n.name, req.SecurityName, s, addr, err)
		return protocol.NotFound()
	}
	return resp
}

// dialNeighbor connects to the neighbor on side s. A refused primary is
// replaced by its backup for this and every later request.
func (n *Node) dialNeighbor(s side) (net.Conn, protocol.Address, error) {
	nb, ok := n.neighborFor(s)
	if !ok {
		return nil, 0, exception.ErrNeighborDown
	}
	conn, err := n.dialer.Dial(nb.addr)
	if err == nil {
		return conn, nb.addr, nil
	}
	if nb.addr != nb.region.Primary {
		logs.Warnf("%s: %s backup %d unreachable, err: %+v", n.name, nb.region.Name, nb.addr, err)
		return nil, 0, exception.ErrNeighborDown
	}

	logs.Warnf("%s: %s primary %d unreachable, switching to backup %d, err: %+v", n.name, nb.region.Name, nb.addr, nb.region.Backup, err)
	if n.repoint(s, nb.addr) {
		n.metrics.IncFailover()
	}
	conn, err = n.dialer.Dial(nb.region.Backup)
	if err != nil {
		logs.Warnf("%s: %s backup %d unreachable, err: %+v", n.name, nb.region.Name, nb.region.Backup, err)
		return nil, 0, exception.ErrNeighborDown
	}
	return conn, nb.region.Backup, nil
}
