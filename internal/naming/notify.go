package naming

import (
	"github.com/yanun0323/logs"

	"stockex/internal/obs"
	"stockex/internal/protocol"
)

// Notify evicts an exchange reported unreachable and passes the report on.
// An entry is only evicted while it still points at the reported address,
// so an exchange that re-registered elsewhere keeps its new entry.
//
// Exchanges report the security they failed to trade; the exchange name is
// looked up locally. Delivery is fire-and-forget.
func (n *Node) Notify(msg protocol.Notify) {
	name := msg.ExchangeName
	if name == "" && msg.SecurityName != "" {
		if exchange, _, ok := n.lookup(msg.SecurityName); ok {
			name = exchange
		}
	}

	if name != "" && n.evict(name, msg.DownAddress) {
		n.metrics.IncNotification(obs.NotifyEvicted)
		logs.Infof("%s: evicted %s at %d", n.name, name, msg.DownAddress)
	} else {
		n.metrics.IncNotification(obs.NotifyIgnored)
	}

	relay := protocol.Notify{
		Src:          protocol.SourceServer,
		ExchangeName: name,
		DownAddress:  msg.DownAddress,
		SecurityName: msg.SecurityName,
	}

	if msg.Src != protocol.SourceServer {
		relay.OriginalAddress = n.self
		for _, s := range []side{sideLeft, sideRight} {
			if _, ok := n.neighborFor(s); ok {
				n.tell(s, relay)
			}
		}
		return
	}

	relay.OriginalAddress = msg.OriginalAddress
	if s := n.away(msg.OriginalAddress); s != sideNone {
		if _, ok := n.neighborFor(s); ok {
			n.tell(s, relay)
		}
	}
}

// tell sends a notification to one neighbor without waiting for anything.
func (n *Node) tell(s side, msg protocol.Notify) {
	conn, addr, err := n.dialNeighbor(s)
	if err != nil {
		logs.Warnf("%s: notify %s side dropped, err: %+v", n.name, s, err)
		return
	}
	c := protocol.NewConn(conn)
	defer c.Close()
	if err := c.WriteMessage(msg); err != nil {
		logs.Warnf("%s: notify %s neighbor %d failed, err: %+v", n.name, s, addr, err)
	}
}
