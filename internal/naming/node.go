package naming

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

// side of the chain relative to this node.
type side int

const (
	sideNone side = iota
	sideLeft
	sideRight
)

func (s side) String() string {
	switch s {
	case sideLeft:
		return "left"
	case sideRight:
		return "right"
	default:
		return "none"
	}
}

// neighbor is the next region in one direction. addr starts at the primary
// and moves to the backup for good after a failed dial.
type neighbor struct {
	region ops.Region
	addr   protocol.Address
}

// entry routes to one exchange. Authoritative entries come from
// registration, the rest were learned while resolving.
type entry struct {
	exchange      string
	address       protocol.Address
	securities    map[string]struct{}
	authoritative bool
}

func (e *entry) covers(security string) bool {
	_, ok := e.securities[security]
	return ok
}

// Entry is a read-only view of a routing entry.
type Entry struct {
	Exchange      string
	Address       protocol.Address
	Securities    []string
	Authoritative bool
}

// Node is one naming instance. The mutex guards entries and neighbor
// pointers and is never held while talking to another process.
type Node struct {
	name      string
	region    ops.Region
	self      protocol.Address
	static    ops.Static
	dialer    protocol.Dialer
	metrics   *obs.Metrics
	startTime int64

	mu      sync.Mutex
	left    *neighbor
	right   *neighbor
	entries map[string]*entry
}

// New builds the node for cfg and loads or creates its start time.
func New(cfg Config, static ops.Static, dialer protocol.Dialer, metrics *obs.Metrics) (*Node, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, exception.ErrNilInstance
	}
	region, err := static.Region(cfg.Region)
	if err != nil {
		return nil, err
	}
	left, hasLeft, right, hasRight, err := static.Neighbors(cfg.Region)
	if err != nil {
		return nil, err
	}

	name := cfg.InstanceName()
	start, err := LoadStartTime(StartTimePath(cfg.DataDir, name), time.Now(), cfg.StartDelay)
	if err != nil {
		return nil, err
	}

	n := &Node{
		name:      name,
		region:    region,
		self:      region.Primary,
		static:    static,
		dialer:    dialer,
		metrics:   metrics,
		startTime: start,
		entries:   make(map[string]*entry),
	}
	if cfg.Backup {
		n.self = region.Backup
	}
	if hasLeft {
		n.left = &neighbor{region: left, addr: left.Primary}
	}
	if hasRight {
		n.right = &neighbor{region: right, addr: right.Primary}
	}
	return n, nil
}

// Name returns the instance name, e.g. "Asia" or "AsiaBackup".
func (n *Node) Name() string { return n.name }

// Address returns the port this instance listens on.
func (n *Node) Address() protocol.Address { return n.self }

// StartTime returns the global start time in unix milliseconds.
func (n *Node) StartTime() int64 { return n.startTime }

// Register records an authoritative entry for an exchange, replacing any
// previous entry of the same name.
func (n *Node) Register(exchange string, addr protocol.Address, securities []string) {
	set := make(map[string]struct{}, len(securities))
	for _, s := range securities {
		set[s] = struct{}{}
	}

	n.mu.Lock()
	n.entries[exchange] = &entry{
		exchange:      exchange,
		address:       addr,
		securities:    set,
		authoritative: true,
	}
	n.mu.Unlock()

	n.metrics.IncRegistration()
	logs.Infof("%s: registered %s at %d with %d securities", n.name, exchange, addr, len(securities))
}

// Entries returns a copy of the routing table, sorted by exchange name.
func (n *Node) Entries() []Entry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Entry, 0, len(n.entries))
	for _, e := range n.entries {
		secs := slices.Sorted(maps.Keys(e.securities))
		out = append(out, Entry{
			Exchange:      e.exchange,
			Address:       e.address,
			Securities:    secs,
			Authoritative: e.authoritative,
		})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Exchange < b.Exchange:
			return -1
		case a.Exchange > b.Exchange:
			return 1
		}
		return 0
	})
	return out
}

// NeighborAddress returns where the node currently sends traffic for the
// given direction ("left" or "right"); zero at a chain end.
func (n *Node) NeighborAddress(direction string) protocol.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	var nb *neighbor
	switch direction {
	case sideLeft.String():
		nb = n.left
	case sideRight.String():
		nb = n.right
	}
	if nb == nil {
		return 0
	}
	return nb.addr
}

// lookup finds the exchange covering security. Authoritative entries win
// over cached ones.
func (n *Node) lookup(security string) (string, protocol.Address, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lookupLocked(security)
}

func (n *Node) lookupLocked(security string) (string, protocol.Address, bool) {
	var cached *entry
	for _, e := range n.entries {
		if !e.covers(security) {
			continue
		}
		if e.authoritative {
			return e.exchange, e.address, true
		}
		if cached == nil || e.exchange < cached.exchange {
			cached = e
		}
	}
	if cached != nil {
		return cached.exchange, cached.address, true
	}
	return "", 0, false
}

// cache remembers a resolution learned from the chain. It never touches an
// authoritative entry.
func (n *Node) cache(security string, resp protocol.ResolveResponse) {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, ok := n.entries[resp.ExchangeName]
	switch {
	case ok && e.authoritative:
		return
	case ok && e.address == resp.ExchangeAddress:
		e.securities[security] = struct{}{}
	default:
		n.entries[resp.ExchangeName] = &entry{
			exchange:   resp.ExchangeName,
			address:    resp.ExchangeAddress,
			securities: map[string]struct{}{security: {}},
		}
	}
}

// evict removes the entry of exchange if it still points at addr.
func (n *Node) evict(exchange string, addr protocol.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.entries[exchange]
	if !ok || e.address != addr {
		return false
	}
	delete(n.entries, exchange)
	return true
}

// neighborFor snapshots the neighbor on one side.
func (n *Node) neighborFor(s side) (neighbor, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var nb *neighbor
	switch s {
	case sideLeft:
		nb = n.left
	case sideRight:
		nb = n.right
	}
	if nb == nil {
		return neighbor{}, false
	}
	return *nb, true
}

// repoint moves a neighbor from its primary to its backup. It is a no-op if
// another request already did so.
func (n *Node) repoint(s side, from protocol.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	nb := n.left
	if s == sideRight {
		nb = n.right
	}
	if nb == nil || nb.addr != from || from != nb.region.Primary {
		return false
	}
	nb.addr = nb.region.Backup
	return true
}

// away returns the direction leading away from the originator.
func (n *Node) away(originator protocol.Address) side {
	pos, ok := n.static.PositionOf(originator)
	if !ok {
		logs.Warnf("%s: originator %d is not a naming node", n.name, originator)
		return sideNone
	}
	switch {
	case pos > n.region.Position:
		return sideLeft
	case pos < n.region.Position:
		return sideRight
	default:
		return sideNone
	}
}
