package exchange

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"stockex/internal/bus"
	"stockex/internal/feed"
	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/internal/state"
	"stockex/pkg/exception"
)

// SnapshotLog persists inventory snapshots. Append must not return before
// the snapshot is durable.
type SnapshotLog interface {
	Append(state.Snapshot) error
	Close() error
}

// Fill is one executed local order.
type Fill struct {
	Exchange string
	Security string
	Action   protocol.Action
	Qty      int64
	Price    decimal.Decimal
	Currency string
	Tick     int
	Source   protocol.Source
	ClientID int
	At       time.Time
}

// Journal keeps a record of fills outside the recovery log.
type Journal interface {
	Record(ctx context.Context, fill Fill) error
}

// Deps are the collaborators of an endpoint. Static, Feed and Dialer are
// required.
type Deps struct {
	Static  ops.Static
	Feed    feed.Feed
	Dialer  protocol.Dialer
	Metrics *obs.Metrics
	Journal Journal
	// Log replaces the file recovery log, mainly in tests.
	Log SnapshotLog
	// Now defaults to time.Now.
	Now func() time.Time
}

// Endpoint is one running exchange. The mutex guards the inventory, the
// tick counter and the recovery log so every change is logged in the order
// it was applied.
type Endpoint struct {
	name     string
	info     ops.Exchange
	static   ops.Static
	dialer   protocol.Dialer
	naming   *namingClient
	metrics  *obs.Metrics
	journal  Journal
	labeler  feed.Labeler
	seq      *obs.Sequence
	notifyQ  *bus.Queue[protocol.Notify]
	listed   map[string]*schedule
	start    time.Time
	firstDue time.Duration

	mu        sync.Mutex
	inventory *state.Inventory
	tick      int
	log       SnapshotLog
}

// Open loads the market data, registers with naming, restores the inventory
// from the recovery log and works out the current tick. The endpoint is
// ready for orders when Open returns; call Run to start the clock.
func Open(cfg Config, deps Deps) (*Endpoint, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Feed == nil || deps.Dialer == nil {
		return nil, exception.ErrNilInstance
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	info, err := deps.Static.Exchange(cfg.Exchange)
	if err != nil {
		return nil, err
	}
	regionName := cfg.Region
	if regionName == "" {
		regionName = info.Region
	}
	region, err := deps.Static.Region(regionName)
	if err != nil {
		return nil, err
	}

	securities, err := deps.Feed.Securities(info.Name)
	if err != nil {
		return nil, errors.Wrap(err, "list securities").With("exchange", info.Name)
	}
	listed := make(map[string]*schedule, len(securities))
	for _, sec := range securities {
		points, err := deps.Feed.Load(sec)
		if err != nil {
			return nil, errors.Wrap(err, "load market data").With("security", sec)
		}
		listed[sec] = newSchedule(points)
	}
	logs.Infof("%s: loaded %d securities", info.Name, len(listed))

	e := &Endpoint{
		name:    info.Name,
		info:    info,
		static:  deps.Static,
		dialer:  deps.Dialer,
		metrics: deps.Metrics,
		journal: deps.Journal,
		seq:     obs.NewSequence(0),
		notifyQ: bus.NewQueue[protocol.Notify](cfg.NotifyQueueSize),
		listed:  listed,
		naming: &namingClient{
			exchange: info.Name,
			primary:  region.Primary,
			backup:   region.Backup,
			dialer:   deps.Dialer,
		},
	}
	if l, ok := deps.Feed.(feed.Labeler); ok {
		e.labeler = l
	}

	startMs, err := e.naming.Register(protocol.Registration{
		ExchangeName: info.Name,
		Address:      info.Port,
		SecuritySet:  securities,
	})
	if err != nil {
		return nil, err
	}
	e.start = time.UnixMilli(startMs)

	logCfg := state.LogConfig{Dir: cfg.DataDir, Name: info.Name, NoSync: cfg.LogNoSync}
	recovered, err := state.RecoverInventory(logCfg, securities)
	if err != nil {
		return nil, err
	}
	e.inventory = recovered.Inventory
	if recovered.Found {
		logs.Infof("%s: restored inventory of %d securities from %s", info.Name, recovered.Inventory.Securities(), logCfg.Path())
	}

	e.tick, e.firstDue = Schedule(e.start, deps.Now(), deps.Static.TickLength())
	if e.start.After(deps.Now()) {
		logs.Infof("%s: market opens in %s", info.Name, e.firstDue.Round(time.Second))
	} else {
		logs.Infof("%s: market already open, joining at tick %d", info.Name, e.tick)
	}

	if deps.Log != nil {
		e.log = deps.Log
	} else {
		fileLog, err := state.OpenLog(logCfg)
		if err != nil {
			return nil, err
		}
		if err := fileLog.Compact(e.inventory.Snapshot(e.tick)); err != nil {
			_ = fileLog.Close()
			return nil, err
		}
		e.log = fileLog
	}
	return e, nil
}

// Name returns the exchange name.
func (e *Endpoint) Name() string { return e.name }

// Address returns the port the exchange is reached at.
func (e *Endpoint) Address() protocol.Address { return e.info.Port }

// StartTime returns the global start time handed out by naming.
func (e *Endpoint) StartTime() time.Time { return e.start }

// Tick returns the current tick.
func (e *Endpoint) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Available returns the quantity on hand of a hosted security.
func (e *Endpoint) Available(security string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inventory.Available(security)
}

// Hosts reports whether security is listed on this exchange.
func (e *Endpoint) Hosts(security string) bool {
	_, ok := e.listed[security]
	return ok
}

// Run drives the market clock and delivers down notifications until ctx is
// done.
func (e *Endpoint) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runClock(ctx, e.firstDue, e.static.TickLength(), e.Advance)
	})
	eg.Go(func() error {
		e.notifyQ.Run(ctx, e.deliverNotify)
		return nil
	})
	return eg.Wait()
}

// Close stops accepting notifications and closes the recovery log.
func (e *Endpoint) Close() error {
	e.notifyQ.Close()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.log.Close()
}

// Advance applies the incoming quantities of the current tick, logs the new
// inventory and moves to the next tick. If the snapshot cannot be written
// the replenishment is undone and the same tick is retried next time.
func (e *Endpoint) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := e.tick
	applied := make(map[string]int64)
	for sec, sched := range e.listed {
		qty := sched.incomingAt(tick)
		if qty <= 0 {
			continue
		}
		if err := e.inventory.Add(sec, qty); err != nil {
			logs.Warnf("%s: tick %d incoming %d %s skipped, err: %+v", e.name, tick, qty, sec, err)
			continue
		}
		applied[sec] = qty
	}
	if err := e.appendLocked(); err != nil {
		for sec, qty := range applied {
			_ = e.inventory.Add(sec, -qty)
		}
		logs.Errorf("%s: tick %d not applied, recovery log write failed, err: %+v", e.name, tick, err)
		return
	}
	e.tick = tick + 1
	e.metrics.IncTick()
}

func (e *Endpoint) appendLocked() error {
	err := e.log.Append(e.inventory.Snapshot(e.tick))
	e.metrics.IncLogAppend(err == nil)
	return err
}

func (e *Endpoint) label(tick int) string {
	if e.labeler == nil {
		return ""
	}
	return e.labeler.Label(tick)
}

// ExecuteOrder runs one order to completion. Client orders may trade any
// security or fund; orders from peers are only executed locally.
func (e *Endpoint) ExecuteOrder(ctx context.Context, req protocol.OrderRequest) protocol.OrderResponse {
	begin := time.Now()
	id := e.seq.Next()

	var (
		resp  protocol.OrderResponse
		route string
	)
	switch {
	case req.Src == protocol.SourceExchange && e.static.IsFund(req.SecurityName):
		route = obs.RouteLocal
		resp = protocol.Rejected(req, exception.ErrOrderPeerSourcedFund.Error())
	case req.Src == protocol.SourceExchange:
		route = obs.RouteLocal
		resp = e.executeLocal(ctx, req)
	case e.static.IsFund(req.SecurityName):
		route = obs.RouteFund
		resp = e.executeFund(ctx, id, req)
	case e.Hosts(req.SecurityName):
		route = obs.RouteLocal
		resp = e.executeLocal(ctx, req)
	default:
		route = obs.RouteRemote
		resp = e.executeRemote(req)
	}

	e.metrics.ObserveOrder(route, resp.Succeeded(), time.Since(begin))
	who := "peer"
	if req.Src == protocol.SourceClient {
		who = "client " + strconv.Itoa(req.ClientID)
	}
	logs.Infof("%s %s: #%d %s requested to %s %d %s %s %s",
		e.name, e.label(e.Tick()), id, who, req.Action.Verb(), req.Qty, req.SecurityName, resp.Price, resp.Result)
	return resp
}

// executeSecurity routes a single-security client order.
func (e *Endpoint) executeSecurity(ctx context.Context, req protocol.OrderRequest) protocol.OrderResponse {
	if e.Hosts(req.SecurityName) {
		return e.executeLocal(ctx, req)
	}
	return e.executeRemote(req)
}

// executeLocal trades against the inventory. Buying needs enough on hand;
// selling always succeeds. Nothing is acknowledged before it is logged.
func (e *Endpoint) executeLocal(ctx context.Context, req protocol.OrderRequest) protocol.OrderResponse {
	sched, ok := e.listed[req.SecurityName]
	if !ok {
		return protocol.Rejected(req, exception.ErrOrderUnknownSecurity.Error())
	}

	e.mu.Lock()
	tick := e.tick
	price, err := sched.priceAt(tick)
	if err != nil {
		e.mu.Unlock()
		return protocol.Rejected(req, err.Error())
	}
	if err := e.inventory.Apply(req.Action, req.SecurityName, req.Qty); err != nil {
		avail := e.inventory.Available(req.SecurityName)
		e.mu.Unlock()
		logs.Infof("%s: %s %d %s rejected, %d available", e.name, req.Action.Verb(), req.Qty, req.SecurityName, avail)
		return protocol.Rejected(req, err.Error())
	}
	if err := e.appendLocked(); err != nil {
		e.inventory.Revert(req.Action, req.SecurityName, req.Qty)
		e.mu.Unlock()
		logs.Errorf("%s: %s %d %s not acknowledged, recovery log write failed, err: %+v", e.name, req.Action.Verb(), req.Qty, req.SecurityName, err)
		return protocol.Rejected(req, exception.ErrOrderLogWrite.Error())
	}
	e.mu.Unlock()

	e.record(ctx, Fill{
		Exchange: e.name,
		Security: req.SecurityName,
		Action:   req.Action,
		Qty:      req.Qty,
		Price:    price,
		Currency: e.info.Currency,
		Tick:     tick,
		Source:   req.Src,
		ClientID: req.ClientID,
		At:       time.Now().UTC(),
	})
	return protocol.Filled(req, formatPrice(price, e.info.Currency, e.info.Rate, e.static.ReferenceCurrency()))
}

func (e *Endpoint) record(ctx context.Context, fill Fill) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, fill); err != nil {
		logs.Warnf("%s: journal fill of %s failed, err: %+v", e.name, fill.Security, err)
	}
}

// executeRemote resolves the hosting exchange and forwards the order to it
// as a peer order. An unreachable peer is reported to naming.
func (e *Endpoint) executeRemote(req protocol.OrderRequest) protocol.OrderResponse {
	res, err := e.naming.Resolve(req.SecurityName)
	if err != nil {
		logs.Warnf("%s: resolve %s failed, err: %+v", e.name, req.SecurityName, err)
		return protocol.Rejected(req, exception.ErrOrderNotFound.Error())
	}
	if !res.Found() || res.ExchangeAddress == e.info.Port {
		return protocol.Rejected(req, exception.ErrOrderNotFound.Error())
	}

	resp, err := e.forward(res.ExchangeAddress, req)
	if err == nil {
		return resp
	}
	if protocol.IsProtocolError(err) || stderrors.Is(err, errPeerRejected) {
		logs.Warnf("%s: peer %s at %d refused %s, err: %+v", e.name, res.ExchangeName, res.ExchangeAddress, req.SecurityName, err)
		return protocol.Rejected(req, err.Error())
	}

	logs.Warnf("%s: peer %s at %d unreachable, err: %+v", e.name, res.ExchangeName, res.ExchangeAddress, err)
	e.reportDown(res.ExchangeAddress, req.SecurityName)
	return protocol.Rejected(req, exception.ErrPeerUnreachable.Error())
}

var errPeerRejected = stderrors.New("exchange: peer answered with an error")

func (e *Endpoint) forward(addr protocol.Address, req protocol.OrderRequest) (protocol.OrderResponse, error) {
	conn, err := protocol.Open(e.dialer, addr)
	if err != nil {
		return protocol.OrderResponse{}, err
	}
	defer conn.Close()

	if err := conn.WriteMessage(protocol.OrderRequest{
		Src:          protocol.SourceExchange,
		Action:       req.Action,
		SecurityName: req.SecurityName,
		Qty:          req.Qty,
	}); err != nil {
		return protocol.OrderResponse{}, err
	}
	msg, err := conn.ReadMessage()
	if err != nil {
		return protocol.OrderResponse{}, err
	}
	switch m := msg.(type) {
	case protocol.OrderResponse:
		return m, nil
	case protocol.ErrorResponse:
		return protocol.OrderResponse{}, fmt.Errorf("%w: %s", errPeerRejected, m.Reason)
	default:
		return protocol.OrderResponse{}, fmt.Errorf("%w: unexpected %s", errPeerRejected, msg.Kind())
	}
}

func (e *Endpoint) reportDown(addr protocol.Address, security string) {
	n := protocol.Notify{Src: protocol.SourceExchange, DownAddress: addr, SecurityName: security}
	if err := e.notifyQ.TryPublish(n); err != nil {
		e.metrics.IncNotifyDrop()
		logs.Warnf("%s: down notification for %d dropped, err: %+v", e.name, addr, err)
	}
}

func (e *Endpoint) deliverNotify(n protocol.Notify) {
	if err := e.naming.Notify(n); err != nil {
		logs.Warnf("%s: notify naming of %d failed, err: %+v", e.name, n.DownAddress, err)
	}
}
