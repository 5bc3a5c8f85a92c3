package exchange

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockex/internal/feed"
	"stockex/internal/naming"
	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/internal/protocol/memnet"
	"stockex/internal/state"
)

const (
	portA      protocol.Address = 6000
	portB      protocol.Address = 6001
	namingPort protocol.Address = 5000
)

type world struct {
	t      *testing.T
	net    *memnet.Network
	static ops.Static
	feed   *feed.Static
}

func newWorld(t *testing.T) *world {
	static, err := ops.Build(ops.FileConfig{
		TickLengthMs: 1000,
		Chain:        []ops.RegionConfig{{Name: "West", Port: int(namingPort)}},
		Exchanges: []ops.ExchangeConfig{
			{Name: "A", Port: int(portA), Currency: "EUR", Rate: decimal.RequireFromString("1.11"), Region: "West"},
			{Name: "B", Port: int(portB), Currency: "USD", Rate: decimal.NewFromInt(1), Region: "West"},
		},
		Funds: []ops.FundConfig{
			{Name: "Basket", Legs: []ops.LegConfig{
				{Security: "X", Weight: decimal.RequireFromString("0.2")},
				{Security: "Y", Weight: decimal.RequireFromString("0.3")},
				{Security: "Z", Weight: decimal.RequireFromString("0.5")},
			}},
			{Name: "Spread", Legs: []ops.LegConfig{
				{Security: "X", Weight: decimal.RequireFromString("0.5")},
				{Security: "Q", Weight: decimal.RequireFromString("0.5")},
			}},
		},
	})
	require.NoError(t, err)

	points := func(price string) []feed.Point {
		out := make([]feed.Point, 0, 50)
		for tick := 1; tick <= 50; tick++ {
			out = append(out, feed.Point{Tick: tick, Price: decimal.RequireFromString(price), Incoming: 5})
		}
		return out
	}
	f := feed.NewStatic().
		Add("A", "X", points("12.5")...).
		Add("A", "Y", points("3")...).
		Add("A", "Z", points("7.25")...).
		Add("B", "Q", points("100")...)

	return &world{t: t, net: memnet.New(), static: static, feed: f}
}

// startNaming runs the West naming instance. A non-zero startMs is written
// to its start time file first.
func (w *world) startNaming(backup bool, startMs int64) *naming.Node {
	dir := w.t.TempDir()
	cfg := naming.Config{Region: "West", Backup: backup, DataDir: dir}
	if startMs > 0 {
		path := naming.StartTimePath(dir, cfg.InstanceName())
		require.NoError(w.t, os.WriteFile(path, []byte(strconv.FormatInt(startMs, 10)), 0o644))
	}
	node, err := naming.New(cfg, w.static, w.net, nil)
	require.NoError(w.t, err)
	w.net.Listen(node.Address(), naming.NewServer(node).ServeConn)
	return node
}

func (w *world) open(exchange string, opts ...func(*Config, *Deps)) *Endpoint {
	cfg := Config{Exchange: exchange, DataDir: w.t.TempDir(), LogNoSync: true}
	deps := Deps{
		Static:  w.static,
		Feed:    w.feed,
		Dialer:  w.net,
		Metrics: obs.NewMetrics("exchange", exchange),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	e, err := Open(cfg, deps)
	require.NoError(w.t, err)
	w.net.Listen(e.Address(), NewServer(e).ServeConn)
	w.t.Cleanup(func() { _ = e.Close() })
	return e
}

func order(src protocol.Source, action protocol.Action, security string, qty int64) protocol.OrderRequest {
	return protocol.OrderRequest{Src: src, ClientID: 1, Action: action, SecurityName: security, Qty: qty}
}

func buy(security string, qty int64) protocol.OrderRequest {
	return order(protocol.SourceClient, protocol.ActionBuy, security, qty)
}

func sell(security string, qty int64) protocol.OrderRequest {
	return order(protocol.SourceClient, protocol.ActionSell, security, qty)
}

type flakyLog struct {
	fail    atomic.Bool
	appends atomic.Int64
}

func (l *flakyLog) Append(state.Snapshot) error {
	if l.fail.Load() {
		return errors.New("disk full")
	}
	l.appends.Add(1)
	return nil
}

func (l *flakyLog) Close() error { return nil }

type memJournal struct {
	fills chan Fill
}

func (j *memJournal) Record(_ context.Context, f Fill) error {
	j.fills <- f
	return nil
}
