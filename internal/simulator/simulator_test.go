package simulator

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockex/internal/feed"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/internal/protocol/memnet"
)

func testStatic(t *testing.T) ops.Static {
	static, err := ops.Build(ops.FileConfig{
		Chain: []ops.RegionConfig{{Name: "East", Port: 7000}},
		Exchanges: []ops.ExchangeConfig{
			{Name: "Alpha", Port: 7100, Currency: "USD", Rate: decimal.NewFromInt(1), Region: "East"},
			{Name: "Beta", Port: 7101, Currency: "USD", Rate: decimal.NewFromInt(1), Region: "East"},
		},
		Funds: []ops.FundConfig{{Name: "Pair", Legs: []ops.LegConfig{
			{Security: "Ant", Weight: decimal.RequireFromString("0.5")},
			{Security: "Bee", Weight: decimal.RequireFromString("0.5")},
		}}},
	})
	require.NoError(t, err)
	return static
}

func testUniverse() Universe {
	return Universe{
		Exchanges:  []string{"Alpha", "Beta"},
		Securities: []string{"Ant", "Bee", "Cat"},
		Funds:      []string{"Pair"},
	}
}

// fakeExchange fills buys and rejects sells.
func fakeExchange(orders *atomic.Int64) memnet.Handler {
	return func(raw net.Conn) {
		conn := protocol.NewConn(raw)
		defer conn.Close()
		for {
			req, err := protocol.Expect[protocol.OrderRequest](conn)
			if err != nil {
				return
			}
			orders.Add(1)
			resp := protocol.Filled(req, "1 USD (= 1.00 USD)")
			if req.Action == protocol.ActionSell {
				resp = protocol.Rejected(req, "no")
			}
			if err := conn.WriteMessage(resp); err != nil {
				return
			}
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a, err := NewGenerator(GeneratorConfig{Seed: 42, FundRate: 0.3}, testUniverse())
	require.NoError(t, err)
	b, err := NewGenerator(GeneratorConfig{Seed: 42, FundRate: 0.3}, testUniverse())
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		x, y := a.Next(7), b.Next(7)
		require.Equal(t, x, y)
		assert.Equal(t, protocol.SourceClient, x.Src)
		assert.Equal(t, 7, x.ClientID)
		assert.True(t, x.Action.Valid())
		assert.GreaterOrEqual(t, x.Qty, int64(1))
		assert.LessOrEqual(t, x.Qty, int64(defaultMaxQty))
		assert.Contains(t, []string{"Ant", "Bee", "Cat", "Pair"}, x.SecurityName)
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestGeneratorFundRate(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Seed: 1, FundRate: 1}, testUniverse())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.Equal(t, "Pair", g.Next(1).SecurityName)
	}

	g, err = NewGenerator(GeneratorConfig{Seed: 1}, testUniverse())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		assert.NotEqual(t, "Pair", g.Next(1).SecurityName)
	}
}

func TestGeneratorFixed(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{Seed: 3, Fixed: &Fixed{Action: ActionRandom, Security: "Cat", Qty: 10}}, Universe{})
	require.NoError(t, err)
	seen := map[protocol.Action]bool{}
	for i := 0; i < 50; i++ {
		req := g.Next(1)
		assert.Equal(t, "Cat", req.SecurityName)
		assert.Equal(t, int64(10), req.Qty)
		seen[req.Action] = true
	}
	assert.Equal(t, map[protocol.Action]bool{protocol.ActionBuy: true, protocol.ActionSell: true}, seen)

	g, err = NewGenerator(GeneratorConfig{Fixed: &Fixed{Action: protocol.ActionSell, Security: "Cat", Qty: 1}}, Universe{})
	require.NoError(t, err)
	assert.Equal(t, protocol.ActionSell, g.Next(1).Action)
}

func TestGeneratorValidation(t *testing.T) {
	cases := []GeneratorConfig{
		{MaxQty: -1},
		{FundRate: 1.5},
		{Fixed: &Fixed{Action: "X", Security: "Cat"}},
		{Fixed: &Fixed{Action: protocol.ActionBuy}},
		{Fixed: &Fixed{Action: protocol.ActionBuy, Security: "Cat", Qty: -1}},
	}
	for _, cfg := range cases {
		_, err := NewGenerator(cfg, testUniverse())
		assert.Error(t, err, "%+v", cfg)
	}
	_, err := NewGenerator(GeneratorConfig{}, Universe{})
	assert.Error(t, err)
}

func TestUniverseOf(t *testing.T) {
	f := feed.NewStatic().
		Add("Alpha", "Ant", feed.Point{Tick: 1, Price: decimal.NewFromInt(1)}).
		Add("Beta", "Bee", feed.Point{Tick: 1, Price: decimal.NewFromInt(2)})
	u, err := UniverseOf(testStatic(t), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, u.Exchanges)
	assert.ElementsMatch(t, []string{"Ant", "Bee"}, u.Securities)
	assert.Equal(t, []string{"Pair"}, u.Funds)
}

func TestClientRunsRoundsOnOneConnection(t *testing.T) {
	network := memnet.New()
	var orders atomic.Int64
	network.Listen(7100, fakeExchange(&orders))

	c, err := New(Config{ClientID: 1, Exchange: "Alpha", Rounds: 5, Period: 1, Generator: GeneratorConfig{Seed: 9}},
		testStatic(t), network, testUniverse())
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	stats := c.Stats()
	assert.Equal(t, int64(5), stats.Sent)
	assert.Equal(t, int64(5), stats.Succeeded+stats.Rejected)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, int64(5), orders.Load())
	assert.Equal(t, 1, network.Dials(7100))
}

func TestClientReconnects(t *testing.T) {
	network := memnet.New()
	var orders atomic.Int64

	c, err := New(Config{ClientID: 2, Generator: GeneratorConfig{Seed: 5}}, testStatic(t), network, testUniverse())
	require.NoError(t, err)
	assert.Contains(t, []string{"Alpha", "Beta"}, c.Exchange())
	assert.GreaterOrEqual(t, c.Period(), minRandomPeriod)
	assert.Less(t, c.Period(), maxRandomPeriod)
	port, err := testStatic(t).PortOf(c.Exchange())
	require.NoError(t, err)

	buy := protocol.OrderRequest{Src: protocol.SourceClient, ClientID: 2, Action: protocol.ActionBuy, SecurityName: "Ant", Qty: 1}
	_, err = c.Submit(buy)
	assert.Error(t, err)

	network.Listen(port, fakeExchange(&orders))
	resp, err := c.Submit(buy)
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	require.NoError(t, c.Close())

	assert.Equal(t, Stats{Sent: 2, Succeeded: 1, Failed: 1}, c.Stats())
	assert.Equal(t, 2, network.Dials(port))
}

func TestClientStopsOnCancel(t *testing.T) {
	network := memnet.New()
	var orders atomic.Int64
	network.Listen(7101, fakeExchange(&orders))

	c, err := New(Config{ClientID: 3, Exchange: "Beta"}, testStatic(t), network, testUniverse())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Run(ctx))
	assert.Equal(t, int64(0), orders.Load())

	_, err = New(Config{ClientID: 0}, testStatic(t), network, testUniverse())
	assert.Error(t, err)
	_, err = New(Config{ClientID: 1, Exchange: "Gamma"}, testStatic(t), network, testUniverse())
	assert.Error(t, err)
}
