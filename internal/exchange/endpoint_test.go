package exchange

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockex/internal/feed"
	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

func TestSchedule(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	cases := []struct {
		name  string
		now   time.Time
		tick  int
		delay time.Duration
	}{
		{"exact multiple", start.Add(5000 * time.Millisecond), 6, 0},
		{"mid tick", start.Add(5300 * time.Millisecond), 7, 700 * time.Millisecond},
		{"at start", start, 1, 0},
		{"before start", start.Add(-2 * time.Second), 1, 2 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tick, delay := Schedule(start, tc.now, time.Second)
			assert.Equal(t, tc.tick, tick)
			assert.Equal(t, tc.delay, delay)
		})
	}
}

func TestPriceLookup(t *testing.T) {
	s := newSchedule([]feed.Point{
		{Tick: 5, Price: decimal.NewFromInt(50), Incoming: 2},
		{Tick: 2, Price: decimal.NewFromInt(20), Incoming: 7},
	})
	for tick, want := range map[int]int64{1: 20, 2: 20, 3: 20, 5: 50, 9: 50} {
		p, err := s.priceAt(tick)
		require.NoError(t, err)
		assert.True(t, p.Equal(decimal.NewFromInt(want)), "tick %d", tick)
	}
	assert.Equal(t, int64(7), s.incomingAt(2))
	assert.Equal(t, int64(0), s.incomingAt(3))

	_, err := newSchedule(nil).priceAt(1)
	assert.ErrorIs(t, err, exception.ErrOrderNoPrice)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "12.5 EUR (= 13.88 USD)", formatPrice(decimal.RequireFromString("12.5"), "EUR", decimal.RequireFromString("1.11"), "USD"))
	assert.Equal(t, "150000 JPY (= 1,350.00 USD)", formatPrice(decimal.NewFromInt(150000), "JPY", decimal.RequireFromString("0.0090"), "USD"))
	assert.Equal(t, "1,234,567.89", groupThousands("1234567.89"))
	assert.Equal(t, "-1,234.50", groupThousands("-1234.50"))
	assert.Equal(t, "999.00", groupThousands("999.00"))
}

func TestLocalOrders(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	ctx := context.Background()

	resp := a.ExecuteOrder(ctx, sell("X", 100))
	require.True(t, resp.Succeeded())
	assert.Equal(t, "12.5 EUR (= 13.88 USD)", resp.Price)

	resp = a.ExecuteOrder(ctx, buy("X", 60))
	require.True(t, resp.Succeeded())
	assert.Equal(t, int64(40), a.Available("X"))

	resp = a.ExecuteOrder(ctx, buy("X", 41))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderInsufficientInventory.Error(), resp.Reason)
	assert.Equal(t, int64(40), a.Available("X"))

	resp = a.ExecuteOrder(ctx, buy("X", 0))
	assert.True(t, resp.Succeeded())
}

func TestInventoryInvariantUnderConcurrency(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	ctx := context.Background()
	require.True(t, a.ExecuteOrder(ctx, sell("X", 1000)).Succeeded())

	const (
		workers = 8
		rounds  = 100
		ticks   = 20
	)
	var (
		wg     sync.WaitGroup
		bought atomic.Int64
		sold   atomic.Int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if (i+r)%2 == 0 {
					if a.ExecuteOrder(ctx, buy("X", 7)).Succeeded() {
						bought.Add(7)
					}
					continue
				}
				if a.ExecuteOrder(ctx, sell("X", 3)).Succeeded() {
					sold.Add(3)
				}
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			a.Advance()
		}
	}()
	wg.Wait()

	assert.Equal(t, 1+ticks, a.Tick())
	assert.Equal(t, 1000+sold.Load()-bought.Load()+ticks*5, a.Available("X"))
	assert.GreaterOrEqual(t, a.Available("X"), int64(0))
}

func TestFundRollsBackOnRejectedLeg(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	ctx := context.Background()
	a.ExecuteOrder(ctx, sell("X", 100))
	a.ExecuteOrder(ctx, sell("Y", 10))
	a.ExecuteOrder(ctx, sell("Z", 100))

	resp := a.ExecuteOrder(ctx, buy("Basket", 100))
	assert.False(t, resp.Succeeded())
	assert.Contains(t, resp.Reason, "leg Y")

	assert.Equal(t, int64(100), a.Available("X"))
	assert.Equal(t, int64(10), a.Available("Y"))
	assert.Equal(t, int64(100), a.Available("Z"))
}

func TestFundFilled(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	ctx := context.Background()
	for _, sec := range []string{"X", "Y", "Z"} {
		a.ExecuteOrder(ctx, sell(sec, 100))
	}

	resp := a.ExecuteOrder(ctx, buy("Basket", 100))
	require.True(t, resp.Succeeded())
	assert.Equal(t, []string{"X", "Y", "Z"}, resp.Filled)
	assert.Equal(t, int64(80), a.Available("X"))
	assert.Equal(t, int64(70), a.Available("Y"))
	assert.Equal(t, int64(50), a.Available("Z"))
}

func TestFundAcrossExchanges(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	b := w.open("B")
	ctx := context.Background()
	a.ExecuteOrder(ctx, sell("X", 100))
	b.ExecuteOrder(ctx, sell("Q", 100))

	resp := a.ExecuteOrder(ctx, buy("Spread", 60))
	require.True(t, resp.Succeeded())
	assert.Equal(t, int64(70), a.Available("X"))
	assert.Equal(t, int64(70), b.Available("Q"))

	require.True(t, a.ExecuteOrder(ctx, sell("X", 100)).Succeeded())
	resp = a.ExecuteOrder(ctx, buy("Spread", 160))
	assert.False(t, resp.Succeeded())
	assert.Contains(t, resp.Reason, "leg Q")
	assert.Equal(t, int64(170), a.Available("X"))
	assert.Equal(t, int64(70), b.Available("Q"))
}

func TestRemoteOrderForwarded(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	b := w.open("B")
	ctx := context.Background()

	resp := a.ExecuteOrder(ctx, sell("Q", 30))
	require.True(t, resp.Succeeded())
	assert.Equal(t, "100 USD (= 100.00 USD)", resp.Price)
	assert.Equal(t, int64(30), b.Available("Q"))

	resp = a.ExecuteOrder(ctx, buy("Q", 31))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, int64(30), b.Available("Q"))
}

func TestPeerOrdersStayLocal(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	w.open("B")
	ctx := context.Background()

	resp := a.ExecuteOrder(ctx, order(protocol.SourceExchange, protocol.ActionSell, "Q", 1))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderUnknownSecurity.Error(), resp.Reason)
	assert.Equal(t, 0, w.net.Dials(portB))

	resp = a.ExecuteOrder(ctx, order(protocol.SourceExchange, protocol.ActionBuy, "Basket", 10))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderPeerSourcedFund.Error(), resp.Reason)
}

func TestUnknownSecurityNotFound(t *testing.T) {
	w := newWorld(t)
	node := w.startNaming(false, 0)
	a := w.open("A")

	resp := a.ExecuteOrder(context.Background(), buy("Nothing", 1))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderNotFound.Error(), resp.Reason)
	assert.Len(t, node.Entries(), 1)
}

func TestDeadPeerIsReported(t *testing.T) {
	w := newWorld(t)
	node := w.startNaming(false, 0)
	a := w.open("A")
	w.open("B")
	w.net.Down(portB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	resp := a.ExecuteOrder(ctx, buy("Q", 1))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrPeerUnreachable.Error(), resp.Reason)

	assert.Eventually(t, func() bool {
		for _, e := range node.Entries() {
			if e.Exchange == "B" {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecoveryRestoresInventory(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	dir := t.TempDir()
	withDir := func(c *Config, _ *Deps) { c.DataDir = dir }
	ctx := context.Background()

	a := w.open("A", withDir)
	require.True(t, a.ExecuteOrder(ctx, sell("X", 300)).Succeeded())
	require.True(t, a.ExecuteOrder(ctx, buy("X", 50)).Succeeded())
	require.NoError(t, a.Close())

	again := w.open("A", withDir)
	assert.Equal(t, int64(250), again.Available("X"))
	assert.Equal(t, int64(0), again.Available("Y"))
}

func TestCatchUpAfterLateStart(t *testing.T) {
	w := newWorld(t)
	start := int64(1_700_000_000_000)
	w.startNaming(false, start)

	a := w.open("A", func(_ *Config, d *Deps) {
		d.Now = func() time.Time { return time.UnixMilli(start + 5000) }
	})
	assert.Equal(t, 6, a.Tick())
	assert.Equal(t, time.Duration(0), a.firstDue)
	assert.Equal(t, time.UnixMilli(start), a.StartTime())
}

func TestRegisterFallsBackToBackup(t *testing.T) {
	w := newWorld(t)
	backup := w.startNaming(true, 0)

	a := w.open("A")
	assert.Equal(t, time.UnixMilli(backup.StartTime()), a.StartTime())
	require.Len(t, backup.Entries(), 1)
	assert.True(t, backup.Entries()[0].Authoritative)
}

func TestRegisterFailsWithoutNaming(t *testing.T) {
	w := newWorld(t)
	_, err := Open(Config{Exchange: "A", DataDir: t.TempDir()}, Deps{Static: w.static, Feed: w.feed, Dialer: w.net})
	assert.Error(t, err)
}

func TestLogFailureRejects(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	log := &flakyLog{}
	a := w.open("A", func(_ *Config, d *Deps) { d.Log = log })
	ctx := context.Background()

	require.True(t, a.ExecuteOrder(ctx, sell("X", 10)).Succeeded())

	log.fail.Store(true)
	resp := a.ExecuteOrder(ctx, sell("X", 10))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderLogWrite.Error(), resp.Reason)
	assert.Equal(t, int64(10), a.Available("X"))

	a.Advance()
	assert.Equal(t, 1, a.Tick())
	assert.Equal(t, int64(10), a.Available("X"))

	log.fail.Store(false)
	a.Advance()
	assert.Equal(t, 2, a.Tick())
	assert.Equal(t, int64(15), a.Available("X"))
	assert.Equal(t, int64(2), log.appends.Load())
}

func TestJournalReceivesFills(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	j := &memJournal{fills: make(chan Fill, 4)}
	a := w.open("A", func(_ *Config, d *Deps) { d.Journal = j })

	require.True(t, a.ExecuteOrder(context.Background(), sell("Z", 4)).Succeeded())
	fill := <-j.fills
	assert.Equal(t, "Z", fill.Security)
	assert.Equal(t, int64(4), fill.Qty)
	assert.Equal(t, "EUR", fill.Currency)
	assert.True(t, fill.Price.Equal(decimal.RequireFromString("7.25")))
}

func TestSellCannotOverflowInventory(t *testing.T) {
	w := newWorld(t)
	w.startNaming(false, 0)
	a := w.open("A")
	ctx := context.Background()

	require.True(t, a.ExecuteOrder(ctx, sell("X", math.MaxInt64)).Succeeded())
	resp := a.ExecuteOrder(ctx, sell("X", math.MaxInt64))
	assert.False(t, resp.Succeeded())
	assert.Equal(t, exception.ErrOrderInventoryOverflow.Error(), resp.Reason)
	assert.Equal(t, int64(math.MaxInt64), a.Available("X"))

	a.Advance()
	assert.Equal(t, 2, a.Tick())
	assert.Equal(t, int64(math.MaxInt64), a.Available("X"))
	assert.Equal(t, int64(5), a.Available("Y"))
}
