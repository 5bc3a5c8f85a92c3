package simulator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stockex/internal/feed"
	"stockex/internal/ops"
	"stockex/internal/protocol"
)

const (
	minRandomPeriod = 2 * time.Second
	maxRandomPeriod = 5 * time.Second
)

// Config describes one simulated client.
type Config struct {
	ClientID  int
	Exchange  string
	Rounds    int
	Period    time.Duration
	Generator GeneratorConfig
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.ClientID <= 0 {
		return fmt.Errorf("invalid client config: ClientID must be > 0")
	}
	if c.Rounds < 0 {
		return fmt.Errorf("invalid client config: Rounds must be >= 0")
	}
	if c.Period < 0 {
		return fmt.Errorf("invalid client config: Period must be >= 0")
	}
	return nil
}

// Stats counts what a client saw.
type Stats struct {
	Sent      int64
	Succeeded int64
	Rejected  int64
	Failed    int64
}

// UniverseOf lists every exchange, listed security and fund.
func UniverseOf(static ops.Static, f feed.Feed) (Universe, error) {
	var u Universe
	for _, ex := range static.Exchanges() {
		u.Exchanges = append(u.Exchanges, ex.Name)
		secs, err := f.Securities(ex.Name)
		if err != nil {
			return Universe{}, errors.Wrap(err, "list securities").With("exchange", ex.Name)
		}
		u.Securities = append(u.Securities, secs...)
	}
	u.Funds = static.Funds()
	return u, nil
}

// Client keeps one connection to its exchange and sends an order every
// period. A broken connection is dropped and dialed again next round.
type Client struct {
	cfg      Config
	gen      *Generator
	dialer   protocol.Dialer
	exchange string
	addr     protocol.Address
	conn     *protocol.Conn

	sent      atomic.Int64
	succeeded atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// New creates a client. Without a configured exchange one is picked at
// random from the universe.
func New(cfg Config, static ops.Static, dialer protocol.Dialer, universe Universe) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := NewGenerator(cfg.Generator, universe)
	if err != nil {
		return nil, err
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = gen.Exchange()
	}
	addr, err := static.PortOf(exchange)
	if err != nil {
		return nil, err
	}
	if cfg.Period == 0 {
		span := int64(maxRandomPeriod - minRandomPeriod)
		cfg.Period = minRandomPeriod + time.Duration(gen.rng.Int63n(span))
	}
	return &Client{
		cfg:      cfg,
		gen:      gen,
		dialer:   dialer,
		exchange: exchange,
		addr:     addr,
	}, nil
}

// Exchange returns the exchange this client trades on.
func (c *Client) Exchange() string { return c.exchange }

// Period returns the time between two orders.
func (c *Client) Period() time.Duration { return c.cfg.Period }

// Stats returns a copy of the counters.
func (c *Client) Stats() Stats {
	return Stats{
		Sent:      c.sent.Load(),
		Succeeded: c.succeeded.Load(),
		Rejected:  c.rejected.Load(),
		Failed:    c.failed.Load(),
	}
}

// Submit sends one order and waits for its response. It is not safe for
// concurrent use; Run calls it from a single goroutine.
func (c *Client) Submit(req protocol.OrderRequest) (protocol.OrderResponse, error) {
	c.sent.Add(1)
	if c.conn == nil {
		conn, err := protocol.Open(c.dialer, c.addr)
		if err != nil {
			c.failed.Add(1)
			return protocol.OrderResponse{}, errors.Wrap(err, "connect exchange").With("exchange", c.exchange)
		}
		c.conn = conn
	}

	resp, err := protocol.Call[protocol.OrderResponse](c.conn, req)
	if err != nil {
		c.failed.Add(1)
		_ = c.conn.Close()
		c.conn = nil
		return protocol.OrderResponse{}, err
	}
	if resp.Succeeded() {
		c.succeeded.Add(1)
	} else {
		c.rejected.Add(1)
	}
	return resp, nil
}

// Run sends orders until ctx is done or the configured rounds are used up.
// The first order goes out immediately.
func (c *Client) Run(ctx context.Context) error {
	defer c.Close()

	ticker := time.NewTicker(c.cfg.Period)
	defer ticker.Stop()

	for round := 1; c.cfg.Rounds == 0 || round <= c.cfg.Rounds; round++ {
		if ctx.Err() != nil {
			return nil
		}
		c.round()
		if c.cfg.Rounds != 0 && round == c.cfg.Rounds {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Client) round() {
	req := c.gen.Next(c.cfg.ClientID)
	resp, err := c.Submit(req)
	if err != nil {
		logs.Warnf("client %d: %s %d %s on %s failed, reconnecting next round, err: %+v",
			c.cfg.ClientID, req.Action, req.Qty, req.SecurityName, c.exchange, err)
		return
	}
	logs.Infof("client %d requested %s %s %d %s %s",
		c.cfg.ClientID, req.Action, req.SecurityName, req.Qty, resp.Result, resp.Price)
}

// Close drops the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
