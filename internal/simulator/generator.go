package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"stockex/internal/protocol"
)

const defaultMaxQty = 400

// ActionRandom in a fixed order picks Buy or Sell each round.
const ActionRandom protocol.Action = "R"

// Fixed describes an order repeated every round.
type Fixed struct {
	Action   protocol.Action
	Security string
	Qty      int64
}

// GeneratorConfig controls the random order stream.
type GeneratorConfig struct {
	Seed     int64
	MaxQty   int64
	FundRate float64
	Fixed    *Fixed
}

// Validate ensures the config is within supported ranges.
func (c GeneratorConfig) Validate() error {
	if c.MaxQty < 0 {
		return fmt.Errorf("maxQty must be >= 0")
	}
	if c.FundRate < 0 || c.FundRate > 1 {
		return fmt.Errorf("fundRate must be between 0 and 1")
	}
	if f := c.Fixed; f != nil {
		if f.Action != ActionRandom && !f.Action.Valid() {
			return fmt.Errorf("fixed action must be B, S or R, got %q", f.Action)
		}
		if strings.TrimSpace(f.Security) == "" {
			return fmt.Errorf("fixed security is empty")
		}
		if f.Qty < 0 {
			return fmt.Errorf("fixed qty must be >= 0")
		}
	}
	return nil
}

// Universe is what a generator may trade.
type Universe struct {
	Exchanges  []string
	Securities []string
	Funds      []string
}

// Generator produces client orders from a seeded source, so a run can be
// replayed by reusing its seed.
type Generator struct {
	cfg      GeneratorConfig
	rng      *rand.Rand
	universe Universe
}

// NewGenerator creates a generator with validation.
func NewGenerator(cfg GeneratorConfig, universe Universe) (*Generator, error) {
	if cfg.MaxQty == 0 {
		cfg.MaxQty = defaultMaxQty
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Fixed == nil && len(universe.Securities) == 0 && len(universe.Funds) == 0 {
		return nil, fmt.Errorf("nothing to trade")
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Generator{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		universe: universe,
	}, nil
}

// Seed returns the seed in use.
func (g *Generator) Seed() int64 { return g.cfg.Seed }

// Exchange picks an exchange to connect to, or "" when none are known.
func (g *Generator) Exchange() string {
	if len(g.universe.Exchanges) == 0 {
		return ""
	}
	return g.universe.Exchanges[g.rng.Intn(len(g.universe.Exchanges))]
}

// Next returns the next order for clientID.
func (g *Generator) Next(clientID int) protocol.OrderRequest {
	req := protocol.OrderRequest{Src: protocol.SourceClient, ClientID: clientID}
	if f := g.cfg.Fixed; f != nil {
		req.Action = f.Action
		if f.Action == ActionRandom {
			req.Action = g.action()
		}
		req.SecurityName = f.Security
		req.Qty = f.Qty
		return req
	}

	req.Action = g.action()
	req.SecurityName = g.pick()
	req.Qty = 1 + g.rng.Int63n(g.cfg.MaxQty)
	return req
}

func (g *Generator) action() protocol.Action {
	if g.rng.Intn(2) > 0 {
		return protocol.ActionBuy
	}
	return protocol.ActionSell
}

func (g *Generator) pick() string {
	funds, secs := g.universe.Funds, g.universe.Securities
	if len(funds) > 0 && (len(secs) == 0 || g.rng.Float64() < g.cfg.FundRate) {
		return funds[g.rng.Intn(len(funds))]
	}
	return secs[g.rng.Intn(len(secs))]
}
