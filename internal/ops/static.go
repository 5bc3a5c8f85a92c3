package ops

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

// Exchange is the static description of one exchange.
type Exchange struct {
	Name     string
	Port     protocol.Address
	Currency string
	// Rate converts one unit of Currency into the reference currency.
	Rate   decimal.Decimal
	Region string
}

// Region is one link of the naming chain.
type Region struct {
	Name     string
	Position int
	Primary  protocol.Address
	Backup   protocol.Address
}

// Leg is one security of a fund with its weight.
type Leg struct {
	Security string
	Weight   decimal.Decimal
}

// Qty returns floor(qty * weight).
func (l Leg) Qty(qty int64) int64 {
	return decimal.NewFromInt(qty).Mul(l.Weight).Floor().IntPart()
}

// Fund is a composite order definition.
type Fund struct {
	Name string
	Legs []Leg
}

// Static holds the immutable tables shared by every component. The zero
// value is empty; use Build, Load or Default.
type Static struct {
	host          string
	reference     string
	tickLength    time.Duration
	chain         []Region
	regions       map[string]int
	positions     map[protocol.Address]int
	exchanges     map[string]Exchange
	exchangeOrder []string
	funds         map[string]Fund
}

// Host is the simulation host every address lives on.
func (s Static) Host() string { return s.host }

// ReferenceCurrency is the currency prices are converted into.
func (s Static) ReferenceCurrency() string { return s.reference }

// TickLength is the wall-clock duration of one market tick.
func (s Static) TickLength() time.Duration { return s.tickLength }

// Chain returns the naming chain from left to right.
func (s Static) Chain() []Region {
	return slices.Clone(s.chain)
}

// Region returns the region by name.
func (s Static) Region(name string) (Region, error) {
	i, ok := s.regions[name]
	if !ok {
		return Region{}, fmt.Errorf("%s: %w", name, exception.ErrConfigUnknownRegion)
	}
	return s.chain[i], nil
}

// PositionOf maps a primary or backup naming address to its chain position.
func (s Static) PositionOf(addr protocol.Address) (int, bool) {
	p, ok := s.positions[addr]
	return p, ok
}

// Neighbors returns the left and right regions of name. A missing side is
// reported with ok false.
func (s Static) Neighbors(name string) (left Region, hasLeft bool, right Region, hasRight bool, err error) {
	r, err := s.Region(name)
	if err != nil {
		return Region{}, false, Region{}, false, err
	}
	if r.Position > 0 {
		left, hasLeft = s.chain[r.Position-1], true
	}
	if r.Position < len(s.chain)-1 {
		right, hasRight = s.chain[r.Position+1], true
	}
	return left, hasLeft, right, hasRight, nil
}

// Exchange returns the exchange by name.
func (s Static) Exchange(name string) (Exchange, error) {
	e, ok := s.exchanges[name]
	if !ok {
		return Exchange{}, fmt.Errorf("%s: %w", name, exception.ErrConfigUnknownExchange)
	}
	return e, nil
}

// Exchanges returns every exchange in declaration order.
func (s Static) Exchanges() []Exchange {
	out := make([]Exchange, 0, len(s.exchangeOrder))
	for _, name := range s.exchangeOrder {
		out = append(out, s.exchanges[name])
	}
	return out
}

// PortOf returns the listening address of an exchange.
func (s Static) PortOf(exchange string) (protocol.Address, error) {
	e, err := s.Exchange(exchange)
	if err != nil {
		return 0, err
	}
	return e.Port, nil
}

// CurrencyOf returns the currency and reference rate of an exchange.
func (s Static) CurrencyOf(exchange string) (string, decimal.Decimal, error) {
	e, err := s.Exchange(exchange)
	if err != nil {
		return "", decimal.Zero, err
	}
	return e.Currency, e.Rate, nil
}

// IsFund reports whether name is a configured fund.
func (s Static) IsFund(name string) bool {
	_, ok := s.funds[name]
	return ok
}

// Funds returns the configured fund names, sorted.
func (s Static) Funds() []string {
	out := make([]string, 0, len(s.funds))
	for name := range s.funds {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// LegsOf returns the legs of a fund in execution order.
func (s Static) LegsOf(fund string) ([]Leg, error) {
	f, ok := s.funds[fund]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fund, exception.ErrConfigUnknownFund)
	}
	return slices.Clone(f.Legs), nil
}
