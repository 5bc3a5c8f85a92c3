package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

const (
	defaultHost              = "127.0.0.1"
	defaultReferenceCurrency = "USD"
	defaultTickLength        = time.Second
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Host              string           `json:"host"`
	ReferenceCurrency string           `json:"referenceCurrency"`
	TickLengthMs      int64            `json:"tickLengthMs"`
	Chain             []RegionConfig   `json:"chain"`
	Exchanges         []ExchangeConfig `json:"exchanges"`
	Funds             []FundConfig     `json:"funds"`
}

// RegionConfig describes one naming node of the chain, in chain order.
// BackupPort defaults to Port+1.
type RegionConfig struct {
	Name       string `json:"name"`
	Port       int    `json:"port"`
	BackupPort int    `json:"backupPort"`
}

// ExchangeConfig describes an exchange entry.
type ExchangeConfig struct {
	Name     string          `json:"name"`
	Port     int             `json:"port"`
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Region   string          `json:"region"`
}

// FundConfig describes a mutual fund and its legs in execution order.
type FundConfig struct {
	Name string      `json:"name"`
	Legs []LegConfig `json:"legs"`
}

// LegConfig describes one fund leg.
type LegConfig struct {
	Security string          `json:"security"`
	Weight   decimal.Decimal `json:"weight"`
}

// Load reads a JSON config file and builds the static tables.
func Load(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Static{}, errors.Wrapf(err, "read config %s", path)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Static{}, errors.Wrapf(err, "decode config %s", path)
	}
	return Build(cfg)
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (Static, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Build validates cfg and resolves it into immutable tables.
func Build(cfg FileConfig) (Static, error) {
	s := Static{
		host:       cfg.Host,
		reference:  cfg.ReferenceCurrency,
		tickLength: time.Duration(cfg.TickLengthMs) * time.Millisecond,
		exchanges:  make(map[string]Exchange, len(cfg.Exchanges)),
		regions:    make(map[string]int, len(cfg.Chain)),
		positions:  make(map[protocol.Address]int, 2*len(cfg.Chain)),
		funds:      make(map[string]Fund, len(cfg.Funds)),
	}
	if s.host == "" {
		s.host = defaultHost
	}
	if s.reference == "" {
		s.reference = defaultReferenceCurrency
	}
	if cfg.TickLengthMs < 0 {
		return Static{}, fmt.Errorf("invalid config: tickLengthMs must be >= 0")
	}
	if s.tickLength == 0 {
		s.tickLength = defaultTickLength
	}

	if err := s.buildChain(cfg.Chain); err != nil {
		return Static{}, err
	}
	if err := s.buildExchanges(cfg.Exchanges); err != nil {
		return Static{}, err
	}
	if err := s.buildFunds(cfg.Funds); err != nil {
		return Static{}, err
	}
	return s, nil
}

func (s *Static) buildChain(chain []RegionConfig) error {
	if len(chain) == 0 {
		return fmt.Errorf("invalid config: chain is empty")
	}
	for i, rc := range chain {
		if rc.Name == "" {
			return fmt.Errorf("invalid config: chain[%d] name is empty", i)
		}
		if _, ok := s.regions[rc.Name]; ok {
			return fmt.Errorf("invalid config: duplicate region %s", rc.Name)
		}
		r := Region{
			Name:     rc.Name,
			Position: i,
			Primary:  protocol.Address(rc.Port),
			Backup:   protocol.Address(rc.BackupPort),
		}
		if r.Backup.IsZero() {
			r.Backup = r.Primary + 1
		}
		if !r.Primary.Valid() || !r.Backup.Valid() || r.Primary == r.Backup {
			return fmt.Errorf("invalid config: region %s has invalid ports %d/%d", rc.Name, r.Primary, r.Backup)
		}
		for _, addr := range []protocol.Address{r.Primary, r.Backup} {
			if _, ok := s.positions[addr]; ok {
				return fmt.Errorf("invalid config: port %d used twice in chain", addr)
			}
			s.positions[addr] = i
		}
		s.regions[rc.Name] = i
		s.chain = append(s.chain, r)
	}
	return nil
}

func (s *Static) buildExchanges(exchanges []ExchangeConfig) error {
	ports := make(map[protocol.Address]string, len(exchanges))
	for i, ec := range exchanges {
		if ec.Name == "" {
			return fmt.Errorf("invalid config: exchanges[%d] name is empty", i)
		}
		if _, ok := s.exchanges[ec.Name]; ok {
			return fmt.Errorf("invalid config: duplicate exchange %s", ec.Name)
		}
		port := protocol.Address(ec.Port)
		if !port.Valid() {
			return fmt.Errorf("invalid config: exchange %s has invalid port %d", ec.Name, ec.Port)
		}
		if other, ok := ports[port]; ok {
			return fmt.Errorf("invalid config: exchange %s reuses port %d of %s", ec.Name, ec.Port, other)
		}
		if _, ok := s.positions[port]; ok {
			return fmt.Errorf("invalid config: exchange %s uses naming port %d", ec.Name, ec.Port)
		}
		if ec.Currency == "" {
			return fmt.Errorf("invalid config: exchange %s currency is empty", ec.Name)
		}
		if !ec.Rate.IsPositive() {
			return fmt.Errorf("invalid config: exchange %s rate must be > 0", ec.Name)
		}
		if _, ok := s.regions[ec.Region]; !ok {
			return fmt.Errorf("exchange %s region %q: %w", ec.Name, ec.Region, exception.ErrConfigUnknownRegion)
		}
		ports[port] = ec.Name
		s.exchanges[ec.Name] = Exchange{
			Name:     ec.Name,
			Port:     port,
			Currency: ec.Currency,
			Rate:     ec.Rate,
			Region:   ec.Region,
		}
		s.exchangeOrder = append(s.exchangeOrder, ec.Name)
	}
	return nil
}

func (s *Static) buildFunds(funds []FundConfig) error {
	one := decimal.NewFromInt(1)
	for i, fc := range funds {
		if fc.Name == "" {
			return fmt.Errorf("invalid config: funds[%d] name is empty", i)
		}
		if _, ok := s.funds[fc.Name]; ok {
			return fmt.Errorf("invalid config: duplicate fund %s", fc.Name)
		}
		if len(fc.Legs) == 0 {
			return fmt.Errorf("invalid config: fund %s has no legs", fc.Name)
		}
		total := decimal.Zero
		seen := make(map[string]struct{}, len(fc.Legs))
		legs := make([]Leg, 0, len(fc.Legs))
		for _, lc := range fc.Legs {
			if lc.Security == "" {
				return fmt.Errorf("invalid config: fund %s has a leg without security", fc.Name)
			}
			if _, ok := seen[lc.Security]; ok {
				return fmt.Errorf("invalid config: fund %s lists %s twice", fc.Name, lc.Security)
			}
			if !lc.Weight.IsPositive() || lc.Weight.GreaterThan(one) {
				return fmt.Errorf("invalid config: fund %s leg %s weight must be in (0, 1]", fc.Name, lc.Security)
			}
			seen[lc.Security] = struct{}{}
			total = total.Add(lc.Weight)
			legs = append(legs, Leg{Security: lc.Security, Weight: lc.Weight})
		}
		if total.GreaterThan(one) {
			return fmt.Errorf("invalid config: fund %s weights sum to %s", fc.Name, total)
		}
		s.funds[fc.Name] = Fund{Name: fc.Name, Legs: legs}
	}
	return nil
}
