package feed

import (
	"slices"

	"github.com/shopspring/decimal"

	"stockex/pkg/exception"
)

// Point is the market data of one security at one tick.
type Point struct {
	Tick     int
	Price    decimal.Decimal
	Incoming int64
}

// Feed supplies per-security market data to an exchange.
type Feed interface {
	// Securities lists the securities hosted by exchange.
	Securities(exchange string) ([]string, error)
	// Load returns the schedule of security ordered by tick.
	Load(security string) ([]Point, error)
}

// Labeler maps ticks to human readable timestamps for log lines.
type Labeler interface {
	Label(tick int) string
}

// Static is an in-memory Feed.
type Static struct {
	listings map[string][]string
	points   map[string][]Point
	labels   map[int]string
}

// NewStatic creates an empty in-memory feed.
func NewStatic() *Static {
	return &Static{
		listings: make(map[string][]string),
		points:   make(map[string][]Point),
		labels:   make(map[int]string),
	}
}

// Add lists security on exchange with the given schedule.
func (s *Static) Add(exchange, security string, points ...Point) *Static {
	if _, ok := s.points[security]; !ok {
		s.listings[exchange] = append(s.listings[exchange], security)
	}
	pts := slices.Clone(points)
	slices.SortFunc(pts, func(a, b Point) int { return a.Tick - b.Tick })
	s.points[security] = pts
	return s
}

// SetLabel attaches a timestamp label to tick.
func (s *Static) SetLabel(tick int, label string) {
	s.labels[tick] = label
}

func (s *Static) Securities(exchange string) ([]string, error) {
	return slices.Clone(s.listings[exchange]), nil
}

func (s *Static) Load(security string) ([]Point, error) {
	pts, ok := s.points[security]
	if !ok {
		return nil, exception.ErrOrderUnknownSecurity
	}
	return slices.Clone(pts), nil
}

func (s *Static) Label(tick int) string {
	return s.labels[tick]
}
