package exchange

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stockex/internal/feed"
	"stockex/pkg/exception"
)

// schedule is the price and replenishment plan of one security, sorted by
// tick.
type schedule struct {
	points []feed.Point
}

func newSchedule(points []feed.Point) *schedule {
	pts := append([]feed.Point(nil), points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Tick < pts[j].Tick })
	return &schedule{points: pts}
}

// priceAt returns the price at tick, else the latest earlier one, else the
// earliest known.
func (s *schedule) priceAt(tick int) (decimal.Decimal, error) {
	if len(s.points) == 0 {
		return decimal.Zero, exception.ErrOrderNoPrice
	}
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Tick > tick })
	if i == 0 {
		return s.points[0].Price, nil
	}
	return s.points[i-1].Price, nil
}

// incomingAt returns the quantity arriving exactly at tick.
func (s *schedule) incomingAt(tick int) int64 {
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Tick >= tick })
	if i < len(s.points) && s.points[i].Tick == tick {
		return s.points[i].Incoming
	}
	return 0
}

// formatPrice renders "12.5 EUR (= 13.88 USD)".
func formatPrice(local decimal.Decimal, currency string, rate decimal.Decimal, reference string) string {
	converted := local.Mul(rate).Round(2)
	return local.String() + " " + currency + " (= " + groupThousands(converted.StringFixed(2)) + " " + reference + ")"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
