package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"stockex/pkg/exception"
)

// Header rows of the price and quantity sheets. Data rows start after the
// security row and carry date and time in the first two columns.
const (
	rowContinent = iota
	rowCountry
	rowExchange
	rowSecurity
	headerRows
)

const (
	colDate = iota
	colTime
	dataCols
)

// CSV is a Feed over the price and quantity sheets. Both sheets must share
// the same layout; a blank or non-numeric quantity cell counts as zero.
type CSV struct {
	listings map[string][]string
	points   map[string][]Point
	labels   map[int]string
}

// OpenCSV reads both sheets from disk.
func OpenCSV(pricePath, qtyPath string) (*CSV, error) {
	pf, err := os.Open(pricePath)
	if err != nil {
		return nil, errors.Wrapf(err, "open price sheet %s", pricePath)
	}
	defer pf.Close()

	qf, err := os.Open(qtyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open quantity sheet %s", qtyPath)
	}
	defer qf.Close()

	return ReadCSV(pf, qf)
}

// ReadCSV parses the price and quantity sheets.
func ReadCSV(price, qty io.Reader) (*CSV, error) {
	priceRows, err := readAll(price)
	if err != nil {
		return nil, errors.Wrap(err, "read price sheet")
	}
	qtyRows, err := readAll(qty)
	if err != nil {
		return nil, errors.Wrap(err, "read quantity sheet")
	}
	if len(priceRows) < headerRows {
		return nil, fmt.Errorf("price sheet has %d rows, want at least %d: %w", len(priceRows), headerRows, exception.ErrInvalidArgument)
	}

	exchanges := priceRows[rowExchange]
	securities := priceRows[rowSecurity]

	f := &CSV{
		listings: make(map[string][]string),
		points:   make(map[string][]Point),
		labels:   make(map[int]string),
	}
	names := make(map[int]string, len(securities))
	for col := dataCols; col < len(securities) && col < len(exchanges); col++ {
		exchange := lettersOnly(exchanges[col])
		security := lettersOnly(securities[col])
		if exchange == "" || security == "" {
			continue
		}
		if _, dup := f.points[security]; dup {
			return nil, fmt.Errorf("security %s listed twice: %w", security, exception.ErrInvalidArgument)
		}
		names[col] = security
		f.points[security] = nil
		f.listings[exchange] = append(f.listings[exchange], security)
	}

	for i, row := range priceRows[headerRows:] {
		tick := i + 1
		if len(row) > colTime {
			f.labels[tick] = strings.TrimSpace(row[colDate] + " " + row[colTime])
		}
		var qtyRow []string
		if idx := headerRows + i; idx < len(qtyRows) {
			qtyRow = qtyRows[idx]
		}
		for col, security := range names {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			p, err := decimal.NewFromString(cell)
			if err != nil {
				return nil, errors.Wrapf(err, "price of %s at tick %d", security, tick)
			}
			f.points[security] = append(f.points[security], Point{
				Tick:     tick,
				Price:    p,
				Incoming: quantity(qtyRow, col),
			})
		}
	}
	return f, nil
}

func (f *CSV) Securities(exchange string) ([]string, error) {
	return slices.Clone(f.listings[exchange]), nil
}

func (f *CSV) Load(security string) ([]Point, error) {
	pts, ok := f.points[security]
	if !ok {
		return nil, exception.ErrOrderUnknownSecurity
	}
	return slices.Clone(pts), nil
}

func (f *CSV) Label(tick int) string {
	return f.labels[tick]
}

func readAll(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func quantity(row []string, col int) int64 {
	if col >= len(row) {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(row[col]), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func lettersOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			return r
		}
		return -1
	}, s)
}
