package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"stockex/internal/exchange"
)

// FillRecord is one executed trade as stored in the fills table.
type FillRecord struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Exchange   string          `gorm:"size:64;index:idx_fills_exchange_tick"`
	Security   string          `gorm:"size:64;index"`
	Action     string          `gorm:"size:1"`
	Qty        int64           `gorm:"not null"`
	Price      decimal.Decimal `gorm:"type:numeric(20,6)"`
	Currency   string          `gorm:"size:8"`
	Tick       int             `gorm:"index:idx_fills_exchange_tick"`
	Source     string          `gorm:"size:16"`
	ClientID   int
	ExecutedAt time.Time `gorm:"not null"`
}

// TableName implements gorm's tabler.
func (FillRecord) TableName() string { return "fills" }

func recordOf(f exchange.Fill) FillRecord {
	return FillRecord{
		Exchange:   f.Exchange,
		Security:   f.Security,
		Action:     string(f.Action),
		Qty:        f.Qty,
		Price:      f.Price,
		Currency:   f.Currency,
		Tick:       f.Tick,
		Source:     string(f.Source),
		ClientID:   f.ClientID,
		ExecutedAt: f.At.UTC(),
	}
}
