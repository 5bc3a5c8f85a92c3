package state

import (
	"maps"
	"math"

	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

// Inventory tracks the available quantity of each security an exchange owns.
// It is not safe for concurrent use; the owning exchange serializes access.
type Inventory struct {
	available map[string]int64
}

// NewInventory creates an inventory holding zero of every listed security.
func NewInventory(securities []string) *Inventory {
	inv := &Inventory{available: make(map[string]int64, len(securities))}
	for _, s := range securities {
		inv.available[s] = 0
	}
	return inv
}

// Has reports whether security is owned by this inventory.
func (inv *Inventory) Has(security string) bool {
	_, ok := inv.available[security]
	return ok
}

// Available returns the quantity on hand.
func (inv *Inventory) Available(security string) int64 {
	return inv.available[security]
}

// Securities returns how many securities are tracked.
func (inv *Inventory) Securities() int {
	return len(inv.available)
}

// Apply executes one side of an order. Buy takes from the inventory and
// fails when not enough is available; Sell adds unless the quantity would
// no longer fit in an int64.
func (inv *Inventory) Apply(action protocol.Action, security string, qty int64) error {
	current, ok := inv.available[security]
	if !ok {
		return exception.ErrOrderUnknownSecurity
	}
	switch action {
	case protocol.ActionBuy:
		if current < qty {
			return exception.ErrOrderInsufficientInventory
		}
		inv.available[security] = current - qty
	case protocol.ActionSell:
		if overflows(current, qty) {
			return exception.ErrOrderInventoryOverflow
		}
		inv.available[security] = current + qty
	default:
		return exception.ErrInvalidArgument
	}
	return nil
}

// Revert undoes a successful Apply.
func (inv *Inventory) Revert(action protocol.Action, security string, qty int64) {
	if _, ok := inv.available[security]; !ok {
		return
	}
	if action == protocol.ActionBuy {
		inv.available[security] += qty
		return
	}
	inv.available[security] -= qty
}

// Add changes a security by qty. Unknown securities are ignored. A result
// outside [0, MaxInt64] is refused and leaves the quantity unchanged.
func (inv *Inventory) Add(security string, qty int64) error {
	current, ok := inv.available[security]
	if !ok {
		return nil
	}
	if overflows(current, qty) {
		return exception.ErrOrderInventoryOverflow
	}
	if current+qty < 0 {
		return exception.ErrOrderInsufficientInventory
	}
	inv.available[security] = current + qty
	return nil
}

func overflows(current, qty int64) bool {
	return qty > 0 && current > math.MaxInt64-qty
}

// ApplySnapshot restores quantities for the securities this inventory owns.
// Entries for unknown securities are ignored and returned.
func (inv *Inventory) ApplySnapshot(snapshot Snapshot) []string {
	var unknown []string
	for _, entry := range snapshot.Positions {
		if _, ok := inv.available[entry.Security]; !ok {
			unknown = append(unknown, entry.Security)
			continue
		}
		inv.available[entry.Security] = entry.Qty
	}
	return unknown
}

// Clone returns a copy of the quantities.
func (inv *Inventory) Clone() map[string]int64 {
	return maps.Clone(inv.available)
}
