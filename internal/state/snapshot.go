package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Snapshot captures every security quantity of an exchange at one instant.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Tick      int             `json:"tick"`
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry is a single security quantity.
type PositionEntry struct {
	Security string `json:"security"`
	Qty      int64  `json:"qty"`
}

// Snapshot builds a snapshot from current quantities.
func (inv *Inventory) Snapshot(tick int) Snapshot {
	entries := make([]PositionEntry, 0, len(inv.available))
	for security, qty := range inv.available {
		entries = append(entries, PositionEntry{Security: security, Qty: qty})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Security < entries[j].Security
	})
	return Snapshot{
		Timestamp: time.Now().UTC().UnixMilli(),
		Tick:      tick,
		Positions: entries,
	}
}

// Qty returns the quantity recorded for security.
func (s Snapshot) Qty(security string) (int64, bool) {
	for _, entry := range s.Positions {
		if entry.Security == security {
			return entry.Qty, true
		}
	}
	return 0, false
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSnapshot(line []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(line, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// CompareSnapshots checks that two snapshots hold the same quantities.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	for _, entry := range expected.Positions {
		got, ok := actual.Qty(entry.Security)
		if !ok {
			return fmt.Errorf("snapshot missing security: %s", entry.Security)
		}
		if got != entry.Qty {
			return fmt.Errorf("snapshot qty mismatch: security=%s expected=%d actual=%d", entry.Security, entry.Qty, got)
		}
	}
	return nil
}
