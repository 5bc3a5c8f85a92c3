package state

import (
	"github.com/yanun0323/logs"
)

// RecoverResult contains the restored inventory and what the log held.
type RecoverResult struct {
	Inventory *Inventory
	Found     bool
	Tick      int
	Unknown   []string
}

// RecoverInventory builds an inventory for securities and restores the
// quantities of the newest snapshot found at cfg's path.
func RecoverInventory(cfg LogConfig, securities []string) (RecoverResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return RecoverResult{}, err
	}
	inv := NewInventory(securities)
	snap, ok, err := ReadLast(cfg.Path())
	if err != nil {
		return RecoverResult{}, err
	}
	if !ok {
		return RecoverResult{Inventory: inv}, nil
	}
	unknown := inv.ApplySnapshot(snap)
	if len(unknown) > 0 {
		logs.Warnf("recovery log %s lists %d securities not hosted here, ignored: %v", cfg.Path(), len(unknown), unknown)
	}
	return RecoverResult{
		Inventory: inv,
		Found:     true,
		Tick:      snap.Tick,
		Unknown:   unknown,
	}, nil
}
