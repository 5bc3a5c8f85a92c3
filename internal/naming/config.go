package naming

import (
	"fmt"
	"time"
)

const (
	defaultDataDir    = "data"
	defaultStartDelay = 20 * time.Second
	backupSuffix      = "Backup"
)

// Config selects which instance of which region a node runs as.
type Config struct {
	Region string
	Backup bool
	// DataDir holds the start time file of the node.
	DataDir string
	// StartDelay is added to the current time when no start time was
	// persisted yet.
	StartDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.StartDelay == 0 {
		c.StartDelay = defaultStartDelay
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("invalid naming config: Region is empty")
	}
	if c.StartDelay < 0 {
		return fmt.Errorf("invalid naming config: StartDelay must be >= 0")
	}
	return nil
}

// InstanceName is the region name, suffixed for the backup instance.
func (c Config) InstanceName() string {
	if c.Backup {
		return c.Region + backupSuffix
	}
	return c.Region
}
