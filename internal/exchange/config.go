package exchange

import (
	"fmt"
)

const (
	defaultDataDir         = "data"
	defaultNotifyQueueSize = 64
)

// Config selects the exchange an endpoint runs as.
type Config struct {
	Exchange string
	// Region overrides the naming region from the static tables.
	Region string
	// DataDir holds the recovery log.
	DataDir         string
	NotifyQueueSize int
	// LogNoSync skips fsync on the recovery log. Only for tests.
	LogNoSync bool
}

func (c Config) withDefaults() Config {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.NotifyQueueSize == 0 {
		c.NotifyQueueSize = defaultNotifyQueueSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Exchange == "" {
		return fmt.Errorf("invalid exchange config: Exchange is empty")
	}
	if c.NotifyQueueSize < 0 {
		return fmt.Errorf("invalid exchange config: NotifyQueueSize must be >= 0")
	}
	return nil
}
