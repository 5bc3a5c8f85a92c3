package state

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	defaultFileMode os.FileMode = 0o644
	logSuffix                   = ".log"
)

// LogConfig controls where an exchange keeps its recovery log.
type LogConfig struct {
	Dir  string
	Name string
	Mode os.FileMode
	// NoSync skips fsync after each append. Only for tests and benchmarks.
	NoSync bool
}

func (c LogConfig) withDefaults() LogConfig {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Mode == 0 {
		c.Mode = defaultFileMode
	}
	return c
}

// Validate checks if the configuration is usable.
func (c LogConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("invalid recovery log config: Name is empty")
	}
	if filepath.Base(c.Name) != c.Name {
		return fmt.Errorf("invalid recovery log config: Name %q must not contain a path", c.Name)
	}
	return nil
}

// Path returns <Dir>/<Name>.log.
func (c LogConfig) Path() string {
	c = c.withDefaults()
	return filepath.Join(c.Dir, c.Name+logSuffix)
}
