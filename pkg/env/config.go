package env

import (
	"fmt"
	"time"

	"github.com/bft-labs/envpool/internal/domain"
)

// DefaultStopTimeout bounds the teardown performed by Shutdown.
const DefaultStopTimeout = 30 * time.Second

// Config holds the configuration for a Pool.
// The zero value is usable after SetDefaults.
type Config struct {
	// Name identifies the pool in log output. Default: "envpool".
	Name string

	// StopTimeout bounds the whole teardown in Shutdown. Individual start
	// operations are never subject to a timeout. Default: 30s.
	StopTimeout time.Duration
}

// SetDefaults fills in default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "envpool"
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StopTimeout < 0 {
		return fmt.Errorf("%w: stop timeout must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
