package env

import (
	"context"

	"github.com/bft-labs/envpool/pkg/log"
)

// PluginConfig carries the dependencies a plugin receives at initialization.
type PluginConfig struct {
	// Pool is the pool the plugin was registered with.
	Pool *Pool

	// Logger is the pool's logger.
	Logger log.Logger
}

// Plugin extends a pool with optional behavior, such as watching config
// files and reloading affected environments.
// Plugins are initialized in registration order and shut down in reverse
// order during pool shutdown.
type Plugin interface {
	// Name returns the plugin identifier used in log output.
	Name() string

	// Initialize sets up the plugin. A returned error aborts InitPlugins.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and releases its resources.
	Shutdown(ctx context.Context) error
}
