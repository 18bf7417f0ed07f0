package configwatcher

import "github.com/bft-labs/envpool/pkg/env"

// WithConfigWatcher returns an env Option that enables config file watching.
// When enabled, the plugin monitors each environment's declared files and
// reloads the environment when one of them changes.
//
// Usage:
//
//	pool, err := env.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Watches: map[env.Identity][]string{
//	            "db": {"/etc/db/db.toml"},
//	        },
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) env.Option {
	plugin := New(cfg)
	return env.WithPlugin(plugin)
}
