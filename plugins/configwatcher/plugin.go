// Package configwatcher provides config file monitoring for envpool.
// When enabled, it watches the declared files of each environment and
// reloads the environment when one of them changes.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/envpool/pkg/env"
	"github.com/bft-labs/envpool/pkg/log"
)

// Plugin implements config file watching. It monitors the watch paths
// declared per environment and triggers a reload on that environment
// when one of its files is written.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	debounceDelay time.Duration
	reloadTimeout time.Duration
	watches       map[env.Identity][]string

	// Runtime state
	pool     *env.Pool
	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce map[env.Identity]*time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Watches maps an environment identity to the files whose changes
	// should reload it.
	Watches map[env.Identity][]string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// ReloadTimeout bounds each triggered reload.
	// Default: 30 seconds
	ReloadTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults and no watches.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
		ReloadTimeout: 30 * time.Second,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.ReloadTimeout <= 0 {
		cfg.ReloadTimeout = 30 * time.Second
	}

	watches := make(map[env.Identity][]string, len(cfg.Watches))
	for id, paths := range cfg.Watches {
		cleaned := make([]string, 0, len(paths))
		for _, p := range paths {
			cleaned = append(cleaned, filepath.Clean(p))
		}
		watches[id] = cleaned
	}

	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		reloadTimeout: cfg.ReloadTimeout,
		watches:       watches,
		debounce:      make(map[env.Identity]*time.Timer),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts the watcher loop.
func (p *Plugin) Initialize(ctx context.Context, cfg env.PluginConfig) error {
	p.mu.Lock()
	p.pool = cfg.Pool
	p.logger = cfg.Logger
	p.mu.Unlock()

	if len(p.watches) == 0 {
		p.logger.Warn("config watcher disabled: no watch paths configured")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch parent directories; events are filtered per file below. Editors
	// that replace files (rename + create) are still observed this way.
	dirs := make(map[string]struct{})
	for _, paths := range p.watches {
		for _, path := range paths {
			dirs[filepath.Dir(path)] = struct{}{}
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized",
		log.Int("environments", len(p.watches)),
		log.Int("directories", len(dirs)),
	)

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher loop and pending reload timers.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	for _, timer := range p.debounce {
		timer.Stop()
	}
	p.mu.Unlock()
	return nil
}

// watchLoop dispatches filesystem events to per-environment reload timers.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()
	p.run(ctx, watcher.Events, watcher.Errors)
}

func (p *Plugin) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			for _, id := range p.affected(event.Name) {
				p.debounceReload(ctx, id)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

// affected returns the identities whose watch list contains path.
func (p *Plugin) affected(path string) []env.Identity {
	path = filepath.Clean(path)
	var ids []env.Identity
	for id, paths := range p.watches {
		for _, watched := range paths {
			if watched == path {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}

func (p *Plugin) debounceReload(ctx context.Context, id env.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if timer, ok := p.debounce[id]; ok {
		timer.Stop()
	}

	p.debounce[id] = time.AfterFunc(p.debounceDelay, func() {
		p.reload(ctx, id)
	})
}

func (p *Plugin) reload(ctx context.Context, id env.Identity) {
	reloadCtx, cancel := context.WithTimeout(ctx, p.reloadTimeout)
	defer cancel()

	if err := p.pool.Reload(reloadCtx, id); err != nil {
		p.logger.Error("config watcher: reload failed",
			log.Stringer("environment", id),
			log.Err(err),
		)
		return
	}
	p.logger.Info("config watcher: reloaded environment",
		log.Stringer("environment", id),
	)
}

// Ensure Plugin implements env.Plugin.
var _ env.Plugin = (*Plugin)(nil)
