package env

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/registry"
	"github.com/bft-labs/envpool/pkg/log"
)

// Pool owns the singleton cache, the start memoization table, and the
// shutdown hook for one set of environments. Its lifetime belongs to the
// host application or test harness; there is no ambient global pool.
// All methods are safe for concurrent use.
type Pool struct {
	config   Config
	opts     options
	logger   log.Logger
	registry *registry.Registry
	starter  *registry.Starter
	hook     *registry.Hook
	plugins  []Plugin

	mu     sync.RWMutex
	closed bool
}

// EnvStatus is a snapshot of one registered identity's lifecycle.
type EnvStatus struct {
	ID      Identity `json:"id"`
	State   State    `json:"-"`
	Outcome Outcome  `json:"-"`

	// StateName and OutcomeName carry the human-readable forms on the wire.
	StateName   string `json:"state"`
	OutcomeName string `json:"outcome"`
	Suite       bool   `json:"suite"`
}

// New creates a Pool with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Pool, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool{
		config:  cfg,
		opts:    o,
		logger:  o.logger,
		plugins: o.plugins,
	}

	p.starter = registry.NewStarter(o.logger)
	p.starter.SetNotify(p.emitStartOutcome)
	p.registry = registry.New(registry.WithGroupStarter(p.starter))
	p.hook = registry.NewHook(p.registry, p.starter, o.logger, p.emitStopError)

	return p, nil
}

// RegisterKind registers a factory for a new environment identity.
func (p *Pool) RegisterKind(id Identity, factory Factory) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.registry.RegisterKind(id, factory)
}

// MustRegisterKind panics on registration error. Useful during harness setup
// where a duplicate identity is a programming mistake.
func (p *Pool) MustRegisterKind(id Identity, factory Factory) {
	if err := p.RegisterKind(id, factory); err != nil {
		panic(err)
	}
}

// RegisterSuite registers a composite identity whose lifecycle operations
// fan out to the given members in declared order. Members must already be
// registered kinds; a member shared by several suites resolves to the same
// singleton in all of them.
func (p *Pool) RegisterSuite(id Identity, members ...Identity) error {
	if err := p.guard(); err != nil {
		return err
	}
	return p.registry.RegisterSuite(id, members...)
}

// Get returns the singleton instance for id, constructing it if absent,
// without starting it. Construction failures propagate and leave the
// identity eligible for retry.
func (p *Pool) Get(ctx context.Context, id Identity) (Environment, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	return p.registry.GetOrCreate(ctx, id)
}

// Acquire returns the started singleton for id. The start logic runs at most
// once per identity process-wide; concurrent callers block until the single
// run completes and all observe the same outcome. A Failed outcome is not an
// error: the instance is returned so callers can still inspect it, and the
// outcome tells whether it is functionally ready.
//
// The error is non-nil only for construction failures, unknown identities, a
// closed pool, or a context canceled while waiting on a start triggered by
// another caller.
func (p *Pool) Acquire(ctx context.Context, id Identity) (Environment, Outcome, error) {
	instance, err := p.Get(ctx, id)
	if err != nil {
		return nil, OutcomeUnknown, err
	}

	outcome, err := p.starter.EnsureStarted(ctx, id, instance)
	if err != nil {
		return instance, OutcomeUnknown, err
	}
	return instance, outcome, nil
}

// Outcome returns the memoized start outcome for id. The second result is
// false while no start attempt has completed.
func (p *Pool) Outcome(id Identity) (Outcome, bool) {
	return p.starter.Outcome(id)
}

// StartErr returns the error recorded by a failed start attempt, or nil.
func (p *Pool) StartErr(id Identity) error {
	return p.starter.StartErr(id)
}

// Status returns the lifecycle state of id.
func (p *Pool) Status(id Identity) State {
	return p.starter.State(id)
}

// Stop stops the built instance for id. Identities that were never requested
// have nothing to stop and return nil. Unlike start, stop is not memoized;
// remote callers may stop and later reload an environment repeatedly.
func (p *Pool) Stop(ctx context.Context, id Identity) error {
	if err := p.guard(); err != nil {
		return err
	}

	instance, ok := p.registry.Lookup(id)
	if !ok {
		return p.requireRegistered(id, nil)
	}

	p.starter.SetState(id, domain.StateStopping)
	if err := instance.Stop(ctx); err != nil {
		p.starter.SetState(id, domain.StateFailed)
		return fmt.Errorf("stop %s: %w", id, err)
	}
	p.starter.SetState(id, domain.StateStopped)
	return nil
}

// Reload reloads the built instance for id. Identities that were never
// requested have nothing to reload and return nil.
func (p *Pool) Reload(ctx context.Context, id Identity) error {
	if err := p.guard(); err != nil {
		return err
	}

	instance, ok := p.registry.Lookup(id)
	if !ok {
		return p.requireRegistered(id, nil)
	}

	p.logger.Info("reloading environment", log.Stringer("environment", id))
	return instance.Reload(ctx)
}

// requireRegistered maps "not built" onto fallback for registered identities
// and ErrUnknownIdentity otherwise.
func (p *Pool) requireRegistered(id Identity, fallback error) error {
	for _, known := range p.registry.Identities() {
		if known == id {
			return fallback
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrUnknownIdentity, id)
}

// Identities returns all registered identities in lexicographic order.
func (p *Pool) Identities() []Identity {
	return p.registry.Identities()
}

// Statuses returns a snapshot of every registered identity with its current
// state and start outcome, in lexicographic order.
func (p *Pool) Statuses() []EnvStatus {
	ids := p.registry.Identities()
	out := make([]EnvStatus, 0, len(ids))
	for _, id := range ids {
		state := p.starter.State(id)
		outcome, _ := p.starter.Outcome(id)
		out = append(out, EnvStatus{
			ID:          id,
			State:       state,
			Outcome:     outcome,
			StateName:   state.String(),
			OutcomeName: outcome.String(),
			Suite:       p.registry.IsSuite(id),
		})
	}
	return out
}

// InitPlugins initializes the registered plugins in registration order.
// A plugin failure aborts initialization and is returned to the caller.
func (p *Pool) InitPlugins(ctx context.Context) error {
	if err := p.guard(); err != nil {
		return err
	}

	cfg := PluginConfig{Pool: p, Logger: p.logger}
	for _, plugin := range p.plugins {
		if err := plugin.Initialize(ctx, cfg); err != nil {
			p.logger.Error("plugin initialization failed",
				log.String("plugin", plugin.Name()),
				log.Err(err))
			return fmt.Errorf("initialize plugin %s: %w", plugin.Name(), err)
		}
		p.logger.Info("plugin initialized", log.String("plugin", plugin.Name()))
	}
	return nil
}

// Shutdown stops every built environment exactly once, logging stop failures
// and continuing, then shuts down plugins in reverse registration order.
// Subsequent calls are no-ops. The registry is not cleared; the pool is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("pool shutting down", log.String("pool", p.config.Name))

	stopCtx, cancel := context.WithTimeout(ctx, p.config.StopTimeout)
	defer cancel()
	p.hook.Run(stopCtx)

	for i := len(p.plugins) - 1; i >= 0; i-- {
		plugin := p.plugins[i]
		if err := plugin.Shutdown(stopCtx); err != nil {
			p.logger.Error("plugin shutdown failed",
				log.String("plugin", plugin.Name()),
				log.Err(err))
		} else {
			p.logger.Info("plugin shutdown complete", log.String("plugin", plugin.Name()))
		}
	}

	return nil
}

// guard rejects operations on a closed pool.
func (p *Pool) guard() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return domain.ErrPoolClosed
	}
	return nil
}

func (p *Pool) emitStartOutcome(id Identity, outcome Outcome, err error, duration time.Duration) {
	if p.opts.eventHandler == nil {
		return
	}
	p.opts.eventHandler.OnStartOutcome(StartEvent{
		ID:       id,
		Outcome:  outcome,
		Err:      err,
		Duration: duration,
	})
}

func (p *Pool) emitStopError(id Identity, err error) {
	if p.opts.eventHandler == nil {
		return
	}
	p.opts.eventHandler.OnStopError(StopErrorEvent{ID: id, Err: err})
}

// validateModuleVersions checks that sibling modules are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"log": {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
