package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/ports"
)

// Option modifies registry behavior.
type Option func(*Registry)

// WithGroupStarter routes the start of suite members through the given
// starter so that a member shared by two suites starts at most once.
// Without it, groups invoke member Start directly.
func WithGroupStarter(s *Starter) Option {
	return func(r *Registry) { r.starter = s }
}

// instanceEntry holds the singleton for one identity. The entry mutex makes
// construction mutually exclusive per identity without serializing
// construction of distinct identities.
type instanceEntry struct {
	mu    sync.Mutex
	env   ports.Environment
	ready bool
}

// Instance is a snapshot of one built singleton.
type Instance struct {
	ID        domain.Identity
	Env       ports.Environment
	Aggregate bool
}

// Registry is the process-local cache mapping an environment identity to its
// singleton instance. It is safe for concurrent use.
type Registry struct {
	starter *Starter

	mu        sync.RWMutex
	factories map[domain.Identity]ports.Factory
	suites    map[domain.Identity][]domain.Identity
	instances map[domain.Identity]*instanceEntry
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		factories: make(map[domain.Identity]ports.Factory),
		suites:    make(map[domain.Identity][]domain.Identity),
		instances: make(map[domain.Identity]*instanceEntry),
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// RegisterKind adds a factory for the given identity.
// Returns ErrDuplicateIdentity if the identity is already registered.
func (r *Registry) RegisterKind(id domain.Identity, factory ports.Factory) error {
	if id.IsZero() {
		return domain.ErrInvalidIdentity
	}
	if factory == nil {
		return fmt.Errorf("%w: %s", domain.ErrNilFactory, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered(id) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentity, id)
	}
	r.factories[id] = factory
	return nil
}

// RegisterSuite adds a composite identity whose members resolve through this
// registry in declared order. Members must be registered kinds; suites do not
// nest, which keeps member resolution cycle-free.
func (r *Registry) RegisterSuite(id domain.Identity, members ...domain.Identity) error {
	if id.IsZero() {
		return domain.ErrInvalidIdentity
	}
	if len(members) == 0 {
		return fmt.Errorf("envpool: suite %s has no members", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered(id) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateIdentity, id)
	}
	for _, m := range members {
		if _, ok := r.factories[m]; !ok {
			return fmt.Errorf("%w: %s in suite %s", domain.ErrSuiteMember, m, id)
		}
	}
	r.suites[id] = append([]domain.Identity(nil), members...)
	return nil
}

// registered reports whether id has a factory or suite. Caller holds r.mu.
func (r *Registry) registered(id domain.Identity) bool {
	if _, ok := r.factories[id]; ok {
		return true
	}
	_, ok := r.suites[id]
	return ok
}

// GetOrCreate returns the singleton for the given identity, constructing it
// if absent. Construction runs at most once per identity on the success
// path; a failed construction propagates to the caller and leaves the
// identity unregistered so a later call may retry.
func (r *Registry) GetOrCreate(ctx context.Context, id domain.Identity) (ports.Environment, error) {
	for {
		r.mu.RLock()
		e := r.instances[id]
		r.mu.RUnlock()

		if e == nil {
			r.mu.Lock()
			e = r.instances[id]
			if e == nil {
				if !r.registered(id) {
					r.mu.Unlock()
					return nil, fmt.Errorf("%w: %s", domain.ErrUnknownIdentity, id)
				}
				e = &instanceEntry{}
				r.instances[id] = e
			}
			r.mu.Unlock()
		}

		e.mu.Lock()
		if e.ready {
			env := e.env
			e.mu.Unlock()
			return env, nil
		}

		// The entry is withdrawn after a failed construction; if that
		// happened while we waited for its lock, start over.
		r.mu.RLock()
		current := r.instances[id] == e
		r.mu.RUnlock()
		if !current {
			e.mu.Unlock()
			continue
		}

		env, err := r.build(ctx, id)
		if err != nil {
			r.mu.Lock()
			if r.instances[id] == e {
				delete(r.instances, id)
			}
			r.mu.Unlock()
			e.mu.Unlock()
			return nil, err
		}

		e.env = env
		e.ready = true
		e.mu.Unlock()
		return env, nil
	}
}

// build constructs the instance for id, which the caller has exclusive
// build rights for. No registry-wide lock is held while factories run.
func (r *Registry) build(ctx context.Context, id domain.Identity) (ports.Environment, error) {
	r.mu.RLock()
	factory := r.factories[id]
	members := r.suites[id]
	r.mu.RUnlock()

	if factory != nil {
		env, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("construct %s: %w", id, err)
		}
		if env == nil {
			return nil, fmt.Errorf("construct %s: factory returned nil environment", id)
		}
		return env, nil
	}

	if members == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownIdentity, id)
	}

	resolved := make([]Member, 0, len(members))
	for _, m := range members {
		env, err := r.GetOrCreate(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("resolve suite %s: %w", id, err)
		}
		resolved = append(resolved, Member{ID: m, Env: env})
	}
	return NewGroup(id, resolved, r.starter), nil
}

// Lookup returns the built instance for id, if present.
func (r *Registry) Lookup(id domain.Identity) (ports.Environment, bool) {
	r.mu.RLock()
	e := r.instances[id]
	r.mu.RUnlock()
	if e == nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil, false
	}
	return e.env, true
}

// IsSuite reports whether id is registered as a suite.
func (r *Registry) IsSuite(id domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.suites[id]
	return ok
}

// SuiteMembers returns the declared member list for a suite identity.
func (r *Registry) SuiteMembers(id domain.Identity) ([]domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.suites[id]
	if !ok {
		return nil, false
	}
	return append([]domain.Identity(nil), members...), true
}

// Identities returns all registered identities (kinds and suites) in
// lexicographic order.
func (r *Registry) Identities() []domain.Identity {
	r.mu.RLock()
	ids := make([]domain.Identity, 0, len(r.factories)+len(r.suites))
	for id := range r.factories {
		ids = append(ids, id)
	}
	for id := range r.suites {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BuiltInstances returns a snapshot of all built singletons in lexicographic
// order of identity.
func (r *Registry) BuiltInstances() []Instance {
	r.mu.RLock()
	entries := make(map[domain.Identity]*instanceEntry, len(r.instances))
	for id, e := range r.instances {
		entries[id] = e
	}
	aggregates := make(map[domain.Identity]bool, len(r.suites))
	for id := range r.suites {
		aggregates[id] = true
	}
	r.mu.RUnlock()

	out := make([]Instance, 0, len(entries))
	for id, e := range entries {
		e.mu.Lock()
		ready, env := e.ready, e.env
		e.mu.Unlock()
		if !ready {
			continue
		}
		out = append(out, Instance{ID: id, Env: env, Aggregate: aggregates[id]})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
