package registry

import (
	"context"
	"sync"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/pkg/log"
)

// Hook stops every built environment at process teardown. It runs at most
// once; a failing stop is logged and reported to the optional notifier, and
// the remaining environments are still attempted. Aggregate instances are
// skipped because their members are registered, and stopped, individually.
type Hook struct {
	registry *Registry
	starter  *Starter
	logger   log.Logger
	notify   func(domain.Identity, error)

	once sync.Once
}

// NewHook creates a shutdown hook over the given registry and start table.
// notify may be nil.
func NewHook(reg *Registry, starter *Starter, logger log.Logger, notify func(domain.Identity, error)) *Hook {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Hook{
		registry: reg,
		starter:  starter,
		logger:   logger,
		notify:   notify,
	}
}

// Run performs the teardown. Subsequent calls are no-ops.
func (h *Hook) Run(ctx context.Context) {
	h.once.Do(func() { h.run(ctx) })
}

func (h *Hook) run(ctx context.Context) {
	instances := h.registry.BuiltInstances()

	stopped := 0
	for _, inst := range instances {
		if inst.Aggregate {
			continue
		}

		h.starter.SetState(inst.ID, domain.StateStopping)
		err := inst.Env.Stop(ctx)

		if err != nil {
			// A stuck environment must not report as cleanly stopped.
			h.starter.SetState(inst.ID, domain.StateFailed)
			h.logger.Error("failed stopping environment",
				log.Stringer("environment", inst.ID),
				log.Err(err),
			)
			if h.notify != nil {
				h.notify(inst.ID, err)
			}
			continue
		}
		h.starter.SetState(inst.ID, domain.StateStopped)
		stopped++
	}

	h.logger.Info("environment teardown complete", log.Int("stopped", stopped))
}
