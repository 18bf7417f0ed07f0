// Package execenv provides an environment driven by external commands, so
// config files can declare fixtures (docker compose services, local daemons)
// without writing Go code.
package execenv

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bft-labs/envpool/internal/ports"
	"github.com/bft-labs/envpool/pkg/log"
)

// outputTail limits how much command output is carried in an error.
const outputTail = 512

// Config declares the commands backing one environment.
// Empty commands are no-ops; a fixture without a reload command simply does
// nothing on reload.
type Config struct {
	ID     string
	Dir    string
	Start  string
	Stop   string
	Reload string
}

// Environment runs its lifecycle operations as shell commands.
type Environment struct {
	cfg    Config
	logger log.Logger
}

// Compile-time safety: *Environment implements ports.Environment.
var _ ports.Environment = (*Environment)(nil)

// New creates an exec-driven environment.
func New(cfg Config, logger log.Logger) *Environment {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Environment{cfg: cfg, logger: logger}
}

// ID returns the environment identifier.
func (e *Environment) ID() string { return e.cfg.ID }

// Start runs the configured start command.
func (e *Environment) Start(ctx context.Context) error {
	return e.run(ctx, "start", e.cfg.Start)
}

// Stop runs the configured stop command.
func (e *Environment) Stop(ctx context.Context) error {
	return e.run(ctx, "stop", e.cfg.Stop)
}

// Reload runs the configured reload command.
func (e *Environment) Reload(ctx context.Context) error {
	return e.run(ctx, "reload", e.cfg.Reload)
}

func (e *Environment) run(ctx context.Context, op, cmdline string) error {
	if cmdline == "" {
		e.logger.Debug("no command configured",
			log.String("environment", e.cfg.ID),
			log.String("op", op),
		)
		return nil
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
	cmd.Dir = e.cfg.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", op, e.cfg.ID, err, tail(output))
	}

	e.logger.Info("command completed",
		log.String("environment", e.cfg.ID),
		log.String("op", op),
	)
	return nil
}

// tail returns the trailing portion of command output for error messages.
func tail(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}
