package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/envpool/internal/adapters/execenv"
	"github.com/bft-labs/envpool/internal/envconfig"
	"github.com/bft-labs/envpool/pkg/env"
	"github.com/bft-labs/envpool/pkg/log"
	"github.com/bft-labs/envpool/pkg/remote"
	"github.com/bft-labs/envpool/plugins/configwatcher"
)

const helpDescription = `
Keep expensive shared environments warm across test runs and tools.

Highlights:
  - Starts each declared environment at most once, no matter how many callers ask.
  - Brings up whole suites in one command and reports per-member outcomes.
  - Reloads environments automatically when their watched config files change.
  - Optionally serves a lifecycle API so other hosts can share the pool.
`

var exampleUsage = strings.TrimSpace(`
  envpool up --config $HOME/.envpool/config.toml
  envpool up --suite integration --listen 127.0.0.1:7370
  envpool status --addr http://127.0.0.1:7370
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	root := &cobra.Command{
		Use:     "envpool",
		Short:   "Shared environment pool for expensive test and dev dependencies",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
	}
	root.AddCommand(newUpCommand())
	root.AddCommand(newStatusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "envpool:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration with flag > env > file > default precedence.
func loadConfig(cmd *cobra.Command, cfgPath string, cfg *envconfig.Config) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = envconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && envconfig.FileExists(cfgFile) {
		fc, err := envconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := envconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := envconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}

	return cfg.Validate()
}

func newUpCommand() *cobra.Command {
	cfg := envconfig.DefaultConfig()
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the declared environments and keep them running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfgPath, &cfg); err != nil {
				return err
			}
			return runUp(cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.envpool/config.toml)")
	cmd.Flags().StringVar(&cfg.Suite, "suite", cfg.Suite, "suite to bring up (default: every declared environment)")
	cmd.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "address to serve the lifecycle API on (empty disables it)")
	cmd.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token protecting the lifecycle API")
	cmd.Flags().DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "teardown deadline at shutdown")

	return cmd
}

func runUp(cfg envconfig.Config) error {
	logger := log.NewZerologAdapter()

	watches := map[env.Identity][]string{}
	for _, decl := range cfg.Environments {
		if len(decl.Watch) > 0 {
			watches[env.Identity(decl.ID)] = decl.Watch
		}
	}

	opts := []env.Option{env.WithLogger(logger)}
	if len(watches) > 0 {
		watcherCfg := configwatcher.DefaultConfig()
		watcherCfg.Watches = watches
		opts = append(opts, configwatcher.WithConfigWatcher(watcherCfg))
	}

	pool, err := env.New(env.Config{StopTimeout: cfg.StopTimeout}, opts...)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}

	for _, decl := range cfg.Environments {
		decl := decl
		pool.MustRegisterKind(env.Identity(decl.ID), func(ctx context.Context) (env.Environment, error) {
			return execenv.New(execenv.Config{
				ID:     decl.ID,
				Dir:    decl.Dir,
				Start:  decl.Start,
				Stop:   decl.Stop,
				Reload: decl.Reload,
			}, logger), nil
		})
	}
	for _, decl := range cfg.Suites {
		members := make([]env.Identity, 0, len(decl.Members))
		for _, m := range decl.Members {
			members = append(members, env.Identity(m))
		}
		if err := pool.RegisterSuite(env.Identity(decl.ID), members...); err != nil {
			return fmt.Errorf("register suite %s: %w", decl.ID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.InitPlugins(ctx); err != nil {
		return fmt.Errorf("init plugins: %w", err)
	}

	if err := bringUp(ctx, pool, cfg); err != nil {
		return err
	}
	reportStatuses(logger, pool)

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.Listen != "" {
		server = &http.Server{
			Addr:    cfg.Listen,
			Handler: remote.NewHandler(pool, cfg.AuthKey, logger),
		}
		go func() {
			logger.Info("lifecycle API listening", log.String("addr", cfg.Listen))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, stopping", log.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("lifecycle API failed", log.Err(err))
	}

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("lifecycle API shutdown failed", log.Err(err))
		}
	}

	return pool.Shutdown(context.Background())
}

// bringUp acquires the selected suite, or every declared environment when no
// suite was selected. Failed starts are reported, not fatal; the environments
// that did come up stay available.
func bringUp(ctx context.Context, pool *env.Pool, cfg envconfig.Config) error {
	if cfg.Suite != "" {
		_, _, err := pool.Acquire(ctx, env.Identity(cfg.Suite))
		if err != nil {
			return fmt.Errorf("bring up suite %s: %w", cfg.Suite, err)
		}
		return nil
	}

	for _, decl := range cfg.Environments {
		if _, _, err := pool.Acquire(ctx, env.Identity(decl.ID)); err != nil {
			return fmt.Errorf("bring up %s: %w", decl.ID, err)
		}
	}
	return nil
}

func reportStatuses(logger log.Logger, pool *env.Pool) {
	for _, s := range pool.Statuses() {
		if s.Suite {
			continue
		}
		logger.Info("environment status",
			log.Stringer("environment", s.ID),
			log.String("state", s.StateName),
			log.String("outcome", s.OutcomeName),
		)
	}
}

func newStatusCommand() *cobra.Command {
	cfg := envconfig.DefaultConfig()
	var cfgPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show environment states from a running envpool instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Config resolution is best effort here: status works against a
			// remote address even when no local config file declares anything.
			if err := loadConfig(cmd, cfgPath, &cfg); err != nil && addr == "" {
				return err
			}

			target := addr
			if target == "" {
				if cfg.Listen == "" {
					return fmt.Errorf("no address: set --addr or listen in the config file")
				}
				target = "http://" + cfg.Listen
			}

			client := remote.NewClient(&http.Client{Timeout: 10 * time.Second}, target, cfg.AuthKey, "", log.NewNoopLogger())
			statuses, err := client.Statuses(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENVIRONMENT\tSTATE\tOUTCOME\tSUITE")
			for _, s := range statuses {
				suite := ""
				if s.Suite {
					suite = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.StateName, s.OutcomeName, suite)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.envpool/config.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "base URL of the running instance (default: http://<listen> from config)")
	cmd.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "bearer token for the lifecycle API")

	return cmd
}
