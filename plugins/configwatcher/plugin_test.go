package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/envpool/pkg/env"
	"github.com/bft-labs/envpool/pkg/log"
)

type reloadEnv struct {
	reloaded chan struct{}
}

func newReloadEnv() *reloadEnv {
	return &reloadEnv{reloaded: make(chan struct{}, 8)}
}

func (e *reloadEnv) Start(ctx context.Context) error { return nil }
func (e *reloadEnv) Stop(ctx context.Context) error  { return nil }
func (e *reloadEnv) Reload(ctx context.Context) error {
	e.reloaded <- struct{}{}
	return nil
}

func newWatchedPool(t *testing.T, id env.Identity, e *reloadEnv) *env.Pool {
	t.Helper()
	pool, err := env.New(env.Config{Name: "test"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	pool.MustRegisterKind(id, func(ctx context.Context) (env.Environment, error) {
		return e, nil
	})
	if _, _, err := pool.Acquire(context.Background(), id); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	return pool
}

func TestPlugin_ReloadsOnFileChange(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "db.toml")
	if err := os.WriteFile(cfgPath, []byte("port = 5432\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	e := newReloadEnv()
	plugin := New(Config{
		Watches:       map[env.Identity][]string{"db": {cfgPath}},
		DebounceDelay: 10 * time.Millisecond,
	})
	pool := newWatchedPool(t, "db", e)

	if err := plugin.Initialize(context.Background(), env.PluginConfig{
		Pool:   pool,
		Logger: log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer plugin.Shutdown(context.Background())

	if err := os.WriteFile(cfgPath, []byte("port = 5433\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	select {
	case <-e.reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("environment was not reloaded after file change")
	}
}

func TestPlugin_IgnoresUnrelatedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "db.toml")
	otherPath := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(cfgPath, []byte("port = 5432\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	e := newReloadEnv()
	plugin := New(Config{
		Watches:       map[env.Identity][]string{"db": {cfgPath}},
		DebounceDelay: 10 * time.Millisecond,
	})
	pool := newWatchedPool(t, "db", e)

	if err := plugin.Initialize(context.Background(), env.PluginConfig{
		Pool:   pool,
		Logger: log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer plugin.Shutdown(context.Background())

	if err := os.WriteFile(otherPath, []byte("hello\n"), 0644); err != nil {
		t.Fatalf("Failed to write unrelated file: %v", err)
	}

	select {
	case <-e.reloaded:
		t.Fatal("environment reloaded for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPlugin_DebouncesBursts(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "db.toml")
	if err := os.WriteFile(cfgPath, []byte("a = 1\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	e := newReloadEnv()
	plugin := New(Config{
		Watches:       map[env.Identity][]string{"db": {cfgPath}},
		DebounceDelay: 200 * time.Millisecond,
	})
	pool := newWatchedPool(t, "db", e)

	if err := plugin.Initialize(context.Background(), env.PluginConfig{
		Pool:   pool,
		Logger: log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer plugin.Shutdown(context.Background())

	// A burst of writes within the debounce window collapses to one reload.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(cfgPath, []byte("a = 2\n"), 0644); err != nil {
			t.Fatalf("Failed to rewrite config file: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-e.reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("environment was not reloaded after burst")
	}

	select {
	case <-e.reloaded:
		t.Error("burst of writes produced more than one reload")
	case <-time.After(400 * time.Millisecond):
	}
}

// recordingLogger captures error lines with their fields.
type recordingLogger struct {
	log.NoopLogger
	mu     sync.Mutex
	errors []log.Field
}

func (l *recordingLogger) Error(msg string, fields ...log.Field) {
	l.mu.Lock()
	l.errors = append(l.errors, fields...)
	l.mu.Unlock()
}

func (l *recordingLogger) errorFields() []log.Field {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Field(nil), l.errors...)
}

func TestPlugin_WatcherErrorIsLoggedWithDetail(t *testing.T) {
	logger := &recordingLogger{}
	plugin := New(DefaultConfig())
	plugin.logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan fsnotify.Event)
	errs := make(chan error, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		plugin.run(ctx, events, errs)
	}()

	watchErr := errors.New("kqueue: too many open files")
	errs <- watchErr

	deadline := time.After(2 * time.Second)
	for {
		fields := logger.errorFields()
		if len(fields) > 0 {
			if fields[0].Value != watchErr {
				t.Errorf("logged field = %+v, want the watcher error", fields[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher error was never logged")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestPlugin_NoWatchesIsDisabled(t *testing.T) {
	e := newReloadEnv()
	plugin := New(Config{})
	pool := newWatchedPool(t, "db", e)

	if err := plugin.Initialize(context.Background(), env.PluginConfig{
		Pool:   pool,
		Logger: log.NewNoopLogger(),
	}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := plugin.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestPlugin_Name(t *testing.T) {
	if got := New(DefaultConfig()).Name(); got != "configwatcher" {
		t.Errorf("Name() = %q", got)
	}
}
