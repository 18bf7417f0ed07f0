package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/ports"
)

// fakeEnv implements ports.Environment for testing and counts invocations.
type fakeEnv struct {
	mu          sync.Mutex
	startCalls  int
	stopCalls   int
	reloadCalls int

	startErr  error
	stopErr   error
	reloadErr error

	startDelay time.Duration
	onStart    func()
}

func (f *fakeEnv) Start(ctx context.Context) error {
	f.mu.Lock()
	f.startCalls++
	f.mu.Unlock()
	if f.onStart != nil {
		f.onStart()
	}
	if f.startDelay > 0 {
		time.Sleep(f.startDelay)
	}
	return f.startErr
}

func (f *fakeEnv) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	return f.stopErr
}

func (f *fakeEnv) Reload(ctx context.Context) error {
	f.mu.Lock()
	f.reloadCalls++
	f.mu.Unlock()
	return f.reloadErr
}

func (f *fakeEnv) counts() (starts, stops, reloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls, f.reloadCalls
}

// staticFactory returns the same instance on every invocation and counts calls.
func staticFactory(env ports.Environment, calls *atomic.Int32) ports.Factory {
	return func(ctx context.Context) (ports.Environment, error) {
		calls.Add(1)
		return env, nil
	}
}

func TestRegistry_RegisterKind_Validation(t *testing.T) {
	r := New()

	if err := r.RegisterKind("", staticFactory(&fakeEnv{}, &atomic.Int32{})); !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Errorf("empty identity: err = %v, want ErrInvalidIdentity", err)
	}
	if err := r.RegisterKind("db", nil); !errors.Is(err, domain.ErrNilFactory) {
		t.Errorf("nil factory: err = %v, want ErrNilFactory", err)
	}
	if err := r.RegisterKind("db", staticFactory(&fakeEnv{}, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterKind("db", staticFactory(&fakeEnv{}, &atomic.Int32{})); !errors.Is(err, domain.ErrDuplicateIdentity) {
		t.Errorf("duplicate: err = %v, want ErrDuplicateIdentity", err)
	}
}

func TestRegistry_GetOrCreate_Unknown(t *testing.T) {
	r := New()
	if _, err := r.GetOrCreate(context.Background(), "missing"); !errors.Is(err, domain.ErrUnknownIdentity) {
		t.Errorf("err = %v, want ErrUnknownIdentity", err)
	}
}

func TestRegistry_GetOrCreate_Singleton(t *testing.T) {
	r := New()
	var calls atomic.Int32
	env := &fakeEnv{}
	if err := r.RegisterKind("db", staticFactory(env, &calls)); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	const n = 20
	results := make([]ports.Environment, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			got, err := r.GetOrCreate(context.Background(), "db")
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != env {
			t.Fatalf("result %d = %p, want the shared instance %p", i, got, env)
		}
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("factory calls = %d, want 1", c)
	}
}

func TestRegistry_GetOrCreate_ConstructionRetry(t *testing.T) {
	r := New()
	var calls atomic.Int32
	boom := errors.New("no docker socket")
	env := &fakeEnv{}
	factory := func(ctx context.Context) (ports.Environment, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return env, nil
	}
	if err := r.RegisterKind("db", factory); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	if _, err := r.GetOrCreate(context.Background(), "db"); !errors.Is(err, boom) {
		t.Fatalf("first call: err = %v, want %v", err, boom)
	}
	got, err := r.GetOrCreate(context.Background(), "db")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if got != env {
		t.Errorf("second call returned %p, want %p", got, env)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("factory calls = %d, want 2", c)
	}
}

func TestRegistry_GetOrCreate_IndependentIdentities(t *testing.T) {
	r := New()

	release := make(chan struct{})
	slowFactory := func(ctx context.Context) (ports.Environment, error) {
		<-release
		return &fakeEnv{}, nil
	}
	if err := r.RegisterKind("slow", slowFactory); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterKind("fast", staticFactory(&fakeEnv{}, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		if _, err := r.GetOrCreate(context.Background(), "slow"); err != nil {
			t.Errorf("GetOrCreate(slow) failed: %v", err)
		}
	}()

	// The fast identity must resolve while slow's construction is blocked.
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		if _, err := r.GetOrCreate(context.Background(), "fast"); err != nil {
			t.Errorf("GetOrCreate(fast) failed: %v", err)
		}
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("GetOrCreate(fast) blocked behind slow's construction")
	}

	close(release)
	<-slowDone
}

func TestRegistry_RegisterSuite_Validation(t *testing.T) {
	r := New()
	if err := r.RegisterKind("db", staticFactory(&fakeEnv{}, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterSuite("backend", "db"); err != nil {
		t.Fatalf("RegisterSuite failed: %v", err)
	}

	tests := []struct {
		name    string
		id      domain.Identity
		members []domain.Identity
		want    error
	}{
		{"empty identity", "", []domain.Identity{"db"}, domain.ErrInvalidIdentity},
		{"duplicate", "backend", []domain.Identity{"db"}, domain.ErrDuplicateIdentity},
		{"duplicate of kind", "db", []domain.Identity{"db"}, domain.ErrDuplicateIdentity},
		{"unknown member", "other", []domain.Identity{"cache"}, domain.ErrSuiteMember},
		{"suite as member", "outer", []domain.Identity{"backend"}, domain.ErrSuiteMember},
	}
	for _, tt := range tests {
		if err := r.RegisterSuite(tt.id, tt.members...); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if err := r.RegisterSuite("empty"); err == nil {
		t.Error("suite with no members was accepted")
	}
}

func TestRegistry_ResolveSuite_SharesMembers(t *testing.T) {
	r := New()
	var aCalls, bCalls, cCalls atomic.Int32
	for _, reg := range []struct {
		id    domain.Identity
		env   *fakeEnv
		calls *atomic.Int32
	}{
		{"a", &fakeEnv{}, &aCalls},
		{"b", &fakeEnv{}, &bCalls},
		{"c", &fakeEnv{}, &cCalls},
	} {
		if err := r.RegisterKind(reg.id, staticFactory(reg.env, reg.calls)); err != nil {
			t.Fatalf("RegisterKind(%s) failed: %v", reg.id, err)
		}
	}
	if err := r.RegisterSuite("g1", "a", "b"); err != nil {
		t.Fatalf("RegisterSuite(g1) failed: %v", err)
	}
	if err := r.RegisterSuite("g2", "b", "c"); err != nil {
		t.Fatalf("RegisterSuite(g2) failed: %v", err)
	}

	ctx := context.Background()
	g1, err := r.GetOrCreate(ctx, "g1")
	if err != nil {
		t.Fatalf("GetOrCreate(g1) failed: %v", err)
	}
	g2, err := r.GetOrCreate(ctx, "g2")
	if err != nil {
		t.Fatalf("GetOrCreate(g2) failed: %v", err)
	}

	if _, ok := g1.(*Group); !ok {
		t.Fatalf("g1 is %T, want *Group", g1)
	}
	if _, ok := g2.(*Group); !ok {
		t.Fatalf("g2 is %T, want *Group", g2)
	}

	// The shared member constructs once even though both suites resolve it.
	if c := bCalls.Load(); c != 1 {
		t.Errorf("factory calls for shared member = %d, want 1", c)
	}

	// The suite itself registers as an instance, so a second resolve is cached.
	again, err := r.GetOrCreate(ctx, "g1")
	if err != nil {
		t.Fatalf("second GetOrCreate(g1) failed: %v", err)
	}
	if again != g1 {
		t.Error("second resolve of the suite returned a different instance")
	}
}

func TestRegistry_Identities_Sorted(t *testing.T) {
	r := New()
	for _, id := range []domain.Identity{"cache", "db"} {
		if err := r.RegisterKind(id, staticFactory(&fakeEnv{}, &atomic.Int32{})); err != nil {
			t.Fatalf("RegisterKind(%s) failed: %v", id, err)
		}
	}
	if err := r.RegisterSuite("backend", "db", "cache"); err != nil {
		t.Fatalf("RegisterSuite failed: %v", err)
	}

	got := r.Identities()
	want := []domain.Identity{"backend", "cache", "db"}
	if len(got) != len(want) {
		t.Fatalf("Identities() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Identities() = %v, want %v", got, want)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := New()
	env := &fakeEnv{}
	if err := r.RegisterKind("db", staticFactory(env, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	if _, ok := r.Lookup("db"); ok {
		t.Error("Lookup returned an instance before construction")
	}
	if _, err := r.GetOrCreate(context.Background(), "db"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	got, ok := r.Lookup("db")
	if !ok || got != env {
		t.Errorf("Lookup = (%p, %v), want (%p, true)", got, ok, env)
	}
}

func TestRegistry_BuiltInstances(t *testing.T) {
	r := New()
	for _, id := range []domain.Identity{"db", "cache"} {
		if err := r.RegisterKind(id, staticFactory(&fakeEnv{}, &atomic.Int32{})); err != nil {
			t.Fatalf("RegisterKind(%s) failed: %v", id, err)
		}
	}
	if err := r.RegisterSuite("backend", "db"); err != nil {
		t.Fatalf("RegisterSuite failed: %v", err)
	}

	ctx := context.Background()
	if _, err := r.GetOrCreate(ctx, "backend"); err != nil {
		t.Fatalf("GetOrCreate(backend) failed: %v", err)
	}

	// cache is registered but never requested, so it must not appear.
	instances := r.BuiltInstances()
	if len(instances) != 2 {
		t.Fatalf("BuiltInstances() has %d entries, want 2", len(instances))
	}
	if instances[0].ID != "backend" || !instances[0].Aggregate {
		t.Errorf("instances[0] = %+v, want aggregate backend", instances[0])
	}
	if instances[1].ID != "db" || instances[1].Aggregate {
		t.Errorf("instances[1] = %+v, want leaf db", instances[1])
	}
}
