package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/pkg/log"
)

func TestHook_StopsAllDespiteFailures(t *testing.T) {
	r := New()
	s := NewStarter(log.NewNoopLogger())
	boom := errors.New("disk busy")

	db := &fakeEnv{}
	cache := &fakeEnv{stopErr: boom}
	if err := r.RegisterKind("db", staticFactory(db, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterKind("cache", staticFactory(cache, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	ctx := context.Background()
	for _, id := range []domain.Identity{"db", "cache"} {
		if _, err := r.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate(%s) failed: %v", id, err)
		}
	}

	var mu sync.Mutex
	failures := map[domain.Identity]error{}
	hook := NewHook(r, s, log.NewNoopLogger(), func(id domain.Identity, err error) {
		mu.Lock()
		failures[id] = err
		mu.Unlock()
	})

	hook.Run(ctx)

	if _, stops, _ := db.counts(); stops != 1 {
		t.Errorf("db stop calls = %d, want 1", stops)
	}
	if _, stops, _ := cache.counts(); stops != 1 {
		t.Errorf("cache stop calls = %d, want 1", stops)
	}
	if !errors.Is(failures["cache"], boom) {
		t.Errorf("failure notification = %v, want %v", failures["cache"], boom)
	}
	if _, ok := failures["db"]; ok {
		t.Error("healthy environment reported a stop failure")
	}
	if state := s.State("db"); state != domain.StateStopped {
		t.Errorf("db state = %v, want Stopped", state)
	}
	// The environment whose stop failed must not report as cleanly stopped.
	if state := s.State("cache"); state != domain.StateFailed {
		t.Errorf("cache state = %v, want Failed", state)
	}
}

func TestHook_RunsOnce(t *testing.T) {
	r := New()
	s := NewStarter(log.NewNoopLogger())
	db := &fakeEnv{}
	if err := r.RegisterKind("db", staticFactory(db, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if _, err := r.GetOrCreate(context.Background(), "db"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	hook := NewHook(r, s, log.NewNoopLogger(), nil)
	hook.Run(context.Background())
	hook.Run(context.Background())

	if _, stops, _ := db.counts(); stops != 1 {
		t.Errorf("stop calls = %d, want 1", stops)
	}
}

func TestHook_StopsSuiteMembersOnce(t *testing.T) {
	r := New()
	s := NewStarter(log.NewNoopLogger())
	db := &fakeEnv{}
	cache := &fakeEnv{}
	if err := r.RegisterKind("db", staticFactory(db, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterKind("cache", staticFactory(cache, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}
	if err := r.RegisterSuite("backend", "db", "cache"); err != nil {
		t.Fatalf("RegisterSuite failed: %v", err)
	}

	if _, err := r.GetOrCreate(context.Background(), "backend"); err != nil {
		t.Fatalf("GetOrCreate(backend) failed: %v", err)
	}

	hook := NewHook(r, s, log.NewNoopLogger(), nil)
	hook.Run(context.Background())

	// Members stop individually; the aggregate must not fan out a second stop.
	if _, stops, _ := db.counts(); stops != 1 {
		t.Errorf("db stop calls = %d, want 1", stops)
	}
	if _, stops, _ := cache.counts(); stops != 1 {
		t.Errorf("cache stop calls = %d, want 1", stops)
	}
}

func TestHook_SkipsUnbuiltIdentities(t *testing.T) {
	r := New()
	s := NewStarter(log.NewNoopLogger())
	db := &fakeEnv{}
	if err := r.RegisterKind("db", staticFactory(db, &atomic.Int32{})); err != nil {
		t.Fatalf("RegisterKind failed: %v", err)
	}

	hook := NewHook(r, s, log.NewNoopLogger(), nil)
	hook.Run(context.Background())

	if _, stops, _ := db.counts(); stops != 0 {
		t.Errorf("stop calls = %d, want 0 for never-built identity", stops)
	}
}
