package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// fakeRegistry backs a Lease with a real Hostess on a fake clock.
type fakeRegistry struct {
	h *hostess.Hostess

	mu     sync.Mutex
	beats  int
	beatCh chan struct{}
}

func (f *fakeRegistry) Info(context.Context) (time.Duration, time.Duration, error) {
	return f.h.HeartbeatInterval(), f.h.EvictionThreshold(), nil
}

func (f *fakeRegistry) Register(_ context.Context, m hostess.Manifest) (string, error) {
	return f.h.Register(m)
}

func (f *fakeRegistry) Heartbeat(_ context.Context, id string) error {
	err := f.h.Heartbeat(id)
	f.mu.Lock()
	f.beats++
	f.mu.Unlock()
	f.beatCh <- struct{}{}
	return err
}

func (f *fakeRegistry) Deregister(_ context.Context, id string) error {
	return f.h.Deregister(id)
}

func newFake(t *testing.T, clock clockwork.Clock) *fakeRegistry {
	t.Helper()
	h, err := hostess.New(hostess.Config{Clock: clock, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	return &fakeRegistry{h: h, beatCh: make(chan struct{}, 16)}
}

func waitBeat(t *testing.T, f *fakeRegistry) {
	t.Helper()
	select {
	case <-f.beatCh:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestLeaseHeartbeatsKeepEntryAlive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newFake(t, clock)
	ctx := context.Background()

	l, err := newLease(ctx, reg, hostess.Manifest{ServerName: "svc"}, LeaseConfig{Clock: clock, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("newLease: %v", err)
	}

	// Five intervals add up to more than the eviction threshold.
	for range 5 {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatal(err)
		}
		clock.Advance(reg.h.HeartbeatInterval())
		waitBeat(t, reg)
	}
	if _, err := reg.h.Get(l.ID()); err != nil {
		t.Fatalf("entry lost despite heartbeats: %v", err)
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := reg.h.Get(l.ID()); err == nil {
		t.Fatal("entry still registered after Release")
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestLeaseReRegistersAfterEviction(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newFake(t, clock)
	ctx := context.Background()

	renewed := make(chan string, 1)
	l, err := newLease(ctx, reg, hostess.Manifest{ServerName: "svc"}, LeaseConfig{
		Interval: reg.h.EvictionThreshold() + time.Second,
		Clock:    clock,
		Logger:   logging.Discard(),
		OnRenew:  func(id string) { renewed <- id },
	})
	if err != nil {
		t.Fatalf("newLease: %v", err)
	}
	first := l.ID()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(reg.h.EvictionThreshold() + time.Second)
	waitBeat(t, reg)

	select {
	case id := <-renewed:
		if id != first {
			t.Fatalf("re-registered as %s, want original identity %s", id, first)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lease did not re-register")
	}
	if _, err := reg.h.Get(first); err != nil {
		t.Fatalf("entry not restored: %v", err)
	}
	_ = l.Release(ctx)
}

func TestLeaseRegisterFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := newFake(t, clock)
	_, err := newLease(context.Background(), reg, hostess.Manifest{}, LeaseConfig{Clock: clock})
	if err == nil {
		t.Fatal("expected invalid manifest error")
	}
}
