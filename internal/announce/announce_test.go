package announce

import (
	"sync"
	"testing"
	"time"

	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
	"github.com/gezibash/arc-kernel/pkg/transport"
	"github.com/gezibash/arc-kernel/pkg/transport/inproc"
)

func manifest(name string) hostess.Manifest {
	return hostess.Manifest{
		ServerName: name,
		Terminals: []hostess.Terminal{
			{Name: "in", Kind: hostess.TerminalLocal, Direction: hostess.DirectionInput},
		},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []hostess.Event
	got    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 16)}
}

func (r *recorder) handle(ev transport.Event) {
	var e hostess.Event
	if err := ev.Decode(&e); err != nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) []hostess.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.events) >= n {
			out := append([]hostess.Event(nil), r.events...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.got:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events", n)
		}
	}
}

func TestTopic(t *testing.T) {
	if got := Topic(hostess.EventRegistered); got != "hostess.registered" {
		t.Errorf("Topic = %q", got)
	}
}

func TestAnnouncerPublishesToEveryBus(t *testing.T) {
	h, err := hostess.New(hostess.Config{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("hostess.New: %v", err)
	}

	control := inproc.NewBus(transport.Options{})
	mirror := inproc.NewBus(transport.Options{})
	defer func() { _ = control.Close() }()
	defer func() { _ = mirror.Close() }()

	rc, rm := newRecorder(), newRecorder()
	if _, err := control.Subscribe(Topic(hostess.EventRegistered), rc.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := mirror.Subscribe(Topic(hostess.EventRegistered), rm.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := Start(h, logging.Discard(), control, mirror)
	defer a.Stop()

	id, err := h.Register(manifest("tap"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for name, r := range map[string]*recorder{"control": rc, "mirror": rm} {
		evs := r.wait(t, 1)
		if evs[0].ID != id || evs[0].ServerName != "tap" {
			t.Errorf("%s got %+v", name, evs[0])
		}
	}
}

func TestAnnouncerPreservesOrder(t *testing.T) {
	h, err := hostess.New(hostess.Config{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("hostess.New: %v", err)
	}
	bus := inproc.NewBus(transport.Options{})
	defer func() { _ = bus.Close() }()

	r := newRecorder()
	if _, err := bus.Subscribe(Topic(hostess.EventRegistered), r.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := Start(h, logging.Discard(), bus)
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := h.Register(manifest(name))
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		ids = append(ids, id)
	}
	a.Stop()

	evs := r.wait(t, 3)
	for i, ev := range evs {
		if ev.ID != ids[i] {
			t.Errorf("event %d id = %s, want %s", i, ev.ID, ids[i])
		}
	}
}

func TestStopDetaches(t *testing.T) {
	h, err := hostess.New(hostess.Config{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("hostess.New: %v", err)
	}
	bus := inproc.NewBus(transport.Options{})
	defer func() { _ = bus.Close() }()

	r := newRecorder()
	if _, err := bus.Subscribe(Topic(hostess.EventRegistered), r.handle); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	a := Start(h, logging.Discard(), bus)
	a.Stop()
	a.Stop()

	if _, err := h.Register(manifest("late")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	select {
	case <-r.got:
		t.Fatal("event delivered after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}
