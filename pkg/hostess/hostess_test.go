package hostess

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	kerrors "github.com/gezibash/arc-kernel/pkg/errors"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

func newTestHostess(t *testing.T) (*Hostess, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	h, err := New(Config{
		HeartbeatInterval: 5 * time.Second,
		EvictionThreshold: 20 * time.Second,
		SweepInterval:     5 * time.Second,
		Clock:             clock,
		Logger:            logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.StopEvictionLoop)
	return h, clock
}

func displayManifest() Manifest {
	return Manifest{
		ServerName: "display",
		ClassHex:   "0x0a",
		Terminals:  []Terminal{{Name: "display", Kind: TerminalLocal, Direction: DirectionInput}},
		Capabilities: Capabilities{
			Role:     RoleOutput,
			Accepts:  []string{"text/plain", "text/ansi"},
			Features: []string{"color", "resize"},
		},
	}
}

func register(t *testing.T, h *Hostess, m Manifest) string {
	t.Helper()
	id, err := h.Register(m)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return id
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

var available = &Filter{AvailableOnly: true}

func TestNew_RejectsThresholdNotAboveHeartbeat(t *testing.T) {
	for _, threshold := range []time.Duration{5 * time.Second, 4 * time.Second} {
		_, err := New(Config{HeartbeatInterval: 5 * time.Second, EvictionThreshold: threshold})
		if err == nil {
			t.Errorf("threshold %s: expected error", threshold)
		}
	}
	h, err := New(Config{})
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if h.HeartbeatInterval() != DefaultHeartbeatInterval || h.EvictionThreshold() != DefaultEvictionThreshold {
		t.Fatalf("defaults not applied: %s / %s", h.HeartbeatInterval(), h.EvictionThreshold())
	}
}

func TestRegister(t *testing.T) {
	h, clock := newTestHostess(t)

	t.Run("assigns identity", func(t *testing.T) {
		a := register(t, h, displayManifest())
		b := register(t, h, displayManifest())
		if a == "" || a == b {
			t.Fatalf("identities %q and %q", a, b)
		}
		e, err := h.Get(a)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !e.LastHeartbeat.Equal(clock.Now()) || e.Auth != AuthNone {
			t.Fatalf("entry = %+v", e)
		}
		if !e.Available() || e.Terminals[0].ReservedBy != "" {
			t.Fatal("expected every terminal to start free")
		}
	})

	t.Run("adopts supplied identity", func(t *testing.T) {
		m := displayManifest()
		m.UUID = "caller-chosen"
		if id := register(t, h, m); id != "caller-chosen" {
			t.Fatalf("id = %q", id)
		}
		_, err := h.Register(m)
		if !errors.Is(err, ErrDuplicateIdentity) || !errors.Is(err, kerrors.ErrAlreadyExists) {
			t.Fatalf("duplicate register = %v", err)
		}
	})

	t.Run("identity reusable after eviction", func(t *testing.T) {
		m := displayManifest()
		m.UUID = "comes-back"
		register(t, h, m)
		clock.Advance(21 * time.Second)
		if id := register(t, h, m); id != "comes-back" {
			t.Fatalf("re-register = %q", id)
		}
	})
}

func TestRegister_Validation(t *testing.T) {
	h, _ := newTestHostess(t)
	cases := map[string]func(*Manifest){
		"no servername":      func(m *Manifest) { m.ServerName = "" },
		"unnamed terminal":   func(m *Manifest) { m.Terminals[0].Name = "" },
		"duplicate terminal": func(m *Manifest) { m.Terminals = append(m.Terminals, m.Terminals[0]) },
		"bad direction":      func(m *Manifest) { m.Terminals[0].Direction = "sideways" },
		"bad kind":           func(m *Manifest) { m.Terminals[0].Kind = "carrier-pigeon" },
		"bad auth":           func(m *Manifest) { m.Auth = "maybe" },
		"bad role":           func(m *Manifest) { m.Capabilities.Role = "sink" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := displayManifest()
			mutate(&m)
			_, err := h.Register(m)
			if !errors.Is(err, ErrInvalidManifest) || !errors.Is(err, kerrors.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidManifest", err)
			}
		})
	}
	if n := len(h.List()); n != 0 {
		t.Fatalf("invalid manifests left %d entries", n)
	}
}

func TestReservationCycle(t *testing.T) {
	h, _ := newTestHostess(t)
	id := register(t, h, displayManifest())

	if got := ids(h.Query(available)); !slices.Equal(got, []string{id}) {
		t.Fatalf("before reservation: %v", got)
	}

	if err := h.MarkInUse(id, "display", "conn-1"); err != nil {
		t.Fatalf("MarkInUse: %v", err)
	}
	if got := h.Query(available); len(got) != 0 {
		t.Fatalf("reserved entry still available: %v", ids(got))
	}
	if got := h.Query(nil); len(got) != 1 {
		t.Fatalf("reserved entry missing from unfiltered query")
	}

	if err := h.MarkAvailable(id, "display"); err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}
	if got := ids(h.Query(available)); !slices.Equal(got, []string{id}) {
		t.Fatalf("after release: %v", got)
	}
}

func TestMarkInUse_Errors(t *testing.T) {
	h, _ := newTestHostess(t)
	id := register(t, h, displayManifest())

	t.Run("unknown service", func(t *testing.T) {
		err := h.MarkInUse("nope", "display", "conn-1")
		var he *Error
		if !errors.As(err, &he) || !errors.Is(err, ErrUnknownService) {
			t.Fatalf("err = %v", err)
		}
		if he.Service != "nope" || errors.Is(err, ErrUnknownTerminal) {
			t.Fatalf("error does not pin the service: %+v", he)
		}
	})

	t.Run("unknown terminal", func(t *testing.T) {
		err := h.MarkInUse(id, "speaker", "conn-1")
		var he *Error
		if !errors.As(err, &he) || !errors.Is(err, ErrUnknownTerminal) {
			t.Fatalf("err = %v", err)
		}
		if he.Service != id || he.Terminal != "speaker" || errors.Is(err, ErrUnknownService) {
			t.Fatalf("error does not pin the terminal: %+v", he)
		}
	})

	t.Run("idempotent and conflict", func(t *testing.T) {
		if err := h.MarkInUse(id, "display", "conn-1"); err != nil {
			t.Fatalf("MarkInUse: %v", err)
		}
		if err := h.MarkInUse(id, "display", "conn-1"); err != nil {
			t.Fatalf("same reservation again: %v", err)
		}
		err := h.MarkInUse(id, "display", "conn-2")
		var he *Error
		if !errors.As(err, &he) || !errors.Is(err, ErrReservationConflict) {
			t.Fatalf("err = %v", err)
		}
		if he.ReservedBy != "conn-1" {
			t.Fatalf("ReservedBy = %q", he.ReservedBy)
		}
	})

	t.Run("mark available errors", func(t *testing.T) {
		if err := h.MarkAvailable("nope", "display"); !errors.Is(err, ErrUnknownService) {
			t.Fatalf("err = %v", err)
		}
		if err := h.MarkAvailable(id, "speaker"); !errors.Is(err, ErrUnknownTerminal) {
			t.Fatalf("err = %v", err)
		}
		// Last caller wins, whoever holds it.
		if err := h.MarkAvailable(id, "display"); err != nil {
			t.Fatalf("MarkAvailable: %v", err)
		}
		if err := h.MarkAvailable(id, "display"); err != nil {
			t.Fatalf("MarkAvailable on a free terminal: %v", err)
		}
	})
}

func TestMarkInUseAs_Direction(t *testing.T) {
	h, _ := newTestHostess(t)
	m := displayManifest()
	m.Terminals = []Terminal{
		{Name: "in", Direction: DirectionInput},
		{Name: "out", Direction: DirectionOutput},
		{Name: "mux", Direction: DirectionMultiplexer},
	}
	id := register(t, h, m)

	if err := h.MarkInUseAs(id, "in", "c1", AsConsumer); !errors.Is(err, ErrTerminalDirection) {
		t.Fatalf("consumer on input = %v", err)
	}
	if err := h.MarkInUseAs(id, "in", "c1", AsProducer); err != nil {
		t.Fatalf("producer on input: %v", err)
	}
	if err := h.MarkInUseAs(id, "out", "c2", AsProducer); !errors.Is(err, ErrTerminalDirection) {
		t.Fatalf("producer on output = %v", err)
	}
	if err := h.MarkInUseAs(id, "mux", "c3", AsConsumer); err != nil {
		t.Fatalf("consumer on multiplexer: %v", err)
	}
}

func TestQuery_AvailableOnlyNeverReturnsFullyReserved(t *testing.T) {
	h, _ := newTestHostess(t)
	m := displayManifest()
	m.Terminals = []Terminal{
		{Name: "a", Direction: DirectionInput},
		{Name: "b", Direction: DirectionInput},
	}
	id := register(t, h, m)
	other := register(t, h, displayManifest())

	check := func() {
		t.Helper()
		for _, e := range h.Query(available) {
			if !slices.ContainsFunc(e.Terminals, TerminalState.Available) {
				t.Fatalf("entry %s returned with every terminal reserved", e.ID)
			}
		}
	}

	_ = h.MarkInUse(id, "a", "r1")
	check()
	if got := h.Query(available); len(got) != 2 {
		t.Fatalf("one free terminal should keep the entry available, got %v", ids(got))
	}
	_ = h.MarkInUse(id, "b", "r2")
	check()
	if got := ids(h.Query(available)); !slices.Equal(got, []string{other}) {
		t.Fatalf("got %v, want only %s", got, other)
	}
}

func TestQuery_Matching(t *testing.T) {
	h, _ := newTestHostess(t)

	display := register(t, h, displayManifest())
	camera := register(t, h, Manifest{
		ServerName: "camera",
		Terminals:  []Terminal{{Name: "frames", Direction: DirectionOutput}},
		Capabilities: Capabilities{
			Role:     RoleSource,
			Produces: []string{"image/png"},
			Features: []string{"color"},
		},
	})
	ocr := register(t, h, Manifest{
		ServerName: "ocr",
		Terminals: []Terminal{
			{Name: "in", Direction: DirectionInput},
			{Name: "out", Direction: DirectionOutput},
		},
		Capabilities: Capabilities{
			Role:     RoleTransform,
			Accepts:  []string{"image/png"},
			Produces: []string{"text/plain"},
		},
	})

	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{"nil filter", nil, []string{camera, display, ocr}},
		{"role", &Filter{Role: RoleTransform}, []string{ocr}},
		{"accepts membership", &Filter{Accepts: "text/ansi"}, []string{display}},
		{"produces membership", &Filter{Produces: "image/png"}, []string{camera}},
		{"features subset", &Filter{Features: []string{"color"}}, []string{camera, display}},
		{"features superset fails", &Filter{Features: []string{"color", "resize"}}, []string{display}},
		{"and across fields", &Filter{Accepts: "image/png", Produces: "text/plain"}, []string{ocr}},
		{"and mismatch", &Filter{Role: RoleSource, Accepts: "image/png"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(h.Query(tt.filter))
			if !slices.Equal(got, tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestList_ReturnsCopies(t *testing.T) {
	h, _ := newTestHostess(t)
	id := register(t, h, displayManifest())

	list := h.List()
	list[0].Terminals[0].ReservedBy = "sneaky"
	list[0].Capabilities.Accepts[0] = "mutated"

	e, _ := h.Get(id)
	if e.Terminals[0].ReservedBy != "" || e.Capabilities.Accepts[0] != "text/plain" {
		t.Fatalf("registry state changed through a returned copy: %+v", e)
	}
}

func TestEviction_VirtualClock(t *testing.T) {
	h, clock := newTestHostess(t)
	silent := register(t, h, displayManifest())
	chatty := register(t, h, displayManifest())

	// chatty heartbeats every 5s for ten minutes; silent never does.
	for range 120 {
		clock.Advance(5 * time.Second)
		if err := h.Heartbeat(chatty); err != nil {
			t.Fatalf("Heartbeat: %v", err)
		}
		h.Sweep()
	}

	if got := ids(h.Query(available)); !slices.Equal(got, []string{chatty}) {
		t.Fatalf("got %v, want only %s", got, chatty)
	}
	if err := h.Heartbeat(silent); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("heartbeat after eviction = %v", err)
	}
	if _, err := h.Get(silent); !errors.Is(err, ErrUnknownService) {
		t.Fatal("evicted entry came back")
	}
}

func TestLiveness_ComputedBeforeSweep(t *testing.T) {
	h, clock := newTestHostess(t)
	id := register(t, h, displayManifest())

	clock.Advance(20 * time.Second)
	if len(h.List()) != 1 {
		t.Fatal("entry at exactly the threshold should still be live")
	}

	clock.Advance(time.Millisecond)
	if len(h.List()) != 0 || len(h.Query(nil)) != 0 {
		t.Fatal("stale entry visible before any sweep ran")
	}
	if err := h.MarkInUse(id, "display", "conn-1"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("reserving a stale entry = %v", err)
	}
	if err := h.Heartbeat(id); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("heartbeat resurrected a stale entry: %v", err)
	}
	if n := h.Sweep(); n != 0 {
		t.Fatalf("Sweep removed %d, the stale entry was already reclaimed", n)
	}
}

func TestEvictionLoop(t *testing.T) {
	h, clock := newTestHostess(t)
	register(t, h, displayManifest())

	h.StartEvictionLoop(context.Background())
	h.StartEvictionLoop(context.Background()) // no-op

	clock.Advance(21 * time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().Evictions == 0 {
		if time.Now().After(deadline) {
			t.Fatal("eviction loop did not sweep")
		}
		// Keep ticking in case the loop missed the first tick.
		clock.Advance(5 * time.Second)
		time.Sleep(time.Millisecond)
	}

	h.StopEvictionLoop()
	h.StopEvictionLoop()

	// Still usable with the loop stopped.
	register(t, h, displayManifest())
	if len(h.List()) != 1 {
		t.Fatal("registry unusable after stopping the loop")
	}
}

func TestDeregister(t *testing.T) {
	h, _ := newTestHostess(t)
	id := register(t, h, displayManifest())

	if err := h.Deregister(id); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if err := h.Deregister(id); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("second Deregister = %v", err)
	}
	if err := h.Heartbeat(id); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("heartbeat after deregister = %v", err)
	}
}

func TestQueryExpr(t *testing.T) {
	h, _ := newTestHostess(t)
	m := displayManifest()
	m.Metadata = map[string]string{"zone": "a"}
	display := register(t, h, m)
	register(t, h, Manifest{
		ServerName:   "camera",
		Terminals:    []Terminal{{Name: "frames", Direction: DirectionOutput}},
		Capabilities: Capabilities{Role: RoleSource},
	})

	got, err := h.QueryExpr(`"text/plain" in accepts && available && metadata["zone"] == "a"`)
	if err != nil {
		t.Fatalf("QueryExpr: %v", err)
	}
	if !slices.Equal(ids(got), []string{display}) {
		t.Fatalf("got %v", ids(got))
	}

	got, err = h.QueryExpr(`role == "source" && "frames" in terminals`)
	if err != nil || len(got) != 1 || got[0].ServerName != "camera" {
		t.Fatalf("got %v, %v", got, err)
	}

	if _, err := h.QueryExpr(`servername ==`); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Fatalf("bad expression = %v", err)
	}
}

func TestEndpoints(t *testing.T) {
	h, clock := newTestHostess(t)

	if err := h.RegisterEndpoint("peer-1", Endpoint{Kind: "tcp", Coordinates: "10.0.0.1:7000"}); err != nil {
		t.Fatalf("RegisterEndpoint: %v", err)
	}
	if err := h.RegisterEndpoint("peer-1", Endpoint{Kind: "ws", Coordinates: "10.0.0.1:7001", Metadata: map[string]string{"v": "2"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := h.RegisterEndpoint("", Endpoint{Kind: "tcp"}); !errors.Is(err, kerrors.ErrInvalidInput) {
		t.Fatalf("empty id = %v", err)
	}

	// Endpoints are not subject to eviction.
	clock.Advance(time.Hour)
	h.Sweep()

	eps := h.ListEndpoints()
	if len(eps) != 1 || eps["peer-1"].Kind != "ws" || eps["peer-1"].Metadata["v"] != "2" {
		t.Fatalf("endpoints = %+v", eps)
	}
	if !h.RemoveEndpoint("peer-1") || h.RemoveEndpoint("peer-1") {
		t.Fatal("RemoveEndpoint should report presence once")
	}
}

func TestWatch(t *testing.T) {
	h, clock := newTestHostess(t)

	var got []EventType
	cancel := h.Watch(func(ev Event) { got = append(got, ev.Type) })

	id := register(t, h, displayManifest())
	_ = h.MarkInUse(id, "display", "conn-1")
	_ = h.MarkInUse(id, "display", "conn-1") // idempotent, no event
	_ = h.MarkAvailable(id, "display")
	_ = h.MarkAvailable(id, "display") // already free, no event
	_ = h.Deregister(id)

	register(t, h, displayManifest())
	clock.Advance(time.Minute)
	h.Sweep()

	cancel()
	register(t, h, displayManifest())

	want := []EventType{EventRegistered, EventReserved, EventReleased, EventDeregistered, EventRegistered, EventEvicted}
	if !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestCollector(t *testing.T) {
	h, clock := newTestHostess(t)
	id := register(t, h, displayManifest())
	register(t, h, displayManifest())
	_ = h.MarkInUse(id, "display", "conn-1")
	_ = h.RegisterEndpoint("peer", Endpoint{Kind: "tcp"})

	s := h.Stats()
	if s.Entries != 2 || s.ReservedTerminals != 1 || s.Endpoints != 1 || s.Registrations != 2 {
		t.Fatalf("stats = %+v", s)
	}

	clock.Advance(time.Minute)
	h.Sweep()
	if s := h.Stats(); s.Entries != 0 || s.Evictions != 2 {
		t.Fatalf("stats after eviction = %+v", s)
	}

	if n := testutil.CollectAndCount(NewCollector(h)); n != 5 {
		t.Fatalf("collector exported %d metrics, want 5", n)
	}
}
