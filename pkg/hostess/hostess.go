// Package hostess is the service registry: which node instances exist,
// whether they are alive, and which of their terminals are reserved.
//
// Liveness is computed on read. An entry whose last heartbeat is older than
// the eviction threshold is treated as gone by every operation, whether or
// not a sweep has removed it yet; the sweep only reclaims memory and emits
// eviction events.
package hostess

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gezibash/arc-kernel/pkg/logging"
)

const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultEvictionThreshold = 20 * time.Second
	DefaultSweepInterval     = 5 * time.Second
)

// Config configures a Hostess. Zero durations take the defaults.
type Config struct {
	HeartbeatInterval time.Duration
	EvictionThreshold time.Duration
	SweepInterval     time.Duration
	Clock             clockwork.Clock
	Logger            *logging.Logger
}

// Hostess is the registry. All methods are safe for concurrent use.
type Hostess struct {
	cfg Config
	log *logging.Logger

	mu        sync.RWMutex
	entries   map[string]*Entry
	endpoints map[string]Endpoint

	watchMu  sync.RWMutex
	watchers map[uint64]func(Event)
	watchSeq uint64

	registrations atomic.Uint64
	evictions     atomic.Uint64

	loopMu   sync.Mutex
	loopStop func()
	loopDone chan struct{}
}

// New creates a registry. The eviction loop is not started.
func New(cfg Config) (*Hostess, error) {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.EvictionThreshold <= 0 {
		cfg.EvictionThreshold = DefaultEvictionThreshold
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.EvictionThreshold <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("hostess: eviction threshold %s must exceed heartbeat interval %s",
			cfg.EvictionThreshold, cfg.HeartbeatInterval)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New(nil)
	}
	return &Hostess{
		cfg:       cfg,
		log:       cfg.Logger.WithComponent("hostess"),
		entries:   make(map[string]*Entry),
		endpoints: make(map[string]Endpoint),
		watchers:  make(map[uint64]func(Event)),
	}, nil
}

// HeartbeatInterval is the period clients are expected to heartbeat at.
func (h *Hostess) HeartbeatInterval() time.Duration { return h.cfg.HeartbeatInterval }

// EvictionThreshold is how stale a heartbeat may get before eviction.
func (h *Hostess) EvictionThreshold() time.Duration { return h.cfg.EvictionThreshold }

func (h *Hostess) live(e *Entry, now time.Time) bool {
	return now.Sub(e.LastHeartbeat) <= h.cfg.EvictionThreshold
}

// lookup returns the live entry for id. A stale entry is removed on the
// spot and its eviction event appended to evs. Caller holds the write lock.
func (h *Hostess) lookup(id string, now time.Time, evs *[]Event) *Entry {
	e, ok := h.entries[id]
	if !ok {
		return nil
	}
	if !h.live(e, now) {
		h.evictLocked(e, now, evs)
		return nil
	}
	return e
}

func (h *Hostess) evictLocked(e *Entry, now time.Time, evs *[]Event) {
	delete(h.entries, e.ID)
	h.evictions.Add(1)
	*evs = append(*evs, Event{Type: EventEvicted, ID: e.ID, ServerName: e.ServerName, At: now})
	h.log.WithIdentity(e.ID).Info("evicted",
		"servername", e.ServerName,
		"silent_for", now.Sub(e.LastHeartbeat).Truncate(time.Millisecond).String(),
	)
}

// Register validates m and stores a new entry with every terminal free.
// It returns the entry's identity: m.UUID when set, otherwise a fresh one.
func (h *Hostess) Register(m Manifest) (string, error) {
	if err := validate(&m); err != nil {
		return "", err
	}

	terminals := make([]TerminalState, len(m.Terminals))
	for i, t := range m.Terminals {
		kind := t.Kind
		if kind == "" {
			kind = TerminalLocal
		}
		terminals[i] = TerminalState{Name: t.Name, Kind: kind, Direction: t.Direction}
	}
	auth := m.Auth
	if auth == "" {
		auth = AuthNone
	}

	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	id := m.UUID
	if id == "" {
		id = uuid.NewString()
	} else if h.lookup(id, now, &evs) != nil {
		h.mu.Unlock()
		h.emit(evs)
		return "", &Error{Op: "register", Service: id, Err: ErrDuplicateIdentity}
	}
	e := &Entry{
		ID:            id,
		FQDN:          m.FQDN,
		ServerName:    m.ServerName,
		ClassHex:      m.ClassHex,
		Owner:         m.Owner,
		Auth:          auth,
		AuthMechanism: m.AuthMechanism,
		Terminals:     terminals,
		Capabilities:  m.Capabilities.clone(),
		Metadata:      cloneMetadata(m.Metadata),
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	h.entries[id] = e
	h.registrations.Add(1)
	evs = append(evs, Event{Type: EventRegistered, ID: id, ServerName: e.ServerName, At: now})
	h.mu.Unlock()

	h.log.WithIdentity(id).Info("registered",
		"servername", e.ServerName,
		"terminals", len(terminals),
	)
	h.emit(evs)
	return id, nil
}

func validate(m *Manifest) error {
	if m.ServerName == "" {
		return invalid("servername is required")
	}
	switch m.Auth {
	case "", AuthNone, AuthRequired, AuthOptional:
	default:
		return invalid("auth %q is not one of yes, no, optional", m.Auth)
	}
	switch m.Capabilities.Role {
	case "", RoleSource, RoleTransform, RoleOutput, RoleInput:
	default:
		return invalid("capability type %q is not one of source, transform, output, input", m.Capabilities.Role)
	}
	seen := make(map[string]bool, len(m.Terminals))
	for i, t := range m.Terminals {
		if t.Name == "" {
			return invalid("terminal %d has no name", i)
		}
		if seen[t.Name] {
			return invalid("terminal %q is declared twice", t.Name)
		}
		seen[t.Name] = true
		switch t.Direction {
		case DirectionInput, DirectionOutput, DirectionMultiplexer:
		default:
			return invalid("terminal %q has direction %q", t.Name, t.Direction)
		}
		switch t.Kind {
		case "", TerminalLocal, TerminalRemote:
		default:
			return invalid("terminal %q has type %q", t.Name, t.Kind)
		}
	}
	return nil
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Heartbeat refreshes id's liveness. An unknown or already stale identity
// yields ErrUnknownService and is not brought back.
func (h *Hostess) Heartbeat(id string) error {
	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	e := h.lookup(id, now, &evs)
	if e != nil {
		e.LastHeartbeat = now
	}
	h.mu.Unlock()
	h.emit(evs)

	if e == nil {
		return &Error{Op: "heartbeat", Service: id, Err: ErrUnknownService}
	}
	return nil
}

// Deregister removes id explicitly.
func (h *Hostess) Deregister(id string) error {
	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	e := h.lookup(id, now, &evs)
	if e != nil {
		delete(h.entries, id)
		evs = append(evs, Event{Type: EventDeregistered, ID: id, ServerName: e.ServerName, At: now})
	}
	h.mu.Unlock()
	h.emit(evs)

	if e == nil {
		return &Error{Op: "deregister", Service: id, Err: ErrUnknownService}
	}
	h.log.WithIdentity(id).Info("deregistered", "servername", e.ServerName)
	return nil
}

// Get returns a copy of the live entry for id.
func (h *Hostess) Get(id string) (Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entries[id]
	if !ok || !h.live(e, h.cfg.Clock.Now()) {
		return Entry{}, &Error{Op: "get", Service: id, Err: ErrUnknownService}
	}
	return e.clone(), nil
}

// MarkInUse reserves terminal on id for reservation. Reserving again with
// the same reservation is a no-op; a different one gets
// ErrReservationConflict.
func (h *Hostess) MarkInUse(id, terminal, reservation string) error {
	return h.reserve("mark-in-use", id, terminal, reservation, "")
}

// MarkInUseAs is MarkInUse that also checks the terminal's direction admits
// role.
func (h *Hostess) MarkInUseAs(id, terminal, reservation string, role ReserveRole) error {
	return h.reserve("mark-in-use", id, terminal, reservation, role)
}

func (h *Hostess) reserve(op, id, terminal, reservation string, role ReserveRole) error {
	if reservation == "" {
		return &Error{Op: op, Service: id, Terminal: terminal, Err: fmt.Errorf("%w: empty reservation id", ErrReservationConflict)}
	}

	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	err := func() error {
		e := h.lookup(id, now, &evs)
		if e == nil {
			return &Error{Op: op, Service: id, Terminal: terminal, Err: ErrUnknownService}
		}
		t := e.terminal(terminal)
		if t == nil {
			return &Error{Op: op, Service: id, Terminal: terminal, Err: ErrUnknownTerminal}
		}
		if role != "" && !t.Direction.Allows(role) {
			return &Error{Op: op, Service: id, Terminal: terminal,
				Err: fmt.Errorf("%w: %s terminal cannot be reserved by a %s", ErrTerminalDirection, t.Direction, role)}
		}
		switch t.ReservedBy {
		case reservation:
			return nil
		case "":
			t.ReservedBy = reservation
			evs = append(evs, Event{Type: EventReserved, ID: id, ServerName: e.ServerName,
				Terminal: terminal, Reservation: reservation, At: now})
			return nil
		default:
			return &Error{Op: op, Service: id, Terminal: terminal, ReservedBy: t.ReservedBy, Err: ErrReservationConflict}
		}
	}()
	h.mu.Unlock()
	h.emit(evs)
	return err
}

// MarkAvailable clears terminal's reservation regardless of who holds it.
func (h *Hostess) MarkAvailable(id, terminal string) error {
	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	err := func() error {
		e := h.lookup(id, now, &evs)
		if e == nil {
			return &Error{Op: "mark-available", Service: id, Terminal: terminal, Err: ErrUnknownService}
		}
		t := e.terminal(terminal)
		if t == nil {
			return &Error{Op: "mark-available", Service: id, Terminal: terminal, Err: ErrUnknownTerminal}
		}
		if t.ReservedBy != "" {
			evs = append(evs, Event{Type: EventReleased, ID: id, ServerName: e.ServerName,
				Terminal: terminal, Reservation: t.ReservedBy, At: now})
			t.ReservedBy = ""
		}
		return nil
	}()
	h.mu.Unlock()
	h.emit(evs)
	return err
}

// Query returns copies of the live entries matching f, ordered by
// servername then identity. A nil filter matches every live entry.
func (h *Hostess) Query(f *Filter) []Entry {
	return h.collect(f.Match)
}

// List returns every live entry.
func (h *Hostess) List() []Entry {
	return h.collect(func(*Entry) bool { return true })
}

func (h *Hostess) collect(match func(*Entry) bool) []Entry {
	h.mu.RLock()
	now := h.cfg.Clock.Now()
	out := make([]Entry, 0, len(h.entries))
	for _, e := range h.entries {
		if h.live(e, now) && match(e) {
			out = append(out, e.clone())
		}
	}
	h.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.ServerName, b.ServerName), cmp.Compare(a.ID, b.ID))
	})
	return out
}
