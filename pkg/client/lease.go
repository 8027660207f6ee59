package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
)

// registry is the subset of Client a Lease needs.
type registry interface {
	Info(ctx context.Context) (interval, threshold time.Duration, err error)
	Register(ctx context.Context, m hostess.Manifest) (string, error)
	Heartbeat(ctx context.Context, id string) error
	Deregister(ctx context.Context, id string) error
}

type clientRegistry struct{ *Client }

func (c clientRegistry) Info(ctx context.Context) (time.Duration, time.Duration, error) {
	info, err := c.Client.Info(ctx)
	if err != nil {
		return 0, 0, err
	}
	return info.HeartbeatInterval, info.EvictionThreshold, nil
}

// LeaseConfig configures a Lease. Zero Interval uses the registry's
// advertised heartbeat interval.
type LeaseConfig struct {
	Interval time.Duration
	Clock    clockwork.Clock
	Logger   *logging.Logger
	// OnRenew is called with the new identity after a re-registration.
	OnRenew func(id string)
}

// Lease keeps a registration alive by heartbeating. If the registry has
// evicted the entry, the manifest is registered again under the same
// identity.
type Lease struct {
	reg      registry
	manifest hostess.Manifest
	cfg      LeaseConfig
	log      *logging.Logger

	mu sync.Mutex
	id string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Lease registers m and starts heartbeating in the background.
func (c *Client) Lease(ctx context.Context, m hostess.Manifest, cfg LeaseConfig) (*Lease, error) {
	return newLease(ctx, clientRegistry{c}, m, cfg)
}

func newLease(ctx context.Context, reg registry, m hostess.Manifest, cfg LeaseConfig) (*Lease, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New(nil)
	}
	if cfg.Interval <= 0 {
		interval, _, err := reg.Info(ctx)
		if err != nil {
			return nil, err
		}
		cfg.Interval = interval
	}

	id, err := reg.Register(ctx, m)
	if err != nil {
		return nil, err
	}
	m.UUID = id

	l := &Lease{
		reg:      reg,
		manifest: m,
		cfg:      cfg,
		log:      log.WithComponent("lease").WithIdentity(id),
		id:       id,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// ID returns the current registry identity.
func (l *Lease) ID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

func (l *Lease) run() {
	defer close(l.done)
	ticker := l.cfg.Clock.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.Chan():
			l.beat()
		}
	}
}

func (l *Lease) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.Interval)
	defer cancel()

	id := l.ID()
	err := l.reg.Heartbeat(ctx, id)
	if err == nil {
		return
	}
	if !errors.Is(err, hostess.ErrUnknownService) {
		l.log.Warn("heartbeat failed", "error", err)
		return
	}

	newID, err := l.reg.Register(ctx, l.manifest)
	if err != nil {
		l.log.Warn("re-register failed", "error", err)
		return
	}
	l.mu.Lock()
	l.id = newID
	l.mu.Unlock()
	l.log.Info("re-registered after eviction")
	if l.cfg.OnRenew != nil {
		l.cfg.OnRenew(newID)
	}
}

// Release stops heartbeating and deregisters.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		err = l.reg.Deregister(ctx, l.ID())
		if errors.Is(err, hostess.ErrUnknownService) {
			err = nil
		}
	})
	return err
}
