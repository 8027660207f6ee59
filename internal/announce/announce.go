// Package announce republishes registry events on control buses as
// "hostess.<event type>" topics.
package announce

import (
	"sync"

	"github.com/gezibash/arc-kernel/internal/queue"
	"github.com/gezibash/arc-kernel/pkg/hostess"
	"github.com/gezibash/arc-kernel/pkg/logging"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

// TopicPrefix prefixes every registry topic.
const TopicPrefix = "hostess."

// Topic returns the bus topic for t.
func Topic(t hostess.EventType) string { return TopicPrefix + string(t) }

// Source is the registry side. *hostess.Hostess satisfies it.
type Source interface {
	Watch(fn func(hostess.Event)) (cancel func())
}

// Announcer forwards registry events to buses. Watch callbacks only push to
// a mailbox; one goroutine does the publishing.
type Announcer struct {
	mailbox *queue.Queue[hostess.Event]
	buses   []transport.Bus
	log     *logging.Logger

	topics map[topicKey]transport.Topic

	unwatch  func()
	done     chan struct{}
	stopOnce sync.Once
}

type topicKey struct {
	bus int
	typ hostess.EventType
}

// Start watches src and publishes each event to every bus, in order.
func Start(src Source, log *logging.Logger, buses ...transport.Bus) *Announcer {
	if log == nil {
		log = logging.New(nil)
	}
	a := &Announcer{
		mailbox: queue.New[hostess.Event](),
		buses:   buses,
		log:     log.WithComponent("announce"),
		topics:  make(map[topicKey]transport.Topic),
		done:    make(chan struct{}),
	}
	go a.run()
	a.unwatch = src.Watch(func(ev hostess.Event) {
		_, _ = a.mailbox.Push(ev)
	})
	return a
}

func (a *Announcer) run() {
	defer close(a.done)
	for ev := range a.mailbox.Out() {
		for i, b := range a.buses {
			key := topicKey{bus: i, typ: ev.Type}
			t, ok := a.topics[key]
			if !ok {
				t = b.Topic(Topic(ev.Type))
				a.topics[key] = t
			}
			if err := t.Publish(ev); err != nil {
				a.log.Warn("publish registry event failed",
					"topic", t.Name(),
					"id", ev.ID,
					"error", err,
				)
			}
		}
	}
}

// Stop detaches from the registry and returns once queued events have been
// published.
func (a *Announcer) Stop() {
	a.stopOnce.Do(func() {
		a.unwatch()
		a.mailbox.End()
	})
	<-a.done
}
