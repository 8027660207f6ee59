package transport

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gezibash/arc-kernel/internal/queue"
)

// Hub fans events out to local subscribers. Each topic owns one queue shared
// by all of its subscribers; a single goroutine per topic drains it, so
// handlers see events in publish order.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*hubTopic
	closed bool
}

type subscription struct {
	id uint64
	fn Handler
}

type hubTopic struct {
	name string
	q    *queue.Queue[Event]
	done chan struct{}
	// dispatching is set while handlers run.
	dispatching atomic.Bool

	mu     sync.Mutex
	subs   []subscription
	nextID uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]*hubTopic)}
}

// Open ensures a queue exists for name. It reports whether the topic was
// created by this call.
func (h *Hub) Open(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if _, ok := h.topics[name]; ok {
		return false
	}
	t := &hubTopic{
		name: name,
		q:    queue.New[Event](),
		done: make(chan struct{}),
	}
	h.topics[name] = t
	go t.run()
	return true
}

// Has reports whether name is an open topic.
func (h *Hub) Has(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.topics[name]
	return ok
}

// Topics returns the open topic names, sorted.
func (h *Hub) Topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.topics))
	for name := range h.topics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Deliver queues data for the subscribers of name. It reports false when
// the topic is not open, in which case nothing is delivered.
func (h *Hub) Deliver(name string, data any) bool {
	h.mu.Lock()
	t, ok := h.topics[name]
	h.mu.Unlock()
	if !ok {
		return false
	}
	_, err := t.q.Push(Event{Topic: name, Data: data})
	return err == nil
}

// Subscribe attaches fn to name, opening the topic if needed. The returned
// function removes only fn and may be called any number of times.
func (h *Hub) Subscribe(name string, fn Handler) func() {
	h.Open(name)

	h.mu.Lock()
	t, ok := h.topics[name]
	h.mu.Unlock()
	if !ok {
		return func() {}
	}

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.subs = slices.DeleteFunc(t.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// CloseTopic ends the topic's queue. Events already queued are still
// delivered. It reports whether the topic was open.
func (h *Hub) CloseTopic(name string) bool {
	h.mu.Lock()
	t, ok := h.topics[name]
	delete(h.topics, name)
	h.mu.Unlock()
	if ok {
		t.q.End()
	}
	return ok
}

// Close ends every topic and waits for their queues to drain. A topic that
// is running a handler when Close is called is not waited for; it drains
// on its own goroutine. This lets a handler close the bus it listens on.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	topics := h.topics
	h.topics = make(map[string]*hubTopic)
	h.mu.Unlock()

	for _, t := range topics {
		t.q.End()
	}
	for _, t := range topics {
		if t.dispatching.Load() {
			continue
		}
		<-t.done
	}
}

func (t *hubTopic) run() {
	defer close(t.done)
	for ev := range t.q.Out() {
		t.mu.Lock()
		subs := slices.Clone(t.subs)
		t.mu.Unlock()
		t.dispatching.Store(true)
		for _, s := range subs {
			s.fn(ev)
		}
		t.dispatching.Store(false)
	}
}

// NewTopic builds a Topic handle over a hub. publish sends data on the
// handle's boundary; closeFn, if set, runs once when the handle closes,
// after the hub topic has been ended.
func NewTopic(name string, hub *Hub, publish func(any) error, closeFn func() error) Topic {
	hub.Open(name)
	return &hubHandle{name: name, hub: hub, publish: publish, closeFn: closeFn}
}

type hubHandle struct {
	name    string
	hub     *Hub
	publish func(any) error
	closeFn func() error
	closed  atomic.Bool
}

func (t *hubHandle) Name() string { return t.name }

func (t *hubHandle) Publish(data any) error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.publish(data)
}

func (t *hubHandle) Subscribe(h Handler) func() {
	if t.closed.Load() {
		return func() {}
	}
	return t.hub.Subscribe(t.name, h)
}

func (t *hubHandle) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.hub.CloseTopic(t.name)
	if t.closeFn != nil {
		return t.closeFn()
	}
	return nil
}
