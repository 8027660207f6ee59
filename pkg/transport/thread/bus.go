package thread

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gezibash/arc-kernel/pkg/transport"
)

// Bus is a control bus over a Port. Publishing relays to the peer; local
// subscribers only see what the peer publishes.
type Bus struct {
	port    *Port
	hub     *transport.Hub
	log     *slog.Logger
	metrics *transport.Metrics

	mu         sync.Mutex
	closed     bool
	peerTopics map[string]struct{}

	done chan struct{}
}

// NewBus starts a bus on port. The port must not be shared.
func NewBus(port *Port, opts transport.Options) *Bus {
	opts = opts.WithDefaults()
	b := &Bus{
		port:       port,
		hub:        transport.NewHub(),
		log:        opts.Logger.WithComponent("thread-bus").Slog(),
		metrics:    opts.Metrics,
		peerTopics: make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	go b.recvLoop()
	return b
}

// Topic binds name. The first binding of a name tells the peer to route it
// here.
func (b *Bus) Topic(name string) transport.Topic {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed && b.hub.Open(name) {
		_ = b.port.Send(Message{Type: TypeSubscribe, Topic: name})
	}
	return transport.NewTopic(name, b.hub,
		func(data any) error { return b.publish(name, data) },
		func() error { return b.unsubscribe(name) })
}

func (b *Bus) Subscribe(topic string, h transport.Handler) (func(), error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	b.Topic(topic)
	return b.hub.Subscribe(topic, h), nil
}

// PeerTopics returns the topics the peer has subscribed to.
func (b *Bus) PeerTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.peerTopics))
	for name := range b.peerTopics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (b *Bus) publish(name string, data any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", name, err)
	}
	if err := b.port.Send(Message{Type: TypePublish, Topic: name, Data: raw}); err != nil {
		return err
	}
	b.metrics.BusMessage(kind, "out")
	return nil
}

func (b *Bus) unsubscribe(name string) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil
	}
	return b.port.Send(Message{Type: TypeUnsubscribe, Topic: name})
}

func (b *Bus) recvLoop() {
	defer close(b.done)
	for msg := range b.port.Recv() {
		switch msg.Type {
		case TypePublish:
			b.metrics.BusMessage(kind, "in")
			if !b.hub.Deliver(msg.Topic, msg.Data) {
				b.log.Debug("dropping publish for unbound topic", "topic", msg.Topic)
			}
		case TypeSubscribe:
			b.mu.Lock()
			b.peerTopics[msg.Topic] = struct{}{}
			b.mu.Unlock()
		case TypeUnsubscribe:
			b.mu.Lock()
			delete(b.peerTopics, msg.Topic)
			b.mu.Unlock()
		default:
			b.metrics.ProtocolError(kind)
			b.log.Debug("dropping unexpected message", "type", msg.Type)
		}
	}
}

// Close releases the port and stops every local topic.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	_ = b.port.Close()
	<-b.done
	b.hub.Close()
	return nil
}
