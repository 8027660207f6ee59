// Package redisbus implements the control Bus over Redis pub/sub.
//
// Each topic maps to one Redis channel, namespaced by a key prefix so
// several kernels can share a server.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-kernel/internal/confmap"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

const (
	kind = "redis"

	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyDialTimeout = "dial_timeout"
	KeyKeyPrefix   = "key_prefix"
)

func init() {
	transport.Register(kind, transport.Kind{
		Bus:      NewFactory,
		Defaults: Defaults,
	})
}

// Defaults returns the default configuration for the Redis bus.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyDialTimeout: "5s",
		KeyKeyPrefix:   "arc-kernel:",
	}
}

// NewFactory connects to Redis from a configuration map.
func NewFactory(ctx context.Context, config map[string]string, opts transport.Options) (transport.Bus, error) {
	addr := confmap.GetString(config, KeyAddr, "")
	if addr == "" {
		return nil, confmap.NewConfigError(kind, KeyAddr, "cannot be empty")
	}
	db, err := confmap.GetInt(config, KeyDB, 0)
	if err != nil {
		return nil, confmap.NewConfigErrorWithValue(kind, KeyDB, config[KeyDB], err.Error())
	}
	if db < 0 {
		return nil, confmap.NewConfigErrorWithValue(kind, KeyDB, config[KeyDB], "must be non-negative")
	}
	dialTimeout, err := confmap.GetDuration(config, KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, confmap.NewConfigErrorWithValue(kind, KeyDialTimeout, config[KeyDialTimeout], err.Error())
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    confmap.GetString(config, KeyPassword, ""),
		DB:          db,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		opts.Metrics.DialFailed(kind)
		return nil, &transport.ConnError{Op: "dial", Kind: kind, Addr: addr, Err: err}
	}

	b := New(client, confmap.GetString(config, KeyKeyPrefix, "arc-kernel:"), opts)
	b.ownsClient = true
	return b, nil
}

// Bus is a control bus on Redis pub/sub.
type Bus struct {
	client     *redis.Client
	ownsClient bool
	prefix     string
	ps         *redis.PubSub
	hub        *transport.Hub
	log        *slog.Logger
	metrics    *transport.Metrics

	mu     sync.Mutex
	closed bool

	done chan struct{}
}

// New creates a bus on an existing client. The client is not closed with
// the bus.
func New(client *redis.Client, prefix string, opts transport.Options) *Bus {
	opts = opts.WithDefaults()
	b := &Bus{
		client:  client,
		prefix:  prefix,
		ps:      client.Subscribe(context.Background()),
		hub:     transport.NewHub(),
		log:     opts.Logger.WithComponent("redis-bus").Slog(),
		metrics: opts.Metrics,
		done:    make(chan struct{}),
	}
	go b.receive()
	return b
}

func (b *Bus) channel(topic string) string { return b.prefix + topic }

func (b *Bus) Topic(name string) transport.Topic {
	b.bind(name)
	return transport.NewTopic(name, b.hub,
		func(data any) error { return b.publish(name, data) },
		func() error { return b.ps.Unsubscribe(context.Background(), b.channel(name)) })
}

// bind subscribes the Redis channel the first time a topic is used.
func (b *Bus) bind(name string) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed || !b.hub.Open(name) {
		return
	}
	if err := b.ps.Subscribe(context.Background(), b.channel(name)); err != nil {
		b.log.Warn("subscribe failed", "topic", name, "error", err)
	}
}

func (b *Bus) Subscribe(topic string, h transport.Handler) (func(), error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	b.bind(topic)
	return b.hub.Subscribe(topic, h), nil
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
	if err := b.client.Publish(context.Background(), b.channel(name), raw).Err(); err != nil {
		return &transport.ConnError{Op: "write", Kind: kind, Addr: b.client.Options().Addr, Err: err}
	}
	b.metrics.BusMessage(kind, "out")
	return nil
}

func (b *Bus) receive() {
	defer close(b.done)
	for msg := range b.ps.Channel() {
		topic, ok := strings.CutPrefix(msg.Channel, b.prefix)
		if !ok {
			continue
		}
		if !json.Valid([]byte(msg.Payload)) {
			b.metrics.ProtocolError(kind)
			b.log.Debug("dropping malformed message", "topic", topic)
			continue
		}
		b.metrics.BusMessage(kind, "in")
		b.hub.Deliver(topic, json.RawMessage(msg.Payload))
	}
}

// Close unsubscribes everything and stops delivery.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.ps.Close()
	<-b.done
	b.hub.Close()
	if b.ownsClient {
		if cerr := b.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
