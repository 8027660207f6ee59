// Package transport defines the boundary-transparent messaging contracts.
//
// A Stream is a bidirectional data pipe between two terminals. A Bus carries
// named control topics. Every boundary (in-process, inter-thread, Unix
// socket, network socket) provides its own implementation of both; callers
// only ever see these interfaces and never learn which boundary the peer is
// behind.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/gezibash/arc-kernel/pkg/logging"
)

// Chunk is one unit of pipe data.
type Chunk struct {
	// Seq is the sender-assigned sequence number on boundaries that number
	// their units (network sockets). Zero elsewhere.
	Seq  uint64
	Data []byte
}

// Stream is an open pipe endpoint. Writes never block: the boolean result
// reports whether the stream is still below its high-water mark. After a
// false result the caller should wait on Drain before writing more.
type Stream interface {
	Write(p []byte) (bool, error)
	Drain() <-chan struct{}
	Data() <-chan Chunk
	// CloseWrite half-closes: no more writes, pending output is flushed and
	// the peer sees end of input. Reading continues.
	CloseWrite() error
	// Close releases the underlying channel or socket. Safe to call twice.
	Close() error
	Done() <-chan struct{}
	Err() error
}

// Event is a message observed on a control topic.
type Event struct {
	Topic string
	Data  any
}

// Decode unpacks the event data into v. Data carried across a serializing
// boundary arrives as json.RawMessage; in-process data is re-encoded.
func (e Event) Decode(v any) error {
	var raw []byte
	switch d := e.Data.(type) {
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// Handler receives events for a topic.
type Handler func(Event)

// Topic is a publish/subscribe binding to one topic name.
type Topic interface {
	Name() string
	Publish(data any) error
	// Subscribe attaches h and returns a function removing only h.
	Subscribe(h Handler) func()
	// Close detaches the whole topic from the bus.
	Close() error
}

// Bus is a control bus carrying named topics.
type Bus interface {
	Topic(name string) Topic
	Subscribe(topic string, h Handler) (func(), error)
	Close() error
}

// Reserved control topics.
const (
	TopicHeartbeat = "control.heartbeat"
	TopicShutdown  = "control.shutdown"
	TopicError     = "control.error"
	TopicClose     = "control.close"
)

// Defaults for Options.
const (
	DefaultReadBuffer  = 64
	DefaultWriteBuffer = 64 * 1024
)

// Options tune a Stream or Bus.
type Options struct {
	// ReadBuffer is the number of undelivered inbound chunks at which the
	// stream pauses its source.
	ReadBuffer int
	// WriteBuffer is the number of queued outbound bytes at which Write
	// starts reporting false.
	WriteBuffer int
	Logger      *logging.Logger
	Metrics     *Metrics
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.ReadBuffer <= 0 {
		o.ReadBuffer = DefaultReadBuffer
	}
	if o.WriteBuffer <= 0 {
		o.WriteBuffer = DefaultWriteBuffer
	}
	if o.Logger == nil {
		o.Logger = logging.New(nil)
	}
	return o
}
