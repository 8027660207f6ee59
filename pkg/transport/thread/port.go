// Package thread implements the transport contracts between goroutines that
// share nothing but a message channel.
//
// A Port pair is the channel: discrete messages, copied on send, with no
// flow control of its own. Stream layers pause/resume/end signaling on top
// of it; Bus layers subscribe/publish/unsubscribe.
package thread

import (
	"encoding/json"
	"sync"

	"github.com/gezibash/arc-kernel/internal/queue"
	"github.com/gezibash/arc-kernel/pkg/transport"
)

// Message types.
const (
	TypeData        = "data"
	TypePause       = "pause"
	TypeResume      = "resume"
	TypeEnd         = "end"
	TypePublish     = "publish"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Message is one unit on a Port.
type Message struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload []byte          `json:"payload,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (m Message) clone() Message {
	if m.Payload != nil {
		m.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Data != nil {
		m.Data = append(json.RawMessage(nil), m.Data...)
	}
	return m
}

// Port is one end of a message channel. Sends never block.
type Port struct {
	mailbox   *queue.Queue[Message]
	peer      *Port
	closeOnce sync.Once
}

// NewChannel returns the two connected ends of a message channel.
func NewChannel() (*Port, *Port) {
	a := &Port{mailbox: queue.New[Message]()}
	b := &Port{mailbox: queue.New[Message]()}
	a.peer, b.peer = b, a
	return a, b
}

// Send copies m into the peer's mailbox.
func (p *Port) Send(m Message) error {
	if _, err := p.peer.mailbox.Push(m.clone()); err != nil {
		return transport.ErrClosed
	}
	return nil
}

// Recv delivers messages from the peer. It is closed once the peer closes
// and everything it sent before closing has been received.
func (p *Port) Recv() <-chan Message {
	return p.mailbox.Out()
}

// Close drops undelivered inbound messages and ends the peer's inbound side.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.mailbox.Abort()
		p.peer.mailbox.End()
	})
	return nil
}
