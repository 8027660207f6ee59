package client

import (
	"context"

	hostessv1 "github.com/gezibash/arc-kernel/api/hostess/v1"
	"github.com/gezibash/arc-kernel/pkg/hostess"
)

// Watcher receives registry events from a Watch call.
type Watcher struct {
	stream hostessv1.Hostess_WatchClient
	cancel context.CancelFunc
}

// Watch opens an event stream, optionally limited to types. It returns once
// the server has installed the watch, so every later change is delivered.
func (c *Client) Watch(ctx context.Context, types ...hostess.EventType) (*Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.stub.Watch(ctx, &hostessv1.WatchRequest{Types: types})
	if err != nil {
		cancel()
		return nil, hostessv1.ClientError(err, nil)
	}
	if _, err := stream.Header(); err != nil {
		cancel()
		return nil, hostessv1.ClientError(err, stream.Trailer())
	}
	return &Watcher{stream: stream, cancel: cancel}, nil
}

// Recv blocks for the next event.
func (w *Watcher) Recv() (hostess.Event, error) {
	ev, err := w.stream.Recv()
	if err != nil {
		return hostess.Event{}, hostessv1.ClientError(err, w.stream.Trailer())
	}
	return *ev, nil
}

// Close ends the stream.
func (w *Watcher) Close() {
	w.cancel()
}
