package transport

import "sync"

// Signal is a re-armable broadcast. Wait returns a channel that is closed
// when the signal fires; Reset arms a fresh channel.
type Signal struct {
	mu    sync.Mutex
	ch    chan struct{}
	fired bool
}

// NewSignal creates a signal, optionally already fired.
func NewSignal(fired bool) *Signal {
	s := &Signal{ch: make(chan struct{})}
	if fired {
		close(s.ch)
		s.fired = true
	}
	return s
}

// Wait returns the current channel.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Fire closes the current channel. No-op if already fired.
func (s *Signal) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fired {
		close(s.ch)
		s.fired = true
	}
}

// Reset arms a new channel if the current one has fired.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		s.ch = make(chan struct{})
		s.fired = false
	}
}

// Fired reports whether the signal is currently fired.
func (s *Signal) Fired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}
