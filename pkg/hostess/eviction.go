package hostess

import "context"

// Sweep removes every entry whose heartbeat is older than the eviction
// threshold and returns how many were removed.
func (h *Hostess) Sweep() int {
	var evs []Event
	h.mu.Lock()
	now := h.cfg.Clock.Now()
	for _, e := range h.entries {
		if !h.live(e, now) {
			h.evictLocked(e, now, &evs)
		}
	}
	h.mu.Unlock()
	h.emit(evs)
	return len(evs)
}

// StartEvictionLoop sweeps every SweepInterval on the registry's clock
// until ctx ends or StopEvictionLoop is called. Starting a running loop is
// a no-op.
func (h *Hostess) StartEvictionLoop(ctx context.Context) {
	h.loopMu.Lock()
	defer h.loopMu.Unlock()
	if h.loopStop != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.loopStop = cancel
	h.loopDone = done

	ticker := h.cfg.Clock.NewTicker(h.cfg.SweepInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if n := h.Sweep(); n > 0 {
					h.log.Debug("sweep", "evicted", n)
				}
			}
		}
	}()
	h.log.Debug("eviction loop started", "interval", h.cfg.SweepInterval.String())
}

// StopEvictionLoop stops the loop and waits for it to exit. Stopping a
// stopped loop is a no-op.
func (h *Hostess) StopEvictionLoop() {
	h.loopMu.Lock()
	defer h.loopMu.Unlock()
	if h.loopStop == nil {
		return
	}
	h.loopStop()
	<-h.loopDone
	h.loopStop = nil
	h.loopDone = nil
}
