package hostess

// Watch calls fn for every registry change until the returned cancel is
// called. fn runs on the goroutine that made the change, after the registry
// lock is released; it must not block.
func (h *Hostess) Watch(fn func(Event)) (cancel func()) {
	h.watchMu.Lock()
	h.watchSeq++
	id := h.watchSeq
	h.watchers[id] = fn
	h.watchMu.Unlock()

	return func() {
		h.watchMu.Lock()
		delete(h.watchers, id)
		h.watchMu.Unlock()
	}
}

func (h *Hostess) emit(evs []Event) {
	if len(evs) == 0 {
		return
	}
	h.watchMu.RLock()
	fns := make([]func(Event), 0, len(h.watchers))
	for _, fn := range h.watchers {
		fns = append(fns, fn)
	}
	h.watchMu.RUnlock()

	for _, ev := range evs {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
