package transport

import "sync"

// SeqTracker checks inbound sequence numbers for gaps and duplicates.
// Sequences are expected to start at 1 and increase by one per chunk.
type SeqTracker struct {
	mu      sync.Mutex
	last    uint64
	gaps    uint64
	dups    uint64
	started bool
}

// Observe records seq. gap is the number of sequence numbers skipped
// before seq; dup is true when seq is not newer than the last one seen.
func (t *SeqTracker) Observe(seq uint64) (gap uint64, dup bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started && seq <= t.last {
		t.dups++
		return 0, true
	}
	expected := t.last + 1
	if seq > expected {
		gap = seq - expected
		t.gaps += gap
	}
	t.last = seq
	t.started = true
	return gap, false
}

// Last returns the highest sequence observed.
func (t *SeqTracker) Last() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Stats returns the totals of missing and duplicate sequence numbers.
func (t *SeqTracker) Stats() (gaps, dups uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gaps, t.dups
}
