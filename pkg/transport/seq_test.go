package transport

import "testing"

func TestSeqTracker(t *testing.T) {
	var tr SeqTracker

	if gap, dup := tr.Observe(1); gap != 0 || dup {
		t.Fatalf("Observe(1) = %d, %v", gap, dup)
	}
	if gap, dup := tr.Observe(2); gap != 0 || dup {
		t.Fatalf("Observe(2) = %d, %v", gap, dup)
	}
	if gap, dup := tr.Observe(5); gap != 2 || dup {
		t.Fatalf("Observe(5) = %d, %v, want gap 2", gap, dup)
	}
	if _, dup := tr.Observe(5); !dup {
		t.Fatal("expected repeated 5 to be a duplicate")
	}
	if _, dup := tr.Observe(3); !dup {
		t.Fatal("expected late 3 to be a duplicate")
	}
	if tr.Last() != 5 {
		t.Fatalf("Last() = %d", tr.Last())
	}
	gaps, dups := tr.Stats()
	if gaps != 2 || dups != 2 {
		t.Fatalf("Stats() = %d, %d", gaps, dups)
	}
}

func TestSeqTracker_FirstGap(t *testing.T) {
	var tr SeqTracker
	if gap, _ := tr.Observe(3); gap != 2 {
		t.Fatalf("gap = %d, want 2", gap)
	}
}
