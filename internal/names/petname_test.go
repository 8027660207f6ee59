package names

import (
	"strings"
	"testing"
)

func TestPetname_Deterministic(t *testing.T) {
	name1 := Petname("2f1c3a40-hostess")
	name2 := Petname("2f1c3a40-hostess")
	if name1 != name2 {
		t.Errorf("same seed produced different names: %q vs %q", name1, name2)
	}
}

func TestPetname_ThreeWords(t *testing.T) {
	name := Petname("render-node.local")
	parts := strings.Split(name, "-")
	if len(parts) != 3 {
		t.Errorf("expected 3 words, got %d: %q", len(parts), name)
	}
}

func TestPetname_DifferentSeeds(t *testing.T) {
	if Petname("a") == Petname("b") {
		t.Errorf("different seeds produced same name: %q", Petname("a"))
	}
}

func TestPetname_Empty(t *testing.T) {
	if name := Petname(""); name != "unknown" {
		t.Errorf("expected unknown for empty seed, got %q", name)
	}
}
