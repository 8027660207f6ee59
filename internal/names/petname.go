// Package names derives stable, human-friendly names for kernel peers.
package names

import (
	"crypto/sha256"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// Petname generates a deterministic 3-word name from an arbitrary seed using BIP-39.
// Same seed always produces the same name (e.g., "leader-monkey-parrot").
// Uses 3 words from a 2048-word vocabulary, giving ~8.5 billion combinations.
func Petname(seed string) string {
	if seed == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(seed))
	mnemonic, err := bip39.NewMnemonic(sum[:])
	if err != nil {
		return "unknown"
	}
	words := strings.Fields(mnemonic)
	if len(words) < 3 {
		return "unknown"
	}
	return words[0] + "-" + words[1] + "-" + words[2]
}
