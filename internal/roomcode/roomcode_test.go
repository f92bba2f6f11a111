// ABOUTME: Tests for room code generation
// ABOUTME: Verifies length, alphabet, and canonicalization rules
package roomcode

import (
	"strings"
	"testing"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := Generate()
		if len(code) != Length {
			t.Fatalf("expected length %d, got %d (%q)", Length, len(code), code)
		}
		for _, c := range code {
			if !strings.ContainsRune(alphabet, c) {
				t.Fatalf("code %q contains %q outside alphabet", code, c)
			}
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Generate()] = true
	}
	// 36^6 codes; 50 draws colliding down to a handful would mean the
	// generator is broken
	if len(seen) < 45 {
		t.Errorf("expected ~50 distinct codes, got %d", len(seen))
	}
}

func TestCanonicalize(t *testing.T) {
	if got := Canonicalize("  ab12cd "); got != "AB12CD" {
		t.Errorf("expected AB12CD, got %q", got)
	}
	if got := Canonicalize("XY99ZZ"); got != "XY99ZZ" {
		t.Errorf("expected XY99ZZ unchanged, got %q", got)
	}
}
