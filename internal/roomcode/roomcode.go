// ABOUTME: Room code generation and canonicalization
// ABOUTME: Short human-typeable codes, case-insensitive, A-Z0-9 alphabet
package roomcode

import (
	"crypto/rand"
	"strings"
)

// Length of a generated room code
const Length = 6

// alphabet is uppercase alphanumeric; codes are canonicalized to upper
// case so they stay case-insensitive for the person typing them
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a fresh room code. Collision checking against live
// rooms is the registry's job.
func Generate() string {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the OS entropy source is broken;
		// nothing sensible to fall back to
		panic(err)
	}

	code := make([]byte, Length)
	for i, b := range buf {
		code[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(code)
}

// Canonicalize normalizes user input for lookup: trims whitespace and
// upper-cases.
func Canonicalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
