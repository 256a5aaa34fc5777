// Package ident issues record identifiers.
package ident

import (
	"crypto/rand"
	"encoding/hex"
)

// Size is the number of random bytes in an identifier.
const Size = 16

// New returns a 32-character lowercase hex identifier drawn from crypto/rand.
// Uniqueness is probabilistic; nothing is checked against existing records.
func New() string {
	var b [Size]byte
	// crypto/rand.Read never returns an error and always fills b.
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	if len(id) != 2*Size {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
