package store

import (
	"crypto/rand"
	"encoding/hex"
)

// newLockToken generates the opaque token stored on every seat lock.
// 16 random bytes give a 32 character hex string, enough for client
// correlation without being guessable.
func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
