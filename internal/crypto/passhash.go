// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// Hasher turns plaintext passwords into opaque digests and checks them.
type Hasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, digest []byte) bool
}

// Argon2 is the default Hasher. Digests are salt || Argon2id key.
type Argon2 struct{}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash returns a fresh salted digest of password.
func (Argon2) Hash(password string) ([]byte, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return nil, err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return append(salt, key...), nil
}

// Verify reports whether password matches digest.
func (Argon2) Verify(password string, digest []byte) bool {
	if len(digest) != saltLen+int(argonKeyLen) {
		return false
	}
	salt, want := digest[:saltLen], digest[saltLen:]
	got := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
