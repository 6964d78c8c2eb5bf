package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal, looks non-random", n)
	}
}

func TestArgon2_HashIsSalted(t *testing.T) {
	t.Parallel()

	var h Argon2
	d1, err := h.Hash("p@ssw0rd")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	d2, err := h.Hash("p@ssw0rd")
	if err != nil {
		t.Fatalf("Hash(2): %v", err)
	}
	if len(d1) != saltLen+int(argonKeyLen) {
		t.Fatalf("digest len=%d", len(d1))
	}
	if bytes.Equal(d1, d2) {
		t.Fatalf("same password must produce different digests")
	}
}

func TestArgon2_Verify(t *testing.T) {
	t.Parallel()

	var h Argon2
	digest, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if !h.Verify("correct horse battery staple", digest) {
		t.Fatalf("Verify: expected true for correct password")
	}
	if h.Verify("wrong", digest) {
		t.Fatalf("Verify: expected false for wrong password")
	}
	if h.Verify("", digest) {
		t.Fatalf("Verify: expected false for empty password")
	}
	if h.Verify("correct horse battery staple", digest[:10]) {
		t.Fatalf("Verify: expected false for truncated digest")
	}

	tampered := append([]byte(nil), digest...)
	tampered[0] ^= 0xff
	if h.Verify("correct horse battery staple", tampered) {
		t.Fatalf("Verify: expected false when salt changed")
	}
}
