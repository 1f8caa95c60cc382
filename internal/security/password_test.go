package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	passwords := []string{"Password123!", "a", "ünïcødé-Pa55!", ""}
	for _, p := range passwords {
		digest, err := h.Hash(p)
		if err != nil {
			t.Fatalf("hash %q: %v", p, err)
		}
		if digest == p {
			t.Fatalf("digest must differ from plaintext")
		}
		if !h.Verify(p, digest) {
			t.Fatalf("verify(%q, hash(%q)) should be true", p, p)
		}
		if h.Verify(p+"x", digest) {
			t.Fatalf("verify of a different password should be false")
		}
	}
}

func TestHasherSaltsEachDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("Password123!")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Hash("Password123!")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("expected different digests for repeated hashing")
	}
}

func TestHasherVerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, digest := range []string{"", "not-a-hash", "$2a$04$short"} {
		if h.Verify("Password123!", digest) {
			t.Fatalf("malformed digest %q must not verify", digest)
		}
	}
}

func TestNewHasherCostFallback(t *testing.T) {
	if got := NewHasher(0).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
	if got := NewHasher(bcrypt.MaxCost + 1).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}
