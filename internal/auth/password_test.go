package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("pw123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "pw123" {
		t.Fatal("expected password to be hashed")
	}

	if err := hasher.Verify(hash, "pw123"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := hasher.Verify(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestHasherRejectsLongPasswords(t *testing.T) {
	hasher := NewHasher(bcrypt.MinCost)
	if _, err := hasher.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestHasherVerifyMalformedHash(t *testing.T) {
	err := NewHasher(bcrypt.MinCost).Verify("not-a-hash", "pw")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected non-mismatch error for malformed hash, got %v", err)
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if got := NewHasher(99).cost; got != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", got)
	}
}
