package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	salt, err := h.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt returned error: %v", err)
	}
	if salt == "" {
		t.Fatal("expected a non-empty salt")
	}

	hash, err := h.Hash(salt, "correcthorse")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if err := h.Compare(hash, salt, "correcthorse"); err != nil {
		t.Errorf("Compare rejected the correct password: %v", err)
	}
	if err := h.Compare(hash, salt, "wrong"); err == nil {
		t.Error("Compare accepted a wrong password")
	}
	if err := h.Compare(hash, "other-salt", "correcthorse"); err == nil {
		t.Error("Compare accepted a wrong salt")
	}
}

func TestBcryptHasher_SaltsDiffer(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	a, err := h.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt returned error: %v", err)
	}
	b, err := h.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt returned error: %v", err)
	}
	if a == b {
		t.Error("two generated salts should not match")
	}
}
