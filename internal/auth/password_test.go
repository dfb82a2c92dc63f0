package auth

import "testing"

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("Admin@123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Admin@123456" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "Admin@123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-password"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestHashPasswordProducesDistinctHashes(t *testing.T) {
	h1, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected salted hashes to differ")
	}
}
