package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost bounds brute-force feasibility while keeping login latency in
// the tens of milliseconds.
const bcryptCost = 12

// HashPassword hashes a plaintext password using bcrypt. The salt is
// generated per call and embedded in the output, so verification is
// self-contained.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext candidate with a stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
