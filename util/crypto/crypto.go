// Package crypto hashes and verifies the credential secrets stored in
// every user record's credential hash field.
package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// HashCredential derives a bcrypt hash from the given plaintext secret.
func HashCredential(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyCredential reports whether the plaintext secret matches the
// stored bcrypt hash.
func VerifyCredential(hash, secret string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
