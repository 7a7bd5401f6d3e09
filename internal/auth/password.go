package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"unicode/utf8"

	"github.com/otcheredev/roadservice-api/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// bcrypt rejects inputs longer than this
const maxPasswordBytes = 72

// dummyHash is compared against when no account exists so that unknown
// emails take as long as wrong passwords
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// ValidatePassword enforces the minimum credential strength
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation("Password must be at least 8 characters long")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("Password must be at most 72 bytes long")
	}
	return nil
}

// HashPassword hashes password with bcrypt
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. An empty hash burns
// a dummy comparison and returns false.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TemporaryPassword generates a random password for admin resets
func TemporaryPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
