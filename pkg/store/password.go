package store

import (
	"golang.org/x/crypto/bcrypt"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// maxPasswordLength is the longest accepted password. bcrypt silently
// truncates input at 72 bytes, so longer passwords are rejected rather
// than hashed with a truncated prefix.
const maxPasswordLength = 72

// minPasswordLength is the shortest accepted password for local
// registration.
const minPasswordLength = 8

// HashPassword returns the bcrypt hash of password using the default
// cost. The password length is validated before hashing.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", hgerr.Newf(hgerr.CodeValidation, "store: password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return "", hgerr.Newf(hgerr.CodeValidation, "store: password must be at most %d bytes", maxPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", hgerr.Wrap(err, hgerr.CodeInternal, "store: failed to hash password")
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt
// hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
