package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for stored admin password hashes.
const bcryptCost = bcrypt.DefaultCost

// HashPassword derives a bcrypt hash of the password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(hash), err
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
