package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = bcrypt.DefaultCost

// ErrInvalidCredentials is returned for any login mismatch
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a bcrypt hash
func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// Operator is the single configured console account
type Operator struct {
	User         string
	PasswordHash string
}

// Check verifies a login. An operator without a hash rejects everyone.
func (o Operator) Check(user, password string) error {
	if o.PasswordHash == "" || user != o.User {
		return ErrInvalidCredentials
	}
	if err := VerifyPassword(o.PasswordHash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
