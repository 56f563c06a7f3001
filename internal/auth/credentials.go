package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials holds the single operator account of a console instance.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials uses passwordHash when set, otherwise hashes password.
func NewCredentials(username, password, passwordHash string) (*Credentials, error) {
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		return &Credentials{username: username, hash: []byte(passwordHash)}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Credentials{username: username, hash: hash}, nil
}

func (c *Credentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	return userOK && passErr == nil
}
