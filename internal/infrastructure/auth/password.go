package auth

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong username or password
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Credentials checks the single configured admin login
type Credentials struct {
	username     string
	passwordHash []byte
}

// NewCredentials creates Credentials from a username and bcrypt hash
func NewCredentials(username, passwordHash string) *Credentials {
	return &Credentials{username: username, passwordHash: []byte(passwordHash)}
}

// Configured reports whether an admin login exists
func (c *Credentials) Configured() bool {
	return c.username != "" && len(c.passwordHash) > 0
}

// Verify returns ErrInvalidCredentials unless both username and password match.
// The hash is compared even for a wrong username.
func (c *Credentials) Verify(username, password string) error {
	if !c.Configured() {
		return ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
