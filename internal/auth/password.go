package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted for new or changed credentials.
const MinPasswordLength = 6

// HashPassword hashes plaintext password using bcrypt.
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

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// decoy returns a fixed bcrypt hash at the default cost. Logins for unknown
// emails are compared against it so they take as long as a wrong password.
func decoy() string {
	decoyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("schedulehub-decoy"), bcrypt.DefaultCost)
		if err == nil {
			decoyHash = string(hash)
		}
	})
	return decoyHash
}

func checkPasswordPolicy(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if len(password) > 72 {
		// bcrypt silently truncates longer inputs.
		return fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidInput)
	}
	return nil
}
