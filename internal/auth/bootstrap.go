package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// EnsureSuperAdmin creates a SUPER_ADMIN account unless the email is already
// registered. An existing account is returned together with ErrAlreadyExists
// and is never modified.
func EnsureSuperAdmin(ctx context.Context, store CredentialStore, email, password, fullName string) (Identity, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if existing, err := store.FindByEmail(ctx, email); err == nil {
		return existing, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}
	if err := checkPasswordPolicy(password); err != nil {
		return Identity{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	return store.CreateIdentity(ctx, Identity{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         RoleSuperAdmin,
	})
}
