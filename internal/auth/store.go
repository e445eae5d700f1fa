package auth

import "context"

// CredentialStore is the narrow persistence contract the auth core relies on.
// Implementations return ErrNotFound for missing rows and ErrAlreadyExists for
// duplicate emails.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id int64) (Identity, error)
	CreateIdentity(ctx context.Context, identity Identity) (Identity, error)
	UpdateIdentity(ctx context.Context, identity Identity) (Identity, error)
	DeleteIdentity(ctx context.Context, id int64) error
	ListIdentities(ctx context.Context) ([]Identity, error)
	ListIdentitiesByFaculty(ctx context.Context, facultyID int64) ([]Identity, error)
	FindFaculty(ctx context.Context, id int64) (Faculty, error)
}
