package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Directory implements administrative user management on top of the
// credential store. Every method authorizes the caller found in ctx.
type Directory struct {
	store CredentialStore
}

func NewDirectory(store CredentialStore) (*Directory, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	return &Directory{store: store}, nil
}

// Me returns the caller's identity, or ErrNotFound for anonymous requests.
func (d *Directory) Me(ctx context.Context) (Identity, error) {
	identity, ok := AccessFor(ctx).Identity()
	if !ok {
		return Identity{}, ErrNotFound
	}
	return identity, nil
}

// ListUsers returns every identity to super admins and the identities of the
// caller's own faculty to admins.
func (d *Directory) ListUsers(ctx context.Context) ([]Identity, error) {
	access := AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return nil, err
	}
	if access.IsSuperAdmin() {
		return d.store.ListIdentities(ctx)
	}
	caller, _ := access.Identity()
	if caller.FacultyID == nil {
		return nil, ErrForbidden
	}
	return d.store.ListIdentitiesByFaculty(ctx, *caller.FacultyID)
}

// GetUser loads one identity the caller is allowed to administer.
func (d *Directory) GetUser(ctx context.Context, id int64) (Identity, error) {
	access := AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Identity{}, err
	}
	target, err := d.store.FindByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	if err := access.CheckAccessToResource(target); err != nil {
		return Identity{}, err
	}
	return target, nil
}

// CreateAdmin creates an account with an administrative role. Super admins only.
func (d *Directory) CreateAdmin(ctx context.Context, nu NewUser) (Identity, error) {
	if err := AccessFor(ctx).RequireSuperAdmin(); err != nil {
		return Identity{}, err
	}
	email := normalizeEmail(nu.Email)
	if !validEmail(email) {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if nu.Password == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err := checkPasswordPolicy(nu.Password); err != nil {
		return Identity{}, err
	}
	role := nu.Role
	if role == "" {
		role = RoleAdmin
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := d.checkFaculty(ctx, nu.FacultyID); err != nil {
		return Identity{}, err
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}
	return d.store.CreateIdentity(ctx, Identity{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(nu.FullName),
		Role:         role,
		FacultyID:    nu.FacultyID,
	})
}

// UpdateRole replaces role and faculty of an identity. Super admins only.
func (d *Directory) UpdateRole(ctx context.Context, id int64, role Role, facultyID *int64) (Identity, error) {
	if err := AccessFor(ctx).RequireSuperAdmin(); err != nil {
		return Identity{}, err
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	target, err := d.store.FindByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	if err := d.checkFaculty(ctx, facultyID); err != nil {
		return Identity{}, err
	}
	target.Role = role
	target.FacultyID = facultyID
	return d.store.UpdateIdentity(ctx, target)
}

// UpdateUser applies a partial update. Admins may only edit non-super-admin
// identities of their own faculty, and the faculty of the result is pinned to
// the admin's faculty.
func (d *Directory) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (Identity, error) {
	access := AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return Identity{}, err
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *upd.Role)
	}
	target, err := d.store.FindByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	if err := access.CheckIdentityMutation(target, upd.Role); err != nil {
		return Identity{}, err
	}

	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if !validEmail(email) {
			return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		target.Email = email
	}
	if upd.FullName != nil {
		target.FullName = strings.TrimSpace(*upd.FullName)
	}
	if upd.Password != nil && *upd.Password != "" {
		if err := checkPasswordPolicy(*upd.Password); err != nil {
			return Identity{}, err
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return Identity{}, fmt.Errorf("hash password: %w", err)
		}
		target.PasswordHash = hash
	}
	if upd.Role != nil {
		target.Role = *upd.Role
	}
	if access.IsSuperAdmin() {
		if upd.FacultyID != nil {
			if err := d.checkFaculty(ctx, upd.FacultyID); err != nil {
				return Identity{}, err
			}
			target.FacultyID = upd.FacultyID
		}
	} else {
		caller, _ := access.Identity()
		target.FacultyID = caller.FacultyID
	}
	return d.store.UpdateIdentity(ctx, target)
}

// DeleteUser removes an identity under the same rules as UpdateUser.
func (d *Directory) DeleteUser(ctx context.Context, id int64) error {
	access := AccessFor(ctx)
	if err := access.RequireAdmin(); err != nil {
		return err
	}
	target, err := d.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckIdentityMutation(target, nil); err != nil {
		return err
	}
	return d.store.DeleteIdentity(ctx, id)
}

func (d *Directory) checkFaculty(ctx context.Context, facultyID *int64) error {
	if facultyID == nil {
		return nil
	}
	if _, err := d.store.FindFaculty(ctx, *facultyID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown faculty %d", ErrInvalidInput, *facultyID)
		}
		return err
	}
	return nil
}
