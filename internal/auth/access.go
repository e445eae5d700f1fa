package auth

import (
	"context"

	"schedulehub.org/internal/obs"
)

// Scoped is implemented by every record that belongs, directly or transitively,
// to a faculty. ok is false when the faculty cannot be resolved.
type Scoped interface {
	OwningFaculty() (facultyID int64, ok bool)
}

type facultyRef struct{ id *int64 }

func (f facultyRef) OwningFaculty() (int64, bool) {
	if f.id == nil {
		return 0, false
	}
	return *f.id, true
}

// InFaculty wraps a bare faculty id so it can be checked like a resource.
func InFaculty(facultyID *int64) Scoped {
	return facultyRef{id: facultyID}
}

// Access answers authorization questions for one request. The zero value is
// the anonymous caller.
type Access struct {
	identity *Identity
}

// NewAccess builds the decision value for identity; nil means anonymous.
func NewAccess(identity *Identity) Access {
	if identity == nil {
		return Access{}
	}
	cp := copyIdentity(*identity)
	return Access{identity: &cp}
}

// AccessFor builds the decision value from the identity attached to ctx.
func AccessFor(ctx context.Context) Access {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return Access{}
	}
	return NewAccess(&identity)
}

// Identity returns the caller, or false for anonymous requests.
func (a Access) Identity() (Identity, bool) {
	if a.identity == nil {
		return Identity{}, false
	}
	return copyIdentity(*a.identity), true
}

func (a Access) role() Role {
	if a.identity == nil {
		return ""
	}
	return a.identity.Role
}

// IsAuthenticated reports whether a caller identity is present.
func (a Access) IsAuthenticated() bool { return a.identity != nil }

// IsAdmin is true for ADMIN and SUPER_ADMIN.
func (a Access) IsAdmin() bool {
	r := a.role()
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsSuperAdmin is true only for SUPER_ADMIN.
func (a Access) IsSuperAdmin() bool { return a.role() == RoleSuperAdmin }

// HasAccessToFaculty reports whether the caller administers facultyID.
// Super admins reach every faculty; admins only their own, and a nil id on
// either side never matches.
func (a Access) HasAccessToFaculty(facultyID *int64) bool {
	switch a.role() {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		own := a.identity.FacultyID
		return own != nil && facultyID != nil && *own == *facultyID
	default:
		return false
	}
}

// CheckAccessToResource returns ErrForbidden unless the caller may administer r.
// Resources without a resolvable faculty are reachable by super admins only.
func (a Access) CheckAccessToResource(r Scoped) error {
	allowed := a.IsSuperAdmin()
	if !allowed && r != nil {
		if id, ok := r.OwningFaculty(); ok {
			allowed = a.HasAccessToFaculty(&id)
		}
	}
	obs.RecordAccessDecision("resource", allowed)
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// RequireAuthenticated returns ErrUnauthorized for anonymous callers.
func (a Access) RequireAuthenticated() error {
	if a.identity == nil {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdmin returns ErrForbidden unless the caller is ADMIN or SUPER_ADMIN.
func (a Access) RequireAdmin() error {
	ok := a.IsAdmin()
	obs.RecordAccessDecision("admin", ok)
	if !ok {
		return ErrForbidden
	}
	return nil
}

// RequireSuperAdmin returns ErrForbidden unless the caller is SUPER_ADMIN.
func (a Access) RequireSuperAdmin() error {
	ok := a.IsSuperAdmin()
	obs.RecordAccessDecision("super_admin", ok)
	if !ok {
		return ErrForbidden
	}
	return nil
}

// CheckIdentityMutation guards every privileged change of target. Only a super
// admin may touch a SUPER_ADMIN or grant that role; an admin may otherwise
// mutate identities of its own faculty only.
func (a Access) CheckIdentityMutation(target Identity, requested *Role) error {
	err := a.checkIdentityMutation(target, requested)
	obs.RecordAccessDecision("identity_mutation", err == nil)
	return err
}

func (a Access) checkIdentityMutation(target Identity, requested *Role) error {
	if !a.IsAdmin() {
		return ErrForbidden
	}
	if a.IsSuperAdmin() {
		return nil
	}
	if target.Role == RoleSuperAdmin {
		return ErrForbidden
	}
	if requested != nil && *requested == RoleSuperAdmin {
		return ErrForbidden
	}
	if id, ok := target.OwningFaculty(); !ok || !a.HasAccessToFaculty(&id) {
		return ErrForbidden
	}
	return nil
}

// FilterByAccess narrows items to the caller's faculty, preserving order.
// Super admins and non-admins get the input unchanged; an admin without a
// faculty gets nothing.
func FilterByAccess[T Scoped](a Access, items []T) []T {
	if a.role() != RoleAdmin {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		id, ok := item.OwningFaculty()
		if ok && a.HasAccessToFaculty(&id) {
			out = append(out, item)
		}
	}
	return out
}
