package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single privilege level held by an identity.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleTeacher    Role = "TEACHER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole converts a textual role into a Role, accepting any letter case.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r carries at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.rank() >= other.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleStudent:
		return 1
	case RoleTeacher:
		return 2
	case RoleAdmin:
		return 3
	case RoleSuperAdmin:
		return 4
	default:
		return 0
	}
}

// Faculty is the organisational unit administrators are scoped to.
type Faculty struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is an authenticated user as stored by the credential store.
type Identity struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         Role      `json:"role"`
	FacultyID    *int64    `json:"facultyId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OwningFaculty lets identities be filtered and checked like any other scoped record.
func (i Identity) OwningFaculty() (int64, bool) {
	if i.FacultyID == nil {
		return 0, false
	}
	return *i.FacultyID, true
}

// Registration carries the fields accepted by self-service sign-up.
type Registration struct {
	Email     string
	Password  string
	FullName  string
	Role      Role
	FacultyID *int64
}

// Credentials is an email/password login attempt.
type Credentials struct {
	Email    string
	Password string
}

// TokenPair is the result of every successful login, registration or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// NewUser describes an account created by an administrator.
type NewUser struct {
	Email     string
	Password  string
	FullName  string
	Role      Role
	FacultyID *int64
}

// UserUpdate is a partial update; nil fields are left untouched.
type UserUpdate struct {
	Email    *string
	FullName *string
	Password *string
	Role     *Role
	// FacultyID is applied as-is for super admins and pinned to the actor's faculty otherwise.
	FacultyID *int64
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
