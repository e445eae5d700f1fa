package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schedulehub.org/internal/obs"
)

const (
	claimRole      = "role"
	claimFacultyID = "faculty_id"
)

// Service orchestrates registration, login and refresh over a CredentialStore
// and the token service.
type Service struct {
	store  CredentialStore
	tokens *Tokens
	verify func(hash, password string) error
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// NewService constructs Service with optional configuration.
func NewService(store CredentialStore, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	svc := &Service{store: store, tokens: tokens, verify: VerifyPassword}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tokens exposes the token service backing this Service.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a STUDENT or TEACHER identity and returns its first token pair.
func (s *Service) Register(ctx context.Context, reg Registration) (TokenPair, error) {
	email := normalizeEmail(reg.Email)
	if !validEmail(email) {
		return TokenPair{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if err := checkPasswordPolicy(reg.Password); err != nil {
		return TokenPair{}, err
	}
	role := reg.Role
	if role == "" {
		role = RoleStudent
	}
	if !role.Valid() {
		return TokenPair{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if role != RoleStudent && role != RoleTeacher {
		obs.RecordAuthEvent("register", "forbidden")
		return TokenPair{}, fmt.Errorf("%w: role %s cannot be self-assigned", ErrForbidden, role)
	}
	if reg.FacultyID != nil {
		if _, err := s.store.FindFaculty(ctx, *reg.FacultyID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return TokenPair{}, fmt.Errorf("%w: unknown faculty %d", ErrInvalidInput, *reg.FacultyID)
			}
			return TokenPair{}, err
		}
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	identity, err := s.store.CreateIdentity(ctx, Identity{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(reg.FullName),
		Role:         role,
		FacultyID:    reg.FacultyID,
	})
	if err != nil {
		obs.RecordAuthEvent("register", "failure")
		return TokenPair{}, err
	}
	obs.RecordAuthEvent("register", "success")
	return s.IssuePair(identity)
}

// Authenticate verifies credentials and returns a fresh token pair. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (TokenPair, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		obs.RecordAuthEvent("login", "failure")
		return TokenPair{}, ErrInvalidCredentials
	}
	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = s.verify(decoy(), creds.Password)
			obs.RecordAuthEvent("login", "failure")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}
	if err := s.verify(identity.PasswordHash, creds.Password); err != nil {
		obs.RecordAuthEvent("login", "failure")
		return TokenPair{}, ErrInvalidCredentials
	}
	obs.RecordAuthEvent("login", "success")
	return s.IssuePair(identity)
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token is handed back unchanged. Every failure collapses to ErrUnauthorized.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.CheckRefresh(refreshToken)
	if err != nil {
		obs.RecordAuthEvent("refresh", "failure")
		return TokenPair{}, ErrUnauthorized
	}
	identity, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		obs.RecordAuthEvent("refresh", "failure")
		return TokenPair{}, ErrUnauthorized
	}
	access, err := s.tokens.IssueAccessToken(identity.Email, accessClaims(identity))
	if err != nil {
		return TokenPair{}, err
	}
	obs.RecordAuthEvent("refresh", "success")
	return TokenPair{AccessToken: access, RefreshToken: strings.TrimSpace(refreshToken)}, nil
}

// ResolveIdentity validates an access token and loads the identity it names.
func (s *Service) ResolveIdentity(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		obs.RecordAuthEvent("resolve", "invalid_token")
		return Identity{}, err
	}
	identity, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RecordAuthEvent("resolve", "unknown_subject")
			return Identity{}, ErrUnauthorized
		}
		obs.RecordAuthEvent("resolve", "lookup_failed")
		return Identity{}, err
	}
	obs.RecordAuthEvent("resolve", "success")
	return identity, nil
}

// IssuePair signs an access and a refresh token for identity.
func (s *Service) IssuePair(identity Identity) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(identity.Email, accessClaims(identity))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(identity.Email)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func accessClaims(identity Identity) map[string]any {
	extra := map[string]any{claimRole: string(identity.Role)}
	if identity.FacultyID != nil {
		extra[claimFacultyID] = *identity.FacultyID
	}
	return extra
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
