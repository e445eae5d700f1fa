package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// minKeyBytes is the smallest HMAC-SHA256 key accepted (256 bits).
	minKeyBytes = 32

	claimTokenType = "token_type"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// reservedClaims cannot be supplied as extra claims.
var reservedClaims = map[string]struct{}{
	"sub": {}, "iat": {}, "exp": {}, "nbf": {}, "jti": {}, "iss": {}, "aud": {}, claimTokenType: {},
}

// Claims are the verified contents of a session token.
type Claims struct {
	Subject   string
	ID        string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// TokenState is the outcome of inspecting a token.
type TokenState int

const (
	TokenInvalid TokenState = iota
	TokenValid
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Verdict is the typed result of Inspect. Claims is set for valid and expired tokens only.
type Verdict struct {
	State  TokenState
	Claims *Claims
}

// Tokens issues and verifies HS256 session tokens with a single immutable key.
type Tokens struct {
	key        []byte
	parser     *jwt.Parser
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// NewTokens decodes the base64 secret once and returns a ready token service.
func NewTokens(secretB64 string, opts ...TokenOption) (*Tokens, error) {
	key, err := DecodeSecret(secretB64)
	if err != nil {
		return nil, err
	}
	t := &Tokens{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
		now:        time.Now,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// DecodeSecret decodes a base64 signing key and enforces the HS256 minimum length.
func DecodeSecret(secretB64 string) ([]byte, error) {
	secretB64 = strings.TrimSpace(secretB64)
	if secretB64 == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	var (
		key []byte
		err error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err = enc.DecodeString(secretB64)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("auth: signing secret is not valid base64: %w", err)
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("auth: signing secret must decode to at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return key, nil
}

// IssueAccessToken signs a 24h access token for subject carrying the given extra claims.
func (t *Tokens) IssueAccessToken(subject string, extra map[string]any) (string, error) {
	return t.issue(subject, KindAccess, t.accessTTL, extra)
}

// IssueRefreshToken signs a refresh token for subject.
func (t *Tokens) IssueRefreshToken(subject string) (string, error) {
	return t.issue(subject, KindRefresh, t.refreshTTL, nil)
}

func (t *Tokens) issue(subject string, kind TokenKind, ttl time.Duration, extra map[string]any) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token subject is required", ErrInvalidInput)
	}
	now := t.now().UTC()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	claims["jti"] = uuid.NewString()
	claims[claimTokenType] = string(kind)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Inspect verifies the signature and classifies the token as valid, expired or invalid.
func (t *Tokens) Inspect(raw string) Verdict {
	claims, err := t.parse(raw)
	if err != nil {
		return Verdict{State: TokenInvalid}
	}
	if t.now().UTC().After(claims.ExpiresAt) {
		return Verdict{State: TokenExpired, Claims: claims}
	}
	return Verdict{State: TokenValid, Claims: claims}
}

// ParseClaims returns the claims of a well-signed token, even when it has expired.
// Malformed or mis-signed tokens yield ErrInvalidSignature.
func (t *Tokens) ParseClaims(raw string) (Claims, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return Claims{}, err
	}
	return *claims, nil
}

// Validate reports whether raw is well-signed, unexpired and issued to expectedSubject.
func (t *Tokens) Validate(raw, expectedSubject string) bool {
	v := t.Inspect(raw)
	return v.State == TokenValid && v.Claims.Subject == expectedSubject
}

// ValidateAccess accepts only valid access tokens.
func (t *Tokens) ValidateAccess(raw string) (Claims, error) {
	v := t.Inspect(raw)
	switch v.State {
	case TokenInvalid:
		return Claims{}, ErrInvalidSignature
	case TokenExpired:
		return *v.Claims, ErrExpired
	}
	if v.Claims.Kind != KindAccess {
		return Claims{}, ErrInvalidTokenKind
	}
	return *v.Claims, nil
}

// CheckRefresh accepts only valid refresh tokens and returns their claims.
func (t *Tokens) CheckRefresh(raw string) (Claims, error) {
	v := t.Inspect(raw)
	switch v.State {
	case TokenInvalid:
		return Claims{}, ErrInvalidSignature
	case TokenExpired:
		return *v.Claims, ErrExpired
	}
	if v.Claims.Kind != KindRefresh {
		return Claims{}, ErrInvalidTokenKind
	}
	return *v.Claims, nil
}

// Refresh mints a new access token for the subject of a valid refresh token.
// The refresh token itself is not rotated.
func (t *Tokens) Refresh(refreshToken string) (string, error) {
	claims, err := t.CheckRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	return t.IssueAccessToken(claims.Subject, nil)
}

func (t *Tokens) parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidSignature
	}
	mc := jwt.MapClaims{}
	token, err := t.parser.ParseWithClaims(raw, mc, func(*jwt.Token) (any, error) {
		return t.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSignature
	}
	return claimsFromMap(mc)
}

func claimsFromMap(mc jwt.MapClaims) (*Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, ErrInvalidSignature
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidSignature
	}
	iat, err := mc.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidSignature
	}
	c := &Claims{
		Subject:   sub,
		Kind:      KindAccess,
		ExpiresAt: exp.Time.UTC(),
	}
	if iat != nil {
		c.IssuedAt = iat.Time.UTC()
	}
	if raw, ok := mc[claimTokenType]; ok {
		kind, _ := raw.(string)
		switch TokenKind(kind) {
		case KindAccess, KindRefresh:
			c.Kind = TokenKind(kind)
		default:
			return nil, ErrInvalidSignature
		}
	}
	if jti, ok := mc["jti"].(string); ok {
		c.ID = jti
	}
	for k, v := range mc {
		if _, reserved := reservedClaims[k]; reserved {
			continue
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return c, nil
}
