// Package auth holds the stateless credential primitives of the identity
// service: the bearer token codec, the password hasher and reset secrets.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"identity-service/internal/domain"
)

// TokenKind discriminates access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Identity is the subset of an account embedded into tokens.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// IdentityOf extracts the token identity of an account.
func IdentityOf(a *domain.Account) Identity {
	return Identity{UserID: a.ID, Email: a.Email, Username: a.Username}
}

// Claims is the payload of a signed token.
type Claims struct {
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Kind     TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the identity id carried in the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenCodec signs and verifies HS256 JWTs with a shared secret.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithTTLs overrides the access and refresh token lifetimes. Non-positive values keep the defaults.
func WithTTLs(access, refresh time.Duration) CodecOption {
	return func(c *TokenCodec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// WithClock replaces the time source used for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	c := &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured lifetime for kind.
func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind that expires ttl from now.
func (c *TokenCodec) Issue(id Identity, kind TokenKind, ttl time.Duration) (string, error) {
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
	now := c.now()
	claims := Claims{
		Email:    id.Email,
		Username: id.Username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// IssuePair issues an access and a refresh token with the configured lifetimes.
func (c *TokenCodec) IssuePair(id Identity) (TokenPair, error) {
	access, err := c.Issue(id, KindAccess, c.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.Issue(id, KindRefresh, c.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks the signature and expiry of token. Expired tokens yield
// domain.ErrExpiredToken, every other failure domain.ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, domain.ErrExpiredToken.Wrap(err)
		}
		return nil, domain.ErrInvalidToken.Wrap(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// VerifyKind verifies token and additionally requires it to be of the given kind.
func (c *TokenCodec) VerifyKind(token string, kind TokenKind) (*Claims, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, domain.ErrInvalidToken.WithMessage(fmt.Sprintf("expected %s token", kind))
	}
	return claims, nil
}

// Decode parses token without checking its signature or expiry. The result
// must never be used for authorization.
func Decode(token string) (*Claims, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
