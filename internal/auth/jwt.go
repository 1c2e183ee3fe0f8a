// Package auth provides JWT token generation and validation plus password
// hashing for the registry API.
//
// AUTHENTICATION FLOW:
//  1. POST /api/login verifies the password and issues a signed JWT carrying
//     the user's id, username, and admin flag
//  2. The client sends the token back as "Authorization: Bearer <jwt>"
//  3. Middleware verifies the signature and expiry, then puts the decoded
//     Identity into the request context for the admin-only routes
//
// The token is stateless — no session storage, the HMAC signature plus the
// server secret are the whole trust chain. Anyone able to set arbitrary
// headers still cannot mint an admin token without the secret, which is the
// point of using verified tokens for the admin gate instead of a client-set
// flag header.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is the fixed access-token lifetime. After expiry the client must
// log in again; there is no refresh flow.
const tokenTTL = time.Hour

// Identity is the verified caller identity decoded from a token.
type Identity struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. The standard "sub" claim carries the user's
// numeric ID (as a string, per RFC 7519); username and admin ride alongside
// so the admin gate needs no database lookup.
type claims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Generate creates and signs a new JWT access token for the given identity.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, same key signs and
// verifies, which fits a single-server deployment.
func (s *TokenService) Generate(userID int64, username string, isAdmin bool) (string, error) {
	return s.GenerateWithDuration(userID, username, isAdmin, tokenTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to produce already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID int64, username string, isAdmin bool, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    "broken-weave",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the identity it
// encodes.
//
// Checks performed by the jwt library:
//   - signature is valid (token wasn't tampered with)
//   - token is not expired
//   - issuer matches "broken-weave"
//   - algorithm is HS256 (jwt.WithValidMethods blocks algorithm-confusion
//     tokens signed with "none" or an unexpected method)
func (s *TokenService) Validate(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("broken-weave"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("auth: token has no valid subject")
	}

	return &Identity{
		UserID:   userID,
		Username: c.Username,
		IsAdmin:  c.IsAdmin,
	}, nil
}
