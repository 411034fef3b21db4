// Package identity issues and verifies the portal's session tokens. User
// accounts live in the site-administration system; this service only needs
// to know which numeric actor ID a request acts as, so the claims carry the
// external actor ID rather than a local user record.
package identity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the JWT claims for a portal session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	ActorID int64  `json:"actor_id"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"` // "admin" when set
}

// TokenIssuer issues and verifies session JWTs signed with an HS256 secret
// shared with the site-administration system.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	issuerURL — the "iss" claim value; matches the portal's base URL.
//	ttl       — token lifetime (default: 24 hours).
func NewTokenIssuer(secret []byte, issuerURL string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuerURL, ttl: ttl}
}

// Issue creates a signed session token for an actor.
func (t *TokenIssuer) Issue(actorID int64, email string) (string, error) {
	return t.issue(actorID, email, "", t.ttl)
}

// IssueAdminToken creates a signed token carrying Role="admin". It is issued
// only in exchange for the static admin secret.
func (t *TokenIssuer) IssueAdminToken(actorID int64, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	return t.issue(actorID, "", "admin", ttl)
}

func (t *TokenIssuer) issue(actorID int64, email, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(actorID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		ActorID: actorID,
		Email:   email,
		Role:    role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if claims.ActorID == 0 {
		return nil, fmt.Errorf("session token missing actor id")
	}
	return claims, nil
}
