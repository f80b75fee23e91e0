// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/atinyakov/commlog/internal/models"
)

// OpaqueTokenBytes is the entropy of an opaque session token.
const OpaqueTokenBytes = 32

// Claims is the payload of a signed token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens carrying an Identity.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer using secret as the HMAC key. Tokens expire ttl
// after issuance.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for id.
func (s *Signer) Issue(id models.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   id.UserID,
		Username: id.Username,
		Role:     string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns the Identity it
// carries. Every failure is reported as models.ErrUnauthenticated.
func (s *Signer) Verify(token string) (models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return models.Identity{}, models.ErrUnauthenticated
	}

	role := models.Role(claims.Role)
	if claims.UserID == "" || !role.Valid() {
		return models.Identity{}, models.ErrUnauthenticated
	}
	return models.Identity{UserID: claims.UserID, Username: claims.Username, Role: role}, nil
}

// NewOpaqueToken returns a random 256-bit token, hex encoded.
func NewOpaqueToken() (string, error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ErrNoCredential is returned by ParseBearer for an empty authorization value.
var ErrNoCredential = errors.New("no bearer credential")

// ParseBearer extracts the credential from an authorization header value.
// Both "Bearer <token>" (any case) and a bare token are accepted.
func ParseBearer(header string) (string, error) {
	v := strings.TrimSpace(header)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	} else if strings.EqualFold(v, "bearer") {
		v = ""
	}
	if v == "" || strings.ContainsAny(v, " \t") {
		return "", ErrNoCredential
	}
	return v, nil
}
