package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers a missing, malformed or badly signed token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredSignature covers a well-formed token past its expiry.
	ErrExpiredSignature = errors.New("expired signature")
	// ErrBadSecret is returned when the configured base64 secret cannot
	// be decoded for signing.
	ErrBadSecret = errors.New("signing secret is not valid base64")
)

// Claims is the session-token claim set: subject id, display name, expiry.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Codec issues and verifies stateless HS256 session tokens. The secret is
// kept in its configured base64 form and decoded on every operation so a
// bad secret surfaces as an error instead of silently signing garbage.
type Codec struct {
	secret string
	prefix string
}

// NewCodec creates a Codec for the given base64-encoded secret and bearer
// prefix ("Token " by default in the config layer).
func NewCodec(secret, prefix string) *Codec {
	return &Codec{secret: secret, prefix: prefix}
}

// Issue creates a signed session token expiring ttl from now.
func (c *Codec) Issue(id int64, username string, ttl time.Duration) (string, error) {
	return c.IssueWithExpiry(id, username, time.Now().Add(ttl))
}

// IssueWithExpiry creates a signed session token with an explicit expiry.
// The API-token resolver uses this so the minted token lapses exactly when
// the grant does.
func (c *Codec) IssueWithExpiry(id int64, username string, expiresAt time.Time) (string, error) {
	key, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadSecret, err)
	}

	claims := Claims{
		ID:       id,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Verify decodes tokenStr, checks its signature and expiry, and returns the
// claims. Failures are ErrExpiredSignature for a token past its expiry and
// ErrInvalidToken for everything else; callers map these to the distinct
// business codes 10002 and 10001.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	key, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSecret, err)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSignature
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearer strips the configured prefix from an Authorization header
// value. A missing header or mismatched prefix is ErrInvalidToken.
func (c *Codec) ExtractBearer(header string) (string, error) {
	if header == "" || !strings.HasPrefix(header, c.prefix) {
		return "", ErrInvalidToken
	}
	return header[len(c.prefix):], nil
}

// VerifyHeader extracts the bearer token from an Authorization header value
// and verifies it in one step.
func (c *Codec) VerifyHeader(header string) (*Claims, error) {
	raw, err := c.ExtractBearer(header)
	if err != nil {
		return nil, err
	}
	return c.Verify(raw)
}

// Prefix returns the configured bearer prefix.
func (c *Codec) Prefix() string {
	return c.prefix
}
