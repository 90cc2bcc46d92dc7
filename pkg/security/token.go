package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the identity carried by a session token
type Claims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, expiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// Expiry is how long issued tokens stay valid
func (t *TokenIssuer) Expiry() time.Duration {
	return t.expiry
}

// Issue returns a signed token for the user and the time it expires at
func (t *TokenIssuer) Issue(id, name, email string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.expiry)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: id,
		Name:   name,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token, %w", err)
	}

	return s, exp, nil
}

// Parse verifies the signature and expiry of s and returns its claims
func (t *TokenIssuer) Parse(s string) (*Claims, error) {
	var c Claims

	tok, err := jwt.ParseWithClaims(s, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		return nil, fmt.Errorf("%w, %w", ErrTokenInvalid, err)
	}

	if !tok.Valid || c.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return &c, nil
}
