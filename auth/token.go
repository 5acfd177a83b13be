package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned for tokens that are not a parseable JWT.
var ErrMalformedToken = errors.New("malformed access token")

// Identity is what the CLI needs to know about the signed-in user. The
// platform verifies the signature; the CLI only reads the claims.
type Identity struct {
	UserID  string
	Email   string
	Expires time.Time
}

// Expired reports whether the token is past its expiry at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.Expires.IsZero() && !now.Before(i.Expires)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Parse reads the identity from an access token without verifying it.
func Parse(token string) (Identity, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrMalformedToken)
	}

	id := Identity{UserID: c.Subject, Email: c.Email}
	if c.ExpiresAt != nil {
		id.Expires = c.ExpiresAt.Time
	}
	return id, nil
}

// Subject returns the user id the token was issued to.
func Subject(token string) (string, error) {
	id, err := Parse(token)
	return id.UserID, err
}

// Current loads the stored token and its identity.
func Current() (string, Identity, error) {
	token, err := GetToken()
	if err != nil {
		return "", Identity{}, err
	}
	id, err := Parse(token)
	if err != nil {
		return "", Identity{}, err
	}
	return token, id, nil
}
