// Package auth stores the platform access token in the system keyring and
// reads the user identity out of it.
package auth

import (
	"errors"
	"fmt"

	"github.com/lectern-cli/lectern/constant"
	"github.com/zalando/go-keyring"
)

const user = "platform-token"

// ErrNotSignedIn is returned when no token is stored in the keyring.
var ErrNotSignedIn = errors.New("not signed in, run `lectern auth login`")

// SetToken persists the platform access token to the system keyring.
func SetToken(token string) error {
	if _, err := Subject(token); err != nil {
		return err
	}
	return keyring.Set(constant.Lectern, user, token)
}

// GetToken retrieves the platform access token from the system keyring.
func GetToken() (string, error) {
	token, err := keyring.Get(constant.Lectern, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotSignedIn
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return token, nil
}

// DeleteToken removes the platform access token from the system keyring.
func DeleteToken() error {
	err := keyring.Delete(constant.Lectern, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
