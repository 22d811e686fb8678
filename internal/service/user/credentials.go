package user

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidUsername is returned when a username can't serve as a tool owner id.
var ErrInvalidUsername = errors.New("invalid username")

// ErrInvalidAccessToken is returned when a chosen access token is too weak or malformed.
var ErrInvalidAccessToken = errors.New("invalid access token")

// minAccessTokenLength applies to tokens chosen by an admin. Generated tokens are much longer.
const minAccessTokenLength = 8

// ExternalPrincipalSeparator separates the provider prefix from the subject in principal ids that
// don't come from local accounts (eg- "oidc:1234"). Usernames may not contain it, so a local
// account can never take over the tools of an external principal or the other way around.
const ExternalPrincipalSeparator = ":"

// newAccessToken returns 256 random bits as URL-safe base64 without padding.
func newAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validateAccessToken(token string) error {
	if len(token) < minAccessTokenLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrInvalidAccessToken, minAccessTokenLength)
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: must not contain whitespace", ErrInvalidAccessToken)
	}
	return nil
}

// validateUsername checks that a username is usable as a principal id.
func validateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: must not be empty", ErrInvalidUsername)
	case strings.IndexFunc(username, unicode.IsSpace) >= 0:
		return fmt.Errorf("%w: must not contain whitespace", ErrInvalidUsername)
	case strings.Contains(username, ExternalPrincipalSeparator):
		return fmt.Errorf("%w: must not contain '%s'", ErrInvalidUsername, ExternalPrincipalSeparator)
	}
	return nil
}
