// Package auth turns bearer credentials into registry principals.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/toolmeta/toolregistry/internal/registry"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned when a credential is not recognised by an authenticator.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator resolves a bearer token to a principal.
// It returns ErrInvalidCredentials if the token does not belong to it,
// and any other error if it could not decide.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*registry.Principal, error)
}

// Chain tries each authenticator in order and returns the first principal found.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, token string) (*registry.Principal, error) {
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	var lastErr error
	for _, a := range c {
		p, err := a.Authenticate(ctx, token)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrInvalidCredentials) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrInvalidCredentials
}

// BearerToken extracts the token from an Authorization header value.
// It returns an empty string if the header does not carry a bearer token.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Options selects the authenticators of a Chain.
type Options struct {
	// AdminAuthKey enables the admin token when set.
	AdminAuthKey string
	AdminRole    string

	// Users enables user access tokens when set.
	Users UserLookup

	// UserInfoURL enables OIDC bearer tokens when set.
	UserInfoURL     string
	UserInfoTimeout time.Duration

	Logger *zap.Logger
}

// NewChain builds the chain in a fixed order: admin token, user tokens, then OIDC userinfo.
// The remote userinfo call comes last so that local credentials never leave the process.
func NewChain(o Options) Chain {
	adminRole := o.AdminRole
	if adminRole == "" {
		adminRole = registry.DefaultAdminRole
	}
	var c Chain
	if o.AdminAuthKey != "" {
		c = append(c, NewAdminToken(o.AdminAuthKey, adminRole))
	}
	if o.Users != nil {
		c = append(c, NewUserToken(o.Users, adminRole))
	}
	if o.UserInfoURL != "" {
		c = append(c, NewUserInfo(o.UserInfoURL, o.UserInfoTimeout, o.Logger))
	}
	return c
}
