package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/toolmeta/toolregistry/internal/registry"
)

// AdminPrincipalID is the principal id assigned to holders of the admin token.
const AdminPrincipalID = "admin"

const adminTokenMessage = "admin-access"

// GenerateAdminToken derives the admin token from the service's admin auth key.
// The token is the URL-safe base64 encoding of HMAC-SHA256(key, "admin-access").
func GenerateAdminToken(key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(adminTokenMessage))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// AdminToken authenticates the token derived from the admin auth key.
type AdminToken struct {
	token     string
	adminRole string
}

// NewAdminToken returns nil if key is empty, since an empty key would make the token guessable.
func NewAdminToken(key, adminRole string) *AdminToken {
	if key == "" {
		return nil
	}
	return &AdminToken{token: GenerateAdminToken(key), adminRole: adminRole}
}

func (a *AdminToken) Authenticate(_ context.Context, token string) (*registry.Principal, error) {
	if a == nil {
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return &registry.Principal{ID: AdminPrincipalID, Roles: []string{a.adminRole}}, nil
}
