package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/service/user"
	"go.uber.org/zap"
)

// DefaultUserInfoTimeout bounds a single call to the userinfo endpoint.
const DefaultUserInfoTimeout = 10 * time.Second

// OIDCPrincipalPrefix prefixes the "sub" claim in the ids of OIDC principals.
// Local usernames can't contain the separator, so the two id spaces never overlap.
const OIDCPrincipalPrefix = "oidc" + user.ExternalPrincipalSeparator

// UserInfo authenticates OIDC access tokens by presenting them to the provider's userinfo endpoint.
// The principal id is OIDCPrincipalPrefix followed by the "sub" claim.
// Roles are read from the "roles" claim if present.
type UserInfo struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewUserInfo(url string, timeout time.Duration, logger *zap.Logger) *UserInfo {
	if timeout <= 0 {
		timeout = DefaultUserInfoTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserInfo{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type userInfoClaims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

func (a *UserInfo) Authenticate(ctx context.Context, token string) (*registry.Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		a.logger.Debug("userinfo request failed", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims userInfoClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidCredentials
	}
	return &registry.Principal{ID: OIDCPrincipalPrefix + claims.Subject, Roles: claims.Roles}, nil
}
