package client

import (
	"net/http"
	"net/url"

	"github.com/toolmeta/toolregistry/pkg/types"
)

// CreateUser creates a user account and returns it with its access token. Only admins may call it.
func (c *Client) CreateUser(req *types.CreateOrUpdateUserRequest) (*types.CreateOrUpdateUserResponse, error) {
	u, _ := c.constructAPIEndpoint("/users")

	var created types.CreateOrUpdateUserResponse
	if err := c.doJSON(http.MethodPost, u, req, http.StatusCreated, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RotateUserToken replaces the access token of an existing user. Only admins may call it.
// Tools the user registered keep their owner, since ownership follows the username.
func (c *Client) RotateUserToken(username, accessToken string) (*types.CreateOrUpdateUserResponse, error) {
	u, _ := c.constructAPIEndpoint("/users/" + url.PathEscape(username))

	var updated types.CreateOrUpdateUserResponse
	body := &types.CreateOrUpdateUserRequest{Username: username, AccessToken: accessToken}
	if err := c.doJSON(http.MethodPut, u, body, http.StatusOK, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteUser deletes a user account. Only admins may call it.
// Tools registered by the user stay in the registry and can still be managed by admins.
func (c *Client) DeleteUser(username string) error {
	u, _ := c.constructAPIEndpoint("/users/" + url.PathEscape(username))
	return c.doJSON(http.MethodDelete, u, nil, http.StatusNoContent, nil)
}

// ListUsers lists all user accounts ordered by username. Only admins may call it.
func (c *Client) ListUsers() ([]*types.User, error) {
	u, _ := c.constructAPIEndpoint("/users")

	var users []*types.User
	if err := c.doJSON(http.MethodGet, u, nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Whoami returns the principal the server resolves accessToken to, whatever kind of credential it is.
// The client's own token is not used.
func (c *Client) Whoami(accessToken string) (*types.WhoAmIResponse, error) {
	u, _ := c.constructAPIEndpoint("/users/whoami")

	scoped := *c
	scoped.accessToken = accessToken

	var me types.WhoAmIResponse
	if err := scoped.doJSON(http.MethodGet, u, nil, http.StatusOK, &me); err != nil {
		return nil, err
	}
	return &me, nil
}
