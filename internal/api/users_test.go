package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/pkg/types"
)

func TestWhoAmI(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/users/whoami", ts.aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[types.WhoAmIResponse](t, rec)
	assert.Equal(t, "testuser", me.PrincipalID)
	assert.Equal(t, []string{"user"}, me.Roles)
	assert.False(t, me.IsAdmin)

	rec = ts.do(t, http.MethodGet, "/users/whoami", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me = decode[types.WhoAmIResponse](t, rec)
	assert.Equal(t, "admin", me.PrincipalID)
	assert.True(t, me.IsAdmin)

	rec = ts.do(t, http.MethodGet, "/users/whoami", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/users", ts.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/users", ts.aliceToken, types.CreateOrUpdateUserRequest{Username: "mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/users", ts.adminToken, types.CreateOrUpdateUserRequest{Username: "carol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.CreateOrUpdateUserResponse](t, rec)
	assert.Equal(t, "carol", created.Username)
	assert.Equal(t, "user", created.Role)
	assert.NotEmpty(t, created.AccessToken)

	// the new token works right away
	rec = ts.do(t, http.MethodGet, "/users/whoami", created.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", decode[types.WhoAmIResponse](t, rec).PrincipalID)

	rec = ts.do(t, http.MethodPost, "/users", ts.adminToken, types.CreateOrUpdateUserRequest{Username: "carol"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/users", ts.adminToken, types.CreateOrUpdateUserRequest{Username: "dave", Role: "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/users", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]types.User](t, rec)
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	assert.Equal(t, []string{"bob", "carol", "testuser"}, names)

	rec = ts.do(t, http.MethodPut, "/users/carol", ts.adminToken, types.CreateOrUpdateUserRequest{AccessToken: "carols-new-token"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "carols-new-token", decode[types.CreateOrUpdateUserResponse](t, rec).AccessToken)

	rec = ts.do(t, http.MethodGet, "/users/whoami", created.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPut, "/users/nobody", ts.adminToken, types.CreateOrUpdateUserRequest{AccessToken: "some-valid-token"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/users/carol", ts.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/users/carol", ts.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
