package auth

import (
	"context"
	"errors"

	"github.com/toolmeta/toolregistry/internal/model"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/service/user"
	"github.com/toolmeta/toolregistry/pkg/types"
)

// UserLookup finds a registry user by access token.
type UserLookup interface {
	GetUserByAccessToken(token string) (*model.User, error)
}

// UserToken authenticates access tokens of users stored in the database.
// The username becomes the principal id. Users with the admin role carry the registry's admin role.
type UserToken struct {
	users     UserLookup
	adminRole string
}

func NewUserToken(users UserLookup, adminRole string) *UserToken {
	return &UserToken{users: users, adminRole: adminRole}
}

func (a *UserToken) Authenticate(_ context.Context, token string) (*registry.Principal, error) {
	u, err := a.users.GetUserByAccessToken(token)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return PrincipalForUser(u, a.adminRole), nil
}

// PrincipalForUser maps a stored user to the principal it acts as.
func PrincipalForUser(u *model.User, adminRole string) *registry.Principal {
	p := &registry.Principal{ID: u.Username, Roles: []string{string(u.Role)}}
	if u.Role == types.UserRoleAdmin && adminRole != string(types.UserRoleAdmin) {
		p.Roles = append(p.Roles, adminRole)
	}
	return p
}
