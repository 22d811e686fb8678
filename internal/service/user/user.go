// Package user manages the accounts that can authenticate against the tool registry with an access token.
package user

import (
	"errors"
	"fmt"

	"github.com/toolmeta/toolregistry/internal/model"
	"github.com/toolmeta/toolregistry/pkg/types"
	"gorm.io/gorm"
)

// AdminUsername is the name of the bootstrap admin account.
const AdminUsername = "admin"

// ErrUserNotFound is returned when no user matches a username or access token.
var ErrUserNotFound = errors.New("user not found")

// UserService provides methods to manage registry users.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateAdminUser creates the bootstrap admin account with a freshly generated access token.
func (u *UserService) CreateAdminUser() (*model.User, error) {
	token, err := newAccessToken()
	if err != nil {
		return nil, err
	}
	user := model.User{
		Username:    AdminUsername,
		Role:        types.UserRoleAdmin,
		AccessToken: token,
	}
	if err := u.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}
	return &user, nil
}

// CountUsers returns the number of registered users.
func (u *UserService) CountUsers() (int64, error) {
	var count int64
	if err := u.db.Model(&model.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// GetUserByAccessToken returns a user associated with the provided access token.
// If no user is found, ErrUserNotFound is returned.
func (u *UserService) GetUserByAccessToken(token string) (*model.User, error) {
	var user model.User
	if err := u.db.Where("access_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user with the specified username.
// The role defaults to "user". An access token is generated unless the input carries one.
// The username becomes the owner id of every tool the user registers.
func (u *UserService) CreateUser(input *model.User) (*model.User, error) {
	role := input.Role
	if role == "" {
		role = types.UserRoleUser
	}
	if role != types.UserRoleUser && role != types.UserRoleAdmin {
		return nil, fmt.Errorf("invalid role %q, must be '%s' or '%s'", role, types.UserRoleUser, types.UserRoleAdmin)
	}
	if err := validateUsername(input.Username); err != nil {
		return nil, err
	}

	user := model.User{
		Username: input.Username,
		Role:     role,
	}
	if input.AccessToken == "" {
		// no custom access token provided, generate a new one
		token, err := newAccessToken()
		if err != nil {
			return nil, err
		}
		user.AccessToken = token
	} else {
		if err := validateAccessToken(input.AccessToken); err != nil {
			return nil, err
		}
		user.AccessToken = input.AccessToken
	}
	if err := u.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// UpdateUser updates an existing user's information based on the provided input.
// Currently it only supports updating the user's access token.
func (u *UserService) UpdateUser(input *model.User) (*model.User, error) {
	var user model.User
	err := u.db.Where("username = ?", input.Username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with username %s: %w", input.Username, ErrUserNotFound)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if input.AccessToken == "" {
		return nil, fmt.Errorf("%w: must not be empty", ErrInvalidAccessToken)
	}
	if err := validateAccessToken(input.AccessToken); err != nil {
		return nil, err
	}
	user.AccessToken = input.AccessToken

	err = u.db.Save(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// ListUsers retrieves all users, ordered by username.
func (u *UserService) ListUsers() ([]model.User, error) {
	var users []model.User
	if err := u.db.Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes a user with the specified username.
// Admin users can't be deleted. Tools owned by the user are left untouched.
func (u *UserService) DeleteUser(username string) error {
	var user model.User
	err := u.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user with username %s: %w", username, ErrUserNotFound)
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if user.Role == types.UserRoleAdmin {
		return fmt.Errorf("cannot delete an admin user")
	}

	err = u.db.Unscoped().Where("username = ?", username).Delete(&model.User{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
