package types

// UserRole represents the role of a user account in the tool registry.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User represents an account that can authenticate against the registry.
// A regular user can register tools and manage the ones it owns.
// An admin can manage every tool and every account.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateOrUpdateUserRequest struct {
	Username    string `json:"username"`
	Role        string `json:"role,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

type CreateOrUpdateUserResponse struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
}

// WhoAmIResponse describes the principal the server resolved for the caller's credentials.
type WhoAmIResponse struct {
	PrincipalID string   `json:"principal_id"`
	Roles       []string `json:"roles"`
	IsAdmin     bool     `json:"is_admin"`
}
