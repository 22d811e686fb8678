package model

import (
	"github.com/toolmeta/toolregistry/pkg/types"
	"gorm.io/gorm"
)

// User is a human or machine account that can authenticate against the registry with an access token.
// Its Username is the principal id recorded as the owner of the tools it registers.
type User struct {
	gorm.Model

	Username    string         `json:"username" gorm:"uniqueIndex;not null"`
	Role        types.UserRole `json:"role" gorm:"type:varchar(20);not null"`
	AccessToken string         `json:"access_token" gorm:"uniqueIndex;not null"`
}
