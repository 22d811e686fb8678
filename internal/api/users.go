package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toolmeta/toolregistry/internal/model"
	"github.com/toolmeta/toolregistry/internal/service/user"
	"github.com/toolmeta/toolregistry/pkg/types"
)

func (s *Server) createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateOrUpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		newUser, err := s.userService.CreateUser(&model.User{
			Username:    req.Username,
			Role:        types.UserRole(req.Role),
			AccessToken: req.AccessToken,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := &types.CreateOrUpdateUserResponse{
			Username:    newUser.Username,
			Role:        string(newUser.Role),
			AccessToken: newUser.AccessToken,
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func (s *Server) listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.userService.ListUsers()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := make([]*types.User, len(users))
		for i, u := range users {
			resp[i] = &types.User{
				Username: u.Username,
				Role:     string(u.Role),
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) updateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}

		var req types.CreateOrUpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updatedUser, err := s.userService.UpdateUser(&model.User{
			Username:    username,
			AccessToken: req.AccessToken,
		})
		if err != nil {
			c.JSON(userErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		resp := &types.CreateOrUpdateUserResponse{
			Username:    updatedUser.Username,
			Role:        string(updatedUser.Role),
			AccessToken: updatedUser.AccessToken,
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) deleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.Param("username")
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}

		err := s.userService.DeleteUser(username)
		if err != nil {
			c.JSON(userErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// whoAmIHandler describes the caller as the registry sees it.
// It works for every kind of credential, not only stored users.
func (s *Server) whoAmIHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		roles := p.Roles
		if roles == nil {
			roles = []string{}
		}
		resp := types.WhoAmIResponse{
			PrincipalID: p.ID,
			Roles:       roles,
			IsAdmin:     p.HasRole(s.registry.AdminRole()),
		}
		c.JSON(http.StatusOK, resp)
	}
}

func userErrorStatus(err error) int {
	if errors.Is(err, user.ErrUserNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
