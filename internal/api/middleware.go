package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/toolmeta/toolregistry/internal/auth"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/pkg/types"
	"go.uber.org/zap"
)

const principalContextKey = "principal"

// authenticate resolves the bearer token, if any, to a principal and stores it in the context.
// Requests without credentials pass through anonymously. Requests with credentials that
// can't be verified are rejected, so that a mistyped token is never silently ignored.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token := auth.BearerToken(header)
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, registry.KindUnauthenticated, "authorization header must carry a bearer token")
			return
		}

		p, err := s.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				abortWithError(c, http.StatusUnauthorized, registry.KindUnauthenticated, "invalid access token")
				return
			}
			s.logger.Error("failed to authenticate request", zap.Error(err))
			abortWithError(c, http.StatusServiceUnavailable, registry.KindStoreUnavailable, "authentication backend is unavailable")
			return
		}
		c.Set(principalContextKey, p)
		c.Next()
	}
}

// requirePrincipal rejects anonymous requests.
func (s *Server) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c) == nil {
			abortWithError(c, http.StatusUnauthorized, registry.KindUnauthenticated, "authentication is required")
			return
		}
		c.Next()
	}
}

// requireAdmin rejects principals that do not carry the registry's admin role.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principalFrom(c).HasRole(s.registry.AdminRole()) {
			abortWithError(c, http.StatusForbidden, registry.KindPermissionDenied, "only admins are allowed to access this endpoint")
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// principalFrom returns the authenticated principal of the request, or nil.
func principalFrom(c *gin.Context) *registry.Principal {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*registry.Principal)
	return p
}

func abortWithError(c *gin.Context, status int, kind registry.Kind, msg string) {
	c.AbortWithStatusJSON(status, &types.ErrorResponse{Error: msg, Kind: string(kind)})
}
