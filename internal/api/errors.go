package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/pkg/types"
	"go.uber.org/zap"
)

// statusForKind maps a registry error kind to its HTTP status code.
func statusForKind(kind registry.Kind) int {
	switch kind {
	case registry.KindValidation:
		return http.StatusBadRequest
	case registry.KindUnauthenticated:
		return http.StatusUnauthorized
	case registry.KindPermissionDenied:
		return http.StatusForbidden
	case registry.KindNotFound:
		return http.StatusNotFound
	case registry.KindConflict:
		return http.StatusConflict
	case registry.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response for a failed registry operation.
func (s *Server) respondError(c *gin.Context, err error) {
	var rerr *registry.Error
	if !errors.As(err, &rerr) {
		s.logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, &types.ErrorResponse{Error: "internal server error"})
		return
	}

	status := statusForKind(rerr.Kind)
	resp := &types.ErrorResponse{
		Error:     rerr.Error(),
		Kind:      string(rerr.Kind),
		Field:     rerr.Field,
		Retryable: rerr.Kind.Retryable(),
	}
	if rerr.Kind == registry.KindStoreUnavailable {
		// the cause may expose backend details
		s.logger.Error("store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		resp.Error = "tool store is unavailable"
		if rerr.Op != "" {
			resp.Error = rerr.Op + ": " + resp.Error
		}
	}
	c.JSON(status, resp)
}
