package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/pkg/types"
)

func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := s.registry.List(c.Request.Context(), registry.ListFilter{
			NameContains: c.Query("name"),
			Format:       c.Query("input_format"),
			OutputType:   c.Query("output_format"),
		})
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTypesTools(recs))
	}
}

func (s *Server) getToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.registry.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTypesTool(rec))
	}
}

func (s *Server) resolveFormatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.Param("format")
		recs, err := s.registry.Resolve(c.Request.Context(), format)
		if err != nil {
			s.respondError(c, err)
			return
		}
		// Resolve succeeded, so the format normalizes to a non-empty token
		token, _ := s.registry.NormalizeFormat(format)
		c.JSON(http.StatusOK, &types.ResolveResponse{Format: token, Tools: toTypesTools(recs)})
	}
}

func (s *Server) registerToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc registry.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			abortWithError(c, http.StatusBadRequest, registry.KindValidation, "request body must be a JSON object: "+err.Error())
			return
		}

		rec, err := s.registry.Register(c.Request.Context(), principalFrom(c), doc)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toTypesTool(rec))
	}
}

func (s *Server) updateToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc registry.Document
		if err := c.ShouldBindJSON(&doc); err != nil {
			abortWithError(c, http.StatusBadRequest, registry.KindValidation, "request body must be a JSON object: "+err.Error())
			return
		}

		rec, err := s.registry.Update(c.Request.Context(), principalFrom(c), c.Param("id"), doc)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTypesTool(rec))
	}
}

func (s *Server) removeToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.registry.Remove(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) verifyIndexHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		problems, err := s.registry.VerifyIndex(c.Request.Context())
		if err != nil {
			s.respondError(c, err)
			return
		}
		resp := &types.VerifyIndexResponse{
			Consistent:      len(problems) == 0,
			Inconsistencies: make([]*types.IndexInconsistency, len(problems)),
		}
		for i, p := range problems {
			resp.Inconsistencies[i] = &types.IndexInconsistency{ToolID: p.ToolID, Format: p.Format, Problem: p.Problem}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func toTypesTool(rec *registry.ToolRecord) *types.Tool {
	return &types.Tool{
		ToolID:             rec.ToolID,
		Name:               rec.Name,
		Version:            rec.Version,
		OwnerID:            rec.OwnerID,
		Description:        rec.Description,
		Location:           rec.Location,
		SupportedFormats:   rec.SupportedFormats,
		InvocationContract: rec.InvocationContract,
		Revision:           rec.Revision,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

func toTypesTools(recs []*registry.ToolRecord) []*types.Tool {
	tools := make([]*types.Tool, len(recs))
	for i, rec := range recs {
		tools[i] = toTypesTool(rec)
	}
	return tools
}
