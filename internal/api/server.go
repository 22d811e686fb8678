// Package api provides the HTTP API of the tool registry server.
package api

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/toolmeta/toolregistry/internal/auth"
	"github.com/toolmeta/toolregistry/internal/config"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/service/user"
	"github.com/toolmeta/toolregistry/internal/telemetry"
	"github.com/toolmeta/toolregistry/pkg/types"
	"github.com/toolmeta/toolregistry/pkg/version"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// DefaultAPIPrefix is the path prefix of all registry API endpoints.
const DefaultAPIPrefix = "/api/v0"

type ServerOptions struct {
	// BindAddress and Port are the address the HTTP server listens on.
	// An empty BindAddress listens on all interfaces.
	BindAddress string
	Port        string

	// APIPrefix defaults to DefaultAPIPrefix.
	APIPrefix string

	Registry      *registry.Registry
	UserService   *user.UserService
	Authenticator auth.Authenticator

	// MCPServer, if set, is served over streamable HTTP on /mcp.
	MCPServer *server.MCPServer

	// CORS controls cross-origin access from browsers. No allowed origins means no CORS headers.
	CORS config.CORSConfig

	OtelProviders *telemetry.Providers
	Logger        *zap.Logger
}

// Server is the tool registry HTTP server.
type Server struct {
	addr      string
	apiPrefix string
	router    *gin.Engine

	registry      *registry.Registry
	userService   *user.UserService
	authenticator auth.Authenticator
	mcpServer     *server.MCPServer
	cors          gin.HandlerFunc

	otelProviders *telemetry.Providers
	logger        *zap.Logger
}

// NewServer initializes a new Gin server for the tool registry
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("server requires a registry")
	}
	s := &Server{
		addr:          net.JoinHostPort(opts.BindAddress, opts.Port),
		apiPrefix:     opts.APIPrefix,
		registry:      opts.Registry,
		userService:   opts.UserService,
		authenticator: opts.Authenticator,
		mcpServer:     opts.MCPServer,
		otelProviders: opts.OtelProviders,
		logger:        opts.Logger,
	}
	if s.apiPrefix == "" {
		s.apiPrefix = DefaultAPIPrefix
	}
	if s.authenticator == nil {
		s.authenticator = auth.Chain{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if len(opts.CORS.AllowOrigins) > 0 {
		h, err := newCORSMiddleware(opts.CORS)
		if err != nil {
			return nil, err
		}
		s.cors = h
	}

	s.router = s.setupRouter()
	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the Gin server (blocking call)
func (s *Server) Start() error {
	s.logger.Info("starting tool registry server", zap.String("address", s.addr), zap.String("api_prefix", s.apiPrefix))
	if err := s.router.Run(s.addr); err != nil {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

// setupRouter sets up the Gin router with the MCP server and API endpoints.
func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// format tokens such as "text/csv" arrive with the slash escaped, so match on the raw path
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), s.requestLogger())
	if s.cors != nil {
		r.Use(s.cors)
	}

	// if otel is enabled, setup prometheus metrics endpoint
	if s.otelProviders != nil && s.otelProviders.IsEnabled() {
		// instrument gin
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))

		// expose prometheus metrics endpoint
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET(
		"/health",
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	)

	r.GET(
		"/metadata",
		func(c *gin.Context) {
			m := &types.ServerMetadata{
				Version:             version.GetVersion(),
				FormatNormalization: s.registry.FormatNormalization(),
				AdminRole:           s.registry.AdminRole(),
			}
			c.JSON(http.StatusOK, m)
		},
	)

	// the MCP surface is read-only, so it is public like the read endpoints of the API
	if s.mcpServer != nil {
		streamableHTTPServer := server.NewStreamableHTTPServer(s.mcpServer)
		r.Any("/mcp", gin.WrapH(streamableHTTPServer))
	}

	api := r.Group(s.apiPrefix, s.authenticate())

	// public read endpoints
	{
		api.GET("/tools", s.listToolsHandler())
		api.GET("/tools/:id", s.getToolHandler())
		api.GET("/formats/:format/tools", s.resolveFormatHandler())
	}

	// endpoints accessible by any authenticated principal
	authenticated := api.Group("/", s.requirePrincipal())
	{
		authenticated.POST("/tools", s.registerToolHandler())
		authenticated.PUT("/tools/:id", s.updateToolHandler())
		authenticated.DELETE("/tools/:id", s.removeToolHandler())

		authenticated.GET("/users/whoami", s.whoAmIHandler())
	}

	// endpoints only accessible by principals carrying the admin role
	adminAPI := api.Group("/", s.requirePrincipal(), s.requireAdmin())
	{
		adminAPI.GET("/index/verify", s.verifyIndexHandler())

		if s.userService != nil {
			adminAPI.POST("/users", s.createUserHandler())
			adminAPI.GET("/users", s.listUsersHandler())
			adminAPI.PUT("/users/:username", s.updateUserHandler())
			adminAPI.DELETE("/users/:username", s.deleteUserHandler())
		}
	}

	return r
}

// newCORSMiddleware builds the CORS handler. A "*" origin allows every origin.
// With credentials allowed the request origin is echoed instead of a wildcard.
func newCORSMiddleware(c config.CORSConfig) (gin.HandlerFunc, error) {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Accept", "Authorization", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders:    []string{"Mcp-Session-Id"},
		AllowCredentials: c.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case slices.Contains(c.AllowOrigins, "*") && c.AllowCredentials:
		cc.AllowOriginFunc = func(string) bool { return true }
	case slices.Contains(c.AllowOrigins, "*"):
		cc.AllowAllOrigins = true
	default:
		cc.AllowOrigins = c.AllowOrigins
	}
	if err := cc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid CORS configuration: %w", err)
	}
	return cors.New(cc), nil
}
