// Package gateway is the externally reachable HTTP surface: it accepts
// client queries, extracts routing hints, delegates to the resolver, and
// exposes the registry's introspection and health endpoints.
package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codebridge/internal/registry"
	"codebridge/internal/routing"
)

// Server bundles the gateway's collaborators. Construct one per process
// (or per test) and mount Engine() on an http.Server.
type Server struct {
	registry  *registry.Registry
	resolver  *routing.Resolver
	forwarder *routing.Forwarder
}

// NewServer wires a gateway over the given registry, resolver and
// forwarder. The registry is shared with the reaper; the server does not
// own its lifecycle.
func NewServer(reg *registry.Registry, res *routing.Resolver, fwd *routing.Forwarder) *Server {
	return &Server{registry: reg, resolver: res, forwarder: fwd}
}

// Engine builds the gin engine with all routes mounted.
func (s *Server) Engine() *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(), Recovery())

	router.GET("/health", s.handleHealth)
	router.GET("/health/deep", s.handleDeepHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		instances := api.Group("/instances")
		{
			instances.POST("/register", s.handleRegister)
			instances.POST("/heartbeat", s.handleHeartbeat)
			instances.POST("/unregister", s.handleUnregister)
			instances.GET("", s.handleListInstances)
			instances.GET("/by-path", s.handleInstanceByPath)
			instances.GET("/by-port/:port", s.handleInstanceByPort)
			instances.GET("/:pid", s.handleInstanceByPID)
		}

		// Generic passthrough: the operationType comes from the body.
		api.POST("/query", s.handleQuery(""))

		// Convenience endpoints pre-filling the operation tag. Thin
		// sugar over /query, nothing more.
		api.POST("/solution/info", s.handleQuery("solutionInfo"))
		api.POST("/diagnostics", s.handleQuery("diagnostics"))
		api.POST("/symbols/find", s.handleQuery("findSymbol"))
		api.POST("/format", s.handleQuery("formatDocument"))
	}

	return router
}

// ok writes the uniform success envelope.
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail writes the uniform failure envelope with the given status.
func fail(c *gin.Context, status int, format string, args ...any) {
	c.JSON(status, gin.H{"success": false, "error": sprintf(format, args...)})
}
