package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"codebridge/internal/bridge"
	"codebridge/internal/routing"
)

// handleQuery builds the handler shared by the generic passthrough and
// the convenience endpoints. A non-empty operation overrides whatever
// the body carries; the generic endpoint passes "" and requires the body
// to name the operation.
//
// Routing hints: instancePort and solutionName query parameters, plus
// the body's filePath. Failure mapping: 400 malformed input, 503 no
// instance resolvable, 502 resolved backend unreachable, 200 with
// success=false when the backend itself reports failure.
func (s *Server) handleQuery(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env bridge.QueryEnvelope
		if err := c.ShouldBindJSON(&env); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "malformed query envelope: %v", err)
			return
		}
		if operation != "" {
			env.OperationType = operation
		}
		if env.OperationType == "" {
			fail(c, http.StatusBadRequest, "operationType required")
			return
		}

		hints := routing.Hints{
			SolutionName: c.Query("solutionName"),
			FilePath:     env.FilePath,
		}
		if raw := c.Query("instancePort"); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil || port <= 0 {
				fail(c, http.StatusBadRequest, "invalid instancePort %q", raw)
				return
			}
			hints.Port = port
		}

		port, _, found := s.resolver.ResolvePort(hints)
		if !found {
			fail(c, http.StatusServiceUnavailable, "no analysis backend available")
			return
		}

		result, err := s.forwarder.Forward(c.Request.Context(), port, env)
		if err != nil {
			c.JSON(http.StatusBadGateway, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// handleHealth reports gateway-up. GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "instances": s.registry.Len()})
}

// backendHealth is one backend's reachability as seen by the deep probe.
type backendHealth struct {
	ProcessID int    `json:"processId"`
	Port      int    `json:"port"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// handleDeepHealth additionally probes each registered backend's /ping
// with a short per-probe timeout. GET /health/deep
func (s *Server) handleDeepHealth(c *gin.Context) {
	instances := s.registry.All()
	backends := make([]backendHealth, 0, len(instances))
	anyReachable := false

	for _, inst := range instances {
		h := backendHealth{ProcessID: inst.ProcessID, Port: inst.Port}
		if err := probe(c.Request.Context(), inst.Port); err != nil {
			h.Error = err.Error()
		} else {
			h.Reachable = true
			anyReachable = true
		}
		backends = append(backends, h)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"anyReachable": anyReachable,
		"backends":     backends,
	})
}

// probe issues a fast liveness GET against a backend's /ping endpoint.
func probe(ctx context.Context, port int) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://localhost:%d/ping", port), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return nil
}
