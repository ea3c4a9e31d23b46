package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"codebridge/internal/bridge"
)

// handleRegister accepts a registration message from a backend instance.
// The same endpoint doubles as the rich heartbeat: an existing record is
// refreshed in place. POST /api/instances/register
func (s *Server) handleRegister(c *gin.Context) {
	var msg bridge.RegistrationMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		fail(c, http.StatusBadRequest, "malformed registration: %v", err)
		return
	}
	if msg.ProcessID <= 0 || msg.Port <= 0 {
		fail(c, http.StatusBadRequest, "registration requires positive processId and port")
		return
	}
	rec := s.registry.Register(msg)
	ok(c, rec)
}

// handleHeartbeat is the legacy lightweight heartbeat: it refreshes only
// the timestamp. Unknown process ids get a 404 failure envelope, which
// tells the backend to re-register. POST /api/instances/heartbeat
func (s *Server) handleHeartbeat(c *gin.Context) {
	var msg bridge.UnregisterMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		fail(c, http.StatusBadRequest, "malformed heartbeat: %v", err)
		return
	}
	if !s.registry.Heartbeat(msg.ProcessID) {
		fail(c, http.StatusNotFound, "unknown processId %d, re-register", msg.ProcessID)
		return
	}
	ok(c, nil)
}

// handleUnregister removes an instance on graceful backend shutdown.
// Removing an unknown id succeeds with removed=false — the reaper may
// have gotten there first. POST /api/instances/unregister
func (s *Server) handleUnregister(c *gin.Context) {
	var msg bridge.UnregisterMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		fail(c, http.StatusBadRequest, "malformed unregister: %v", err)
		return
	}
	removed := s.registry.Unregister(msg.ProcessID)
	ok(c, gin.H{"removed": removed})
}

// handleListInstances returns a snapshot of every registered instance.
// GET /api/instances
func (s *Server) handleListInstances(c *gin.Context) {
	ok(c, s.registry.All())
}

// handleInstanceByPID looks up one instance by process id.
// GET /api/instances/:pid
func (s *Server) handleInstanceByPID(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid processId %q", c.Param("pid"))
		return
	}
	inst, found := s.registry.ByProcessID(pid)
	if !found {
		fail(c, http.StatusNotFound, "no instance with processId %d", pid)
		return
	}
	ok(c, inst)
}

// handleInstanceByPath looks up an instance by its solution path,
// normalized and case-insensitive. GET /api/instances/by-path?solutionPath=...
func (s *Server) handleInstanceByPath(c *gin.Context) {
	path := c.Query("solutionPath")
	if path == "" {
		fail(c, http.StatusBadRequest, "solutionPath query parameter required")
		return
	}
	inst, found := s.registry.BySolutionPath(path)
	if !found {
		fail(c, http.StatusNotFound, "no instance hosting %s", path)
		return
	}
	ok(c, inst)
}

// handleInstanceByPort looks up an instance by its listening port.
// GET /api/instances/by-port/:port
func (s *Server) handleInstanceByPort(c *gin.Context) {
	port, err := strconv.Atoi(c.Param("port"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid port %q", c.Param("port"))
		return
	}
	inst, found := s.registry.ByPort(port)
	if !found {
		fail(c, http.StatusNotFound, "no instance on port %d", port)
		return
	}
	ok(c, inst)
}
