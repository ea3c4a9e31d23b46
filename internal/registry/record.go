package registry

import (
	"path/filepath"
	"strings"
	"time"
)

// Instance is one registered analysis backend. The registry hands out
// copies of this struct, never pointers into its own state, so callers
// can hold a snapshot without racing registry mutation.
//
// Field mutability over a record's lifetime:
//   - ProcessID is the record's identity and never changes.
//   - RegisteredAt is set on first registration and never changes.
//   - Port, SolutionPath, SolutionName and Projects are refreshed in
//     place on every registration message (the backend may rebind or the
//     user may open a different solution in the same process).
//   - LastHeartbeat moves forward on every registration or heartbeat and
//     is the sole input to staleness eviction.
//
// Invariant: LastHeartbeat >= RegisteredAt.
type Instance struct {
	RegisteredAt  time.Time `json:"registeredAt"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	SolutionPath  string    `json:"solutionPath,omitempty"`
	SolutionName  string    `json:"solutionName,omitempty"`
	Projects      []string  `json:"projects,omitempty"`
	ProcessID     int       `json:"processId"`
	Port          int       `json:"port"`
}

// HasSolution reports whether the instance currently has a workload
// open. An instance without one is still resolvable by port or pid.
func (i Instance) HasSolution() bool {
	return i.SolutionName != ""
}

// NormalizePath reduces a solution path to its canonical comparison
// form: cleaned of relative segments, stripped of any trailing
// separator, and case-folded. Solution files originate on
// case-insensitive filesystems, so "C:\Work\App.sln" and
// "c:/work/app.sln" must compare equal.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.Clean(filepath.FromSlash(path))
	p = strings.TrimRight(p, string(filepath.Separator))
	return strings.ToLower(p)
}

// SolutionNameFromPath derives the short human-readable workload name
// from its file path: the base name without extension.
func SolutionNameFromPath(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
