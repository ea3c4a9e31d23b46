// Package routing decides which backend instance serves a request and
// forwards the request there. See doc.go for package documentation.
package routing

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"

	"codebridge/internal/metrics"
	"codebridge/internal/registry"
)

// Strategy names the rule that produced a routing decision. Exposed for
// metrics and logging only; callers route on the port, not the strategy.
type Strategy string

const (
	StrategyExplicitPort   Strategy = "explicit_port"
	StrategySolutionName   Strategy = "solution_name"
	StrategyFilePath       Strategy = "file_path"
	StrategyFirstAvailable Strategy = "first_available"
)

// Hints carries the caller-supplied routing information, all optional.
// Zero values mean "not supplied".
type Hints struct {
	// Port routes to that port unconditionally when > 0.
	Port int

	// SolutionName matches a registered instance's solution name,
	// case-insensitively.
	SolutionName string

	// FilePath is a file believed to belong to some registered
	// solution; its ancestor directories are searched for solution
	// marker files.
	FilePath string
}

// Resolver turns routing hints into the port of exactly one registered
// instance. It holds no state of its own beyond configuration; every
// decision reads a fresh registry snapshot.
type Resolver struct {
	registry *registry.Registry

	// markerExts are the file extensions identifying a workload
	// definition file during the ancestry walk, e.g. ".sln".
	markerExts []string

	// readDir enumerates a directory during the ancestry walk.
	// Overridable so tests resolve against a fake filesystem.
	readDir func(string) ([]os.DirEntry, error)
}

// NewResolver creates a resolver over reg. markerExts defaults to
// {".sln"} when empty.
func NewResolver(reg *registry.Registry, markerExts []string) *Resolver {
	if len(markerExts) == 0 {
		markerExts = []string{".sln"}
	}
	return &Resolver{
		registry:   reg,
		markerExts: markerExts,
		readDir:    os.ReadDir,
	}
}

// SetReadDir overrides directory enumeration for the ancestry walk.
// Intended for tests.
func (r *Resolver) SetReadDir(fn func(string) ([]os.DirEntry, error)) {
	r.readDir = fn
}

// ResolvePort picks the single instance that should serve a request, in
// strict precedence order, first match wins:
//
//  1. Explicit port: used unconditionally, without consulting the
//     registry — the caller knows best.
//  2. Solution-name match: case-insensitive scan of the registry. An
//     unmatched name logs a warning and falls through rather than
//     failing, so a best-guess name still benefits from path-based
//     resolution.
//  3. File-path ancestry: walk the path's ancestor directories outward
//     toward the root; at each level, any marker file found is looked up
//     by path in the registry. A marker with no registered instance does
//     not stop the walk — a project file nested inside a registered
//     solution's tree must resolve to the solution.
//  4. First available: any registered instance, so single-backend
//     deployments work without hints. Ties break toward the most
//     recently heartbeated instance.
//
// The second return is false only when the registry is empty and no
// explicit port was given; callers translate that into "no backend
// available", never a silent no-op.
func (r *Resolver) ResolvePort(hints Hints) (int, Strategy, bool) {
	if hints.Port > 0 {
		metrics.ResolutionsTotal.WithLabelValues(string(StrategyExplicitPort)).Inc()
		return hints.Port, StrategyExplicitPort, true
	}

	if hints.SolutionName != "" {
		if inst, ok := r.registry.BySolutionName(hints.SolutionName); ok {
			metrics.ResolutionsTotal.WithLabelValues(string(StrategySolutionName)).Inc()
			return inst.Port, StrategySolutionName, true
		}
		slog.Warn("solution name hint matched no registered instance",
			"solutionName", hints.SolutionName,
		)
	}

	if hints.FilePath != "" {
		if inst, ok := r.resolveByAncestry(hints.FilePath); ok {
			metrics.ResolutionsTotal.WithLabelValues(string(StrategyFilePath)).Inc()
			return inst.Port, StrategyFilePath, true
		}
	}

	if inst, ok := r.firstAvailable(); ok {
		metrics.ResolutionsTotal.WithLabelValues(string(StrategyFirstAvailable)).Inc()
		return inst.Port, StrategyFirstAvailable, true
	}

	metrics.ResolutionFailuresTotal.Inc()
	return 0, "", false
}

// resolveByAncestry walks from the file's containing directory toward
// the filesystem root. At each level it checks every marker file in the
// directory against the registry and stops at the first level yielding a
// registry hit. Unreadable directories are skipped, not fatal.
func (r *Resolver) resolveByAncestry(filePath string) (registry.Instance, bool) {
	dir := filepath.Dir(filepath.Clean(filepath.FromSlash(filePath)))
	for {
		entries, err := r.readDir(dir)
		if err == nil {
			for _, ent := range entries {
				if ent.IsDir() || !r.isMarker(ent.Name()) {
					continue
				}
				markerPath := filepath.Join(dir, ent.Name())
				if inst, ok := r.registry.BySolutionPath(markerPath); ok {
					return inst, true
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return registry.Instance{}, false
		}
		dir = parent
	}
}

// isMarker reports whether name carries one of the workload marker
// extensions, case-insensitively.
func (r *Resolver) isMarker(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range r.markerExts {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// firstAvailable returns the most recently heartbeated instance, if any.
func (r *Resolver) firstAvailable() (registry.Instance, bool) {
	all := r.registry.All()
	if len(all) == 0 {
		return registry.Instance{}, false
	}
	inst := slices.MaxFunc(all, func(a, b registry.Instance) int {
		return a.LastHeartbeat.Compare(b.LastHeartbeat)
	})
	return inst, true
}
