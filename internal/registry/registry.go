// Package registry implements the in-memory instance registry at the core
// of the gateway. See doc.go for complete package documentation.
package registry

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"codebridge/internal/bridge"
	"codebridge/internal/metrics"
)

// entry is the registry's internal per-instance cell. The cell itself is
// owned by the concurrent map; its fields are guarded by the cell's own
// lock, so updates to different instances never contend with each other.
type entry struct {
	mu  sync.RWMutex
	rec Instance
}

// snapshot copies the record under the entry's read lock, guaranteeing
// callers never observe a half-written record.
func (e *entry) snapshot() Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec := e.rec
	rec.Projects = append([]string(nil), e.rec.Projects...)
	return rec
}

// Registry tracks every live analysis backend instance, keyed by process
// id. It is the only shared mutable state in the gateway core.
//
// Concurrency model:
//   - The instance table is a sync.Map, so insert-or-update for one
//     process id is atomic and independent of every other id; concurrent
//     heartbeats from different backends never serialize on a common
//     lock.
//   - Each record has its own RWMutex guaranteeing per-record field
//     consistency. Snapshots (All, lookups) are consistent per record
//     but deliberately not a global point-in-time view.
//   - All reads return copies; the registry never exposes mutable
//     references to its internal state.
//
// Lifecycle of a record:
//   - Created on the first RegistrationMessage for a process id.
//   - Refreshed in place (same identity, RegisteredAt preserved) on
//     every subsequent registration or heartbeat.
//   - Destroyed by Unregister (graceful shutdown) or EvictStale (the
//     reaper noticed its heartbeats stopped).
type Registry struct {
	entries sync.Map // processID (int) -> *entry

	// now is the clock used for RegisteredAt/LastHeartbeat and staleness
	// decisions. Tests substitute a fake clock.
	now func() time.Time
}

// New creates an empty registry. Zero registered instances is a legal
// steady state; every lookup and eviction tolerates it.
func New() *Registry {
	return &Registry{now: time.Now}
}

// Register inserts a record for msg.ProcessID or, when one already
// exists, refreshes its mutable fields in place. LastHeartbeat is always
// advanced to now; RegisteredAt is set only on first insert. When the
// backend omits the solution name but supplies a path, the name is
// derived from the path.
//
// Register never fails and is idempotent under repeated identical
// messages. Two racing registrations for the same process id resolve to
// a single record with last-writer-wins field values.
func (r *Registry) Register(msg bridge.RegistrationMessage) Instance {
	now := r.now()

	name := msg.SolutionName
	if name == "" && msg.SolutionPath != "" {
		name = SolutionNameFromPath(msg.SolutionPath)
	}

	fresh := &entry{rec: Instance{
		ProcessID:     msg.ProcessID,
		Port:          msg.Port,
		SolutionPath:  msg.SolutionPath,
		SolutionName:  name,
		Projects:      append([]string(nil), msg.Projects...),
		RegisteredAt:  now,
		LastHeartbeat: now,
	}}

	v, loaded := r.entries.LoadOrStore(msg.ProcessID, fresh)
	e := v.(*entry)
	if loaded {
		r.refresh(e, msg, name, now)
	} else {
		slog.Info("instance registered",
			"processId", msg.ProcessID,
			"port", msg.Port,
			"solutionName", name,
		)
		metrics.RegistrationsTotal.Inc()
	}
	return e.snapshot()
}

// refresh updates an existing entry's mutable fields in place and
// re-stores the entry under the same lock eviction deletes under. The
// re-store closes the window where the reaper grabs the entry lock
// between our LoadOrStore and our update: if the eviction won and
// removed the key, the re-store puts the freshly-heartbeated record
// back; if the record was never removed, it is a no-op.
func (r *Registry) refresh(e *entry, msg bridge.RegistrationMessage, name string, now time.Time) {
	e.mu.Lock()
	e.rec.Port = msg.Port
	e.rec.SolutionPath = msg.SolutionPath
	e.rec.SolutionName = name
	e.rec.Projects = append([]string(nil), msg.Projects...)
	e.rec.LastHeartbeat = now
	r.entries.Store(msg.ProcessID, e)
	e.mu.Unlock()
}

// Unregister removes the record for pid and reports whether a removal
// occurred. A missing id is not an error; the backend may have already
// been reaped.
func (r *Registry) Unregister(pid int) bool {
	_, loaded := r.entries.LoadAndDelete(pid)
	if loaded {
		slog.Info("instance unregistered", "processId", pid)
		metrics.UnregistrationsTotal.Inc()
	}
	return loaded
}

// Heartbeat refreshes only LastHeartbeat for pid. It returns false when
// the id is unknown, signalling the backend to re-register with a full
// RegistrationMessage. This is the legacy lightweight path; the rich
// heartbeat is just Register called again.
func (r *Registry) Heartbeat(pid int) bool {
	v, ok := r.entries.Load(pid)
	if !ok {
		return false
	}
	e := v.(*entry)
	e.mu.Lock()
	e.rec.LastHeartbeat = r.now()
	e.mu.Unlock()
	return true
}

// All returns a snapshot copy of every registered instance, ordered by
// process id so repeated calls over an unchanged registry enumerate
// identically. Callers may hold and mutate the result freely.
func (r *Registry) All() []Instance {
	out := make([]Instance, 0, 8)
	r.entries.Range(func(_, v any) bool {
		out = append(out, v.(*entry).snapshot())
		return true
	})
	slices.SortFunc(out, func(a, b Instance) int { return a.ProcessID - b.ProcessID })
	return out
}

// ByProcessID returns the record for pid, if registered.
func (r *Registry) ByProcessID(pid int) (Instance, bool) {
	v, ok := r.entries.Load(pid)
	if !ok {
		return Instance{}, false
	}
	return v.(*entry).snapshot(), true
}

// BySolutionPath returns the instance whose solution path matches path.
// Comparison happens on the normalized form (cleaned, trailing separator
// stripped, case-folded), so equivalent spellings of the same path match.
func (r *Registry) BySolutionPath(path string) (Instance, bool) {
	want := NormalizePath(path)
	if want == "" {
		return Instance{}, false
	}
	var (
		found Instance
		ok    bool
	)
	r.entries.Range(func(_, v any) bool {
		rec := v.(*entry).snapshot()
		if rec.SolutionPath != "" && NormalizePath(rec.SolutionPath) == want {
			found, ok = rec, true
			return false
		}
		return true
	})
	return found, ok
}

// BySolutionName returns the instance whose solution name equals name,
// case-insensitively. When several instances share the name (two IDE
// windows on copies of the same solution) the most recently heartbeated
// one wins — it is the instance most likely to still be alive, and the
// tie-break stays deterministic across calls.
func (r *Registry) BySolutionName(name string) (Instance, bool) {
	if name == "" {
		return Instance{}, false
	}
	var (
		found Instance
		ok    bool
	)
	r.entries.Range(func(_, v any) bool {
		rec := v.(*entry).snapshot()
		if strings.EqualFold(rec.SolutionName, name) && rec.SolutionName != "" {
			if !ok || rec.LastHeartbeat.After(found.LastHeartbeat) {
				found, ok = rec, true
			}
		}
		return true
	})
	return found, ok
}

// ByPort returns the instance listening on port, if any.
func (r *Registry) ByPort(port int) (Instance, bool) {
	var (
		found Instance
		ok    bool
	)
	r.entries.Range(func(_, v any) bool {
		rec := v.(*entry).snapshot()
		if rec.Port == port {
			found, ok = rec, true
			return false
		}
		return true
	})
	return found, ok
}

// EvictStale removes every record whose last heartbeat is older than
// timeout and returns the number removed. Each eviction is logged for
// operators chasing backends that crashed without unregistering. An
// empty registry is a no-op.
//
// The staleness check and the delete happen under the record's own
// lock. A heartbeat or registration racing the sweep either refreshes
// LastHeartbeat before the check (record survives) or acquires the lock
// after the delete and re-stores the record with its fresh timestamp —
// a completed registration is never silently lost to the reaper.
func (r *Registry) EvictStale(timeout time.Duration) int {
	now := r.now()
	evicted := 0
	r.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		stale := now.Sub(e.rec.LastHeartbeat) > timeout
		if stale {
			r.entries.Delete(k)
			slog.Warn("evicting stale instance",
				"processId", e.rec.ProcessID,
				"port", e.rec.Port,
				"solutionName", e.rec.SolutionName,
				"lastHeartbeat", e.rec.LastHeartbeat,
			)
		}
		e.mu.Unlock()
		if stale {
			evicted++
			metrics.EvictionsTotal.Inc()
		}
		return true
	})
	return evicted
}

// Len returns the current number of registered instances.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}
