// Package registry implements the gateway's view of the world: which
// analysis backend instances exist, where they listen, what workload
// each one has open, and how recently each proved it was alive.
//
// # Overview
//
// Every IDE instance hosts one analysis backend, and every backend
// announces itself to the gateway when it starts. The registry is the
// in-memory table those announcements land in, the source every routing
// decision reads from, and the thing the reaper prunes when heartbeats
// stop. It is deliberately ephemeral: a gateway restart empties it, and
// the backends' periodic register-or-update heartbeats repopulate it
// within one heartbeat interval.
//
// # Architecture
//
//	┌──────────────────────────────────────────┐
//	│                Registry                   │
//	├──────────────────────────────────────────┤
//	│  sync.Map: processId → entry              │
//	│                                           │
//	│  entry                                    │
//	│    mu   RWMutex (per-record consistency)  │
//	│    rec  Instance (pid, port, solution,    │
//	│         projects, timestamps)             │
//	├──────────────────────────────────────────┤
//	│  Register / Unregister / Heartbeat        │
//	│  All / ByProcessID / BySolutionPath /     │
//	│  BySolutionName / ByPort                  │
//	│  EvictStale ◀── Reaper (every interval)   │
//	└──────────────────────────────────────────┘
//
// # Concurrency Model
//
// Insert-or-update is atomic per process id via the concurrent map, so
// unrelated backends' heartbeats never contend. Each record carries its
// own lock: readers get internally consistent copies of single records,
// not a global snapshot. All accessors return copies — external code can
// never corrupt registry state or observe a record mid-mutation.
//
// # Staleness
//
// LastHeartbeat is the only liveness signal. The Reaper wakes on a fixed
// interval and evicts every record whose heartbeat is older than the
// configured timeout. Eviction is purely internal cleanup; backends that
// were wrongly evicted (or outlived a gateway restart) re-appear on
// their next heartbeat because heartbeats are full registrations.
package registry
