// Package routing resolves incoming requests to exactly one registered
// backend instance and forwards the query envelope there.
//
// # Resolution precedence
//
// Explicit beats inferred; cheap beats expensive:
//
//	1. explicit port        caller override, no registry lookup
//	2. solution-name match  case-insensitive registry scan
//	3. file-path ancestry   outward directory walk over marker files
//	4. first available      any live instance (single-backend case)
//	5. none                 registry empty → "no backend available"
//
// A name hint that matches nothing falls through to path resolution
// instead of failing, and a marker file with no registered instance
// does not stop the ancestry walk — both deliberate, both tested.
//
// # Forwarding
//
// Resolved queries are POSTed to the instance's query endpoint with a
// bounded timeout. Transport failures, timeouts, non-2xx statuses and
// malformed bodies are converted into failure envelopes; the resolver
// and forwarder never throw expected conditions across their boundary.
package routing
