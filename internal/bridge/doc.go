// Package bridge defines the wire contract between the three parties of
// the system: external HTTP clients, the gateway, and the analysis
// backend instances the gateway routes to.
//
// # Overview
//
// Backends announce themselves with a RegistrationMessage and keep their
// registration fresh by re-sending it periodically. External clients
// submit a QueryEnvelope, the gateway forwards it to exactly one backend,
// and every response — from the backend or synthesized by the gateway on
// failure — is a ResultEnvelope.
//
//	┌────────┐  QueryEnvelope   ┌─────────┐  QueryEnvelope   ┌─────────┐
//	│ client │ ───────────────▶ │ gateway │ ───────────────▶ │ backend │
//	│        │ ◀─────────────── │         │ ◀─────────────── │         │
//	└────────┘  ResultEnvelope  └─────────┘  ResultEnvelope  └─────────┘
//	                                 ▲
//	                                 │ RegistrationMessage (startup + heartbeat)
//	                            ┌─────────┐
//	                            │ backend │
//	                            └─────────┘
//
// The package also carries the small JSON-over-HTTP helpers used by both
// the registration client and the gateway's probes, so the two sides of
// the protocol cannot drift apart.
package bridge
