package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codebridge/internal/bridge"
	"codebridge/internal/metrics"
)

// Forwarder delivers query envelopes to a resolved backend instance and
// shields callers from everything that can go wrong on the way: an
// unreachable port, a timeout, a non-2xx status or a garbled response
// all come back as an error plus a descriptive failure envelope, never
// as a panic or an unhandled fault.
//
// Forwards are not retried here; retries, if wanted, belong to the
// external caller who knows whether the operation is idempotent.
type Forwarder struct {
	client    *http.Client
	queryPath string
}

// NewForwarder creates a forwarder POSTing to queryPath (default
// "/query") on the resolved instance, bounded by timeout (default 30s).
// Backends run on the same host as the gateway, so targets are always
// localhost.
func NewForwarder(queryPath string, timeout time.Duration) *Forwarder {
	if queryPath == "" {
		queryPath = "/query"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Forwarder{
		client:    &http.Client{Timeout: timeout},
		queryPath: queryPath,
	}
}

// Forward POSTs env to the backend on port and returns its result
// envelope. A non-nil error marks a transport-layer failure (the
// returned envelope then carries the human-readable error string);
// a backend-reported failure arrives as a nil error with
// Success=false, passed through untouched.
//
// Cancellation of ctx — typically the inbound request's context —
// aborts the forward, so an abandoned client connection does not keep
// the gateway waiting on a backend.
func (f *Forwarder) Forward(ctx context.Context, port int, env bridge.QueryEnvelope) (bridge.ResultEnvelope, error) {
	start := time.Now()
	result, err := f.forward(ctx, port, env)
	metrics.ForwardDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForwardErrorsTotal.Inc()
		return bridge.Failure("%v", err), err
	}
	return result, nil
}

func (f *Forwarder) forward(ctx context.Context, port int, env bridge.QueryEnvelope) (bridge.ResultEnvelope, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return bridge.ResultEnvelope{}, fmt.Errorf("encoding query for backend on port %d: %w", port, err)
	}

	url := fmt.Sprintf("http://localhost:%d%s", port, f.queryPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return bridge.ResultEnvelope{}, fmt.Errorf("building request for backend on port %d: %w", port, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return bridge.ResultEnvelope{}, fmt.Errorf("backend on port %d unreachable: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return bridge.ResultEnvelope{}, fmt.Errorf("backend on port %d returned status %d", port, resp.StatusCode)
	}

	var result bridge.ResultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// A malformed body is a transport failure, not a parse
		// exception surfaced to the client.
		return bridge.ResultEnvelope{}, fmt.Errorf("backend on port %d returned malformed response: %w", port, err)
	}
	return result, nil
}
