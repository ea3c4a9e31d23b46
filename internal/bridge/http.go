package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// httpClient is shared by the control-plane helpers below. Control
// operations (register, heartbeat, unregister, liveness probes) are
// small and should fail fast; query forwarding uses its own client with
// a longer deadline.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// PostJSON marshals body, POSTs it to url and, when out is non-nil,
// decodes the JSON response into it. Any status >= 300 is an error.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(url, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON issues a GET to url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(url, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError builds the error for a non-2xx response. Gateway and
// backend failure responses carry the uniform result envelope, so its
// error field is surfaced when present instead of a bare status code.
func statusError(url string, resp *http.Response) error {
	var env ResultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != "" {
		return fmt.Errorf("http %s: %d: %s", url, resp.StatusCode, env.Error)
	}
	return fmt.Errorf("http %s: %d", url, resp.StatusCode)
}
