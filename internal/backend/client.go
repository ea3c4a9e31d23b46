// Package backend implements the registration client embedded in each
// analysis backend instance. It announces the instance to the gateway at
// startup, keeps the registration fresh with periodic heartbeats, and
// deregisters best-effort on shutdown.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codebridge/internal/bridge"
)

// Info is the instance's own identifying metadata: its process id, the
// port its query endpoint listens on, and the workload it currently has
// open. Solution fields may be empty when nothing is loaded yet.
type Info struct {
	ProcessID    int
	Port         int
	SolutionPath string
	SolutionName string
	Projects     []string
}

// Client keeps one backend instance registered with the gateway.
//
// Heartbeats re-send the full registration message, so the gateway
// treats each one as register-or-update — if the gateway restarted and
// lost its registry, the very next heartbeat re-creates the record
// without the client having to detect anything. Heartbeat failures are
// logged and retried on the next tick.
type Client struct {
	gatewayURL string
	interval   time.Duration

	mu   sync.Mutex
	info Info

	done    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewClient creates a client registering info against the gateway at
// gatewayURL (e.g. "http://localhost:7071"). interval <= 0 defaults to
// 60 seconds.
func NewClient(gatewayURL string, info Info, interval time.Duration) *Client {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Client{
		gatewayURL: gatewayURL,
		interval:   interval,
		info:       info,
		done:       make(chan struct{}),
	}
}

// SetSolution updates the workload metadata sent with subsequent
// heartbeats. Called when the user switches solutions within the same
// backend process.
func (c *Client) SetSolution(path, name string, projects []string) {
	c.mu.Lock()
	c.info.SolutionPath = path
	c.info.SolutionName = name
	c.info.Projects = append([]string(nil), projects...)
	c.mu.Unlock()
}

// Start registers with the gateway, retrying to ride out gateway startup
// delays, then launches the heartbeat loop. It returns an error only
// when every registration attempt failed.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("registration client is already running")
	}
	c.running = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	var lastErr error
	for i := 0; i < 10; i++ {
		if lastErr = c.register(ctx); lastErr == nil {
			slog.Info("registered with gateway",
				"gateway", c.gatewayURL,
				"processId", c.snapshot().ProcessID,
			)
			c.wg.Add(1)
			go c.loop(ctx)
			return nil
		}
		slog.Warn("gateway registration retry", "attempt", i+1, "error", lastErr)
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			i = 10
		case <-time.After(400 * time.Millisecond):
		}
	}

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return fmt.Errorf("failed to register with gateway: %w", lastErr)
}

// Stop halts the heartbeat loop and sends a best-effort unregister. Safe
// to call multiple times.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.done)
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg := bridge.UnregisterMessage{ProcessID: c.snapshot().ProcessID}
	if err := bridge.PostJSON(ctx, c.gatewayURL+"/api/instances/unregister", msg, nil); err != nil {
		slog.Warn("unregister failed (gateway may already consider us gone)", "error", err)
	}
}

func (c *Client) loop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.register(ctx); err != nil {
				slog.Warn("heartbeat failed, will retry next interval", "error", err)
			}
		}
	}
}

// register posts the full registration message; the gateway treats it as
// insert-or-update.
func (c *Client) register(ctx context.Context) error {
	info := c.snapshot()
	msg := bridge.RegistrationMessage{
		ProcessID:    info.ProcessID,
		Port:         info.Port,
		SolutionPath: info.SolutionPath,
		SolutionName: info.SolutionName,
		Projects:     info.Projects,
	}
	return bridge.PostJSON(ctx, c.gatewayURL+"/api/instances/register", msg, nil)
}

func (c *Client) snapshot() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := c.info
	info.Projects = append([]string(nil), c.info.Projects...)
	return info
}
