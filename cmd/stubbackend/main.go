// Package main implements a stub analysis backend for local development
// and integration testing of the gateway. It behaves exactly like a real
// backend from the gateway's point of view — probes a free port, serves
// /ping and POST /query, registers itself and heartbeats — while
// answering every query with a canned echo instead of real analysis.
//
// Configuration:
//   - GATEWAY_ADDR: gateway base URL (required), e.g. "http://localhost:7071"
//   - BACKEND_LISTEN: listen address (default ":0", OS-assigned port)
//   - SOLUTION_PATH: optional solution file to claim as the open workload
//   - HEARTBEAT_INTERVAL: optional Go duration (default "60s")
//
// Example:
//
//	GATEWAY_ADDR=http://localhost:7071 \
//	SOLUTION_PATH=/work/shop/Shop.sln \
//	./stubbackend
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codebridge/internal/backend"
	"codebridge/internal/bridge"
	"codebridge/internal/registry"
)

// logFatal is a variable so tests can intercept fatal exits.
var logFatal = log.Fatalf

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	gatewayAddr := mustGetenv("GATEWAY_ADDR")
	listen := getenv("BACKEND_LISTEN", ":0")
	solutionPath := os.Getenv("SOLUTION_PATH")

	interval := 60 * time.Second
	if raw := os.Getenv("HEARTBEAT_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logFatal("invalid HEARTBEAT_INTERVAL %q: %v", raw, err)
		}
		interval = parsed
	}

	// Bind first so the registration message carries the real port,
	// the same port-probing a real backend performs at startup.
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		logFatal("listen %s: %v", listen, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/query", handleQuery)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("stub backend listening", "port", port, "pid", os.Getpid())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logFatal("serve: %v", err)
		}
	}()

	info := backend.Info{
		ProcessID:    os.Getpid(),
		Port:         port,
		SolutionPath: solutionPath,
		SolutionName: registry.SolutionNameFromPath(solutionPath),
	}
	client := backend.NewClient(gatewayAddr, info, interval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		logFatal("register with gateway: %v", err)
	}

	<-ctx.Done()
	client.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	slog.Info("stub backend stopped")
}

// handleQuery answers any envelope with a success result echoing the
// operation, standing in for the real analysis executor.
func handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var env bridge.QueryEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(bridge.Failure("malformed query: %v", err))
		return
	}

	echo, _ := json.Marshal(map[string]any{
		"operationType": env.OperationType,
		"filePath":      env.FilePath,
		"stub":          true,
	})
	result := bridge.ResultEnvelope{
		Success: true,
		Message: "stub backend echo",
		Data:    echo,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustGetenv(k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	logFatal("missing env %s", k)
	return ""
}
