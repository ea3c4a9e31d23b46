// Package main implements the codebridge gateway: the stable endpoint
// that multiplexes external HTTP clients across however many analysis
// backend instances are currently running.
//
// Startup wires the shared pieces in dependency order — config, the
// instance registry, the staleness reaper, the resolver/forwarder pair,
// and the HTTP surface — then runs the server and the reaper until a
// shutdown signal arrives.
//
// Configuration comes from an optional YAML file (--config) overlaid
// with CODEBRIDGE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"codebridge/internal/config"
	"codebridge/internal/gateway"
	"codebridge/internal/registry"
	"codebridge/internal/routing"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "HTTP gateway routing analysis queries to live backend instances",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "codebridge.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func serve(cfg config.Config) error {
	reg := registry.New()
	reaper := registry.NewReaper(reg, cfg.ReapInterval.Std(), cfg.StaleTimeout.Std())
	resolver := routing.NewResolver(reg, cfg.MarkerExtensions)
	forwarder := routing.NewForwarder(cfg.QueryPath, cfg.ForwardTimeout.Std())
	server := gateway.NewServer(reg, resolver, forwarder)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reaper.Start(ctx); err != nil {
		return err
	}
	defer reaper.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("gateway listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	slog.Info("gateway stopped")
	return err
}
