// Command chainbridge runs the multi-agent settlement control plane.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BIGmindz/ChainBridge-sub000/pkg/audit"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/config"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/console"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/observability"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/registry"
	"github.com/BIGmindz/ChainBridge-sub000/pkg/store"
)

const version = "0.3.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}
	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "profile":
		return runProfileCheck(args[2:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "chainbridge %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: chainbridge [command]

Commands:
  server           Run the control-plane server (default)
  profile <path>   Validate a governance profile file
  version          Print the version
  help             Show this help
`)
}

// runProfileCheck validates a governance profile without starting the
// server.
func runProfileCheck(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: chainbridge profile <path>")
		return 2
	}
	profile, err := config.LoadProfile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "profile invalid: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "profile %q ok: %d lanes, ack deadline %s, latency threshold %dms\n",
		profile.Name, len(profile.Lanes), profile.ACKDeadline.Std(), profile.ACKLatencyThresholdMS)
	return 0
}

func runServer(stderr io.Writer) int {
	cfg := config.Load()

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	profile := config.DefaultProfile()
	if cfg.ProfilePath != "" {
		loaded, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			logger.Error("load governance profile", "path", cfg.ProfilePath, "error", err)
			return 1
		}
		profile = loaded
	}

	var (
		st  store.Store
		err error
	)
	if cfg.DatabaseURL != "" {
		pg, perr := store.OpenPostgres(cfg.DatabaseURL)
		if perr != nil {
			logger.Error("open postgres store", "error", perr)
			return 1
		}
		defer pg.Close()
		st = pg
		logger.Info("store ready", "backend", "postgres")
	} else {
		lite, serr := store.OpenSQLite(cfg.DatabasePath)
		if serr != nil {
			logger.Error("open sqlite store", "path", cfg.DatabasePath, "error", serr)
			return 1
		}
		defer lite.Close()
		st = lite
		logger.Info("store ready", "backend", "sqlite", "path", cfg.DatabasePath)
	}

	metrics, err := observability.New(nil)
	if err != nil {
		logger.Error("init metrics", "error", err)
		return 1
	}

	reg, err := registry.New(profile,
		registry.WithStore(st),
		registry.WithAudit(audit.NewLogger()),
		registry.WithMetrics(metrics),
	)
	if err != nil {
		logger.Error("init registry", "error", err)
		return 1
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           console.NewServer(reg, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control plane listening", "port", cfg.Port, "profile", profile.Name)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return 1
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
			return 1
		}
	}
	return 0
}
