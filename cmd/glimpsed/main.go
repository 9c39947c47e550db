// Glimpsed is a local context daemon. It periodically observes the
// active window, extracts on-screen text, detects commitments and action
// items, and cross-references promises against later activity.
//
// Configuration is loaded from ~/.config/glimpsed/config.yaml with
// environment variable overrides. A small HTTP read API is served on
// localhost.
//
// Usage:
//
//	# Start the daemon with defaults
//	glimpsed
//
//	# Use an alternate config file
//	glimpsed -config /path/to/config.yaml
//
//	# Show version information
//	glimpsed version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/glimpsed/internal/analyze"
	"github.com/fyrsmithlabs/glimpsed/internal/capture"
	"github.com/fyrsmithlabs/glimpsed/internal/config"
	"github.com/fyrsmithlabs/glimpsed/internal/followup"
	"github.com/fyrsmithlabs/glimpsed/internal/logging"
	"github.com/fyrsmithlabs/glimpsed/internal/ocr"
	"github.com/fyrsmithlabs/glimpsed/internal/pipeline"
	"github.com/fyrsmithlabs/glimpsed/internal/server"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/glimpsed/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  glimpsed           Start the glimpsed daemon\n")
			fmt.Fprintf(os.Stderr, "  glimpsed version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("glimpsed error: %v", err)
	}

	log.Println("Shutdown complete")
}

func printVersion() {
	fmt.Printf("glimpsed\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires config -> logger -> store -> analyzer -> capture -> matcher
// -> pipeline -> HTTP server and blocks until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.Enabled {
		return fmt.Errorf("glimpsed is disabled in configuration")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting glimpsed",
		zap.String("version", version),
		zap.String("config", configPath),
		zap.Duration("capture_interval", cfg.Capture.Interval),
		zap.Int("port", cfg.Server.Port))

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	analyzer, err := analyze.New(analyze.Config{
		Semantic:      cfg.Analyzer.Semantic,
		Provider:      cfg.Analyzer.Provider,
		APIKey:        cfg.Analyzer.APIKey.Value(),
		Model:         cfg.Analyzer.Model,
		BaseURL:       cfg.Analyzer.BaseURL,
		MinTextLength: cfg.Analyzer.MinTextLength,
	}, logger.Named("analyze"))
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	source, err := capture.NewSource(
		capture.NewOSAScriptResolver(),
		capture.NewScreencaptureShooter(),
		cfg.Capture.ExclusionList(),
		logger.Named("capture"),
		capture.WithTimeout(cfg.Capture.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize capture source: %w", err)
	}

	extractor := ocr.NewExtractor(ocr.DefaultRecognizers(), logger.Named("ocr"),
		ocr.WithTimeout(cfg.OCR.Timeout))

	registry := prometheus.NewRegistry()

	orch, err := pipeline.New(pipeline.Config{
		CaptureInterval: cfg.Capture.Interval,
		OCREnabled:      cfg.OCR.Enabled,
		FollowUpEnabled: cfg.FollowUp.Enabled,
	}, pipeline.Deps{
		Source:    source,
		Extractor: extractor,
		Analyzer:  analyzer,
		Store:     st,
		Registry:  registry,
	}, logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	var matcher *followup.Matcher
	if cfg.FollowUp.Enabled {
		matcher, err = followup.NewMatcher(st, orch, logger.Named("followup"),
			followup.WithScanInterval(cfg.FollowUp.ScanInterval),
			followup.WithStartupDelay(cfg.FollowUp.StartupDelay))
		if err != nil {
			return fmt.Errorf("failed to initialize follow-up matcher: %w", err)
		}
		orch.SetMatcher(matcher)
	}

	srv, err := server.NewServer(orch, registry, logger.Named("http"), &server.Config{
		Host: "localhost",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	// Config hot-reload: only the privacy exclusion list is applied at
	// runtime; other changes need a restart.
	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		orch.SetExcludedApps(updated.Capture.ExclusionList())
	}, logger.Named("config"))
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logger.Warn("failed to start config watcher", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	if matcher != nil {
		if err := matcher.Start(); err != nil {
			orch.Stop()
			return fmt.Errorf("failed to start follow-up matcher: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	orch.Stop()
	if matcher != nil {
		matcher.Stop()
	}

	return runErr
}
