package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/rxnorm-search-api/config"
	"github.com/giygas/rxnorm-search-api/data"
	"github.com/giygas/rxnorm-search-api/handlers"
	"github.com/giygas/rxnorm-search-api/health"
	"github.com/giygas/rxnorm-search-api/logging"
	"github.com/giygas/rxnorm-search-api/rxnav"
	"github.com/giygas/rxnorm-search-api/scheduler"
	"github.com/giygas/rxnorm-search-api/search"
	"github.com/giygas/rxnorm-search-api/server"
	"github.com/giygas/rxnorm-search-api/validation"
)

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions(logging.Options{
		LogDir:         cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() { _ = logging.Close() }()

	logging.Info("Configuration loaded",
		"env", cfg.Env,
		"rxnav", cfg.RxNavBaseURL,
		"cache_ttl", cfg.CacheTTL.String(),
		"include_suppressed", cfg.IncludeSuppressed)

	// The search fan-out sends several requests to RxNav at once
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.RxNavRatePerSecond

	client, err := rxnav.NewClient(cfg.RxNavBaseURL,
		rxnav.WithHTTPClient(&http.Client{Transport: transport}),
		rxnav.WithTimeout(cfg.RxNavTimeout),
		rxnav.WithMaxRetries(cfg.RxNavMaxRetries),
		rxnav.WithRateLimit(cfg.RxNavRatePerSecond),
		rxnav.WithUserAgent(cfg.RxNavUserAgent),
	)
	if err != nil {
		logging.Error("Failed to create RxNav client", "error", err)
		os.Exit(1)
	}

	searcher := search.NewService(client, search.Options{
		IncludeSuppressed: cfg.IncludeSuppressed,
		CacheTTL:          cfg.CacheTTL,
		CacheCapacity:     cfg.CacheCapacity,
	})

	container := data.NewDataContainer()
	container.SetServerStartTime(time.Now())

	healthChecker := health.NewHealthChecker(container, searcher, cfg.ProbeInterval)
	validator := validation.NewInputValidator()
	httpHandler := handlers.NewHTTPHandler(searcher, validator, healthChecker)

	sched := scheduler.NewScheduler(container, client, searcher, scheduler.Options{
		ProbeInterval: cfg.ProbeInterval,
		SweepInterval: cfg.CacheSweepInterval,
	})
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, httpHandler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed", "error", err)
		}
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}

// loadEnv reads .env from the working directory, then from the executable's directory
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to get executable path:", err)
		return
	}

	exPath := filepath.Dir(ex)
	if err := godotenv.Load(filepath.Join(exPath, ".env")); err != nil {
		// Running on environment variables only
		return
	}

	if err := os.Chdir(exPath); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to change directory:", err)
	}
}
