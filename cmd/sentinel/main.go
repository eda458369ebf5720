package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raaihank/mask-sentinel/internal/api"
	"github.com/raaihank/mask-sentinel/internal/config"
	"github.com/raaihank/mask-sentinel/internal/logger"
	"github.com/raaihank/mask-sentinel/internal/privacy"
	"github.com/raaihank/mask-sentinel/internal/snapshot"
	"github.com/raaihank/mask-sentinel/internal/stats"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("Mask-Sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck(cfg.Server.Port)
		return
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	api.Version = version
	log.Info("Starting Mask-Sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Create masking engine and stores
	engine, err := privacy.New(cfg.Privacy, log)
	if err != nil {
		log.Fatal("Failed to create privacy engine", zap.Error(err))
	}

	snapshots, err := snapshot.New(cfg.Snapshots, log)
	if err != nil {
		log.Fatal("Failed to create snapshot store", zap.Error(err))
	}
	defer snapshots.Close()

	recorder, err := stats.New(cfg.Stats, log)
	if err != nil {
		log.Fatal("Failed to create stats recorder", zap.Error(err))
	}
	defer recorder.Close()

	// Create API server
	server := api.New(cfg, log, engine, snapshots, recorder)

	// Pattern and broadcast settings follow the config file without a restart
	err = config.Watch(func(newCfg *config.Config) {
		if err := server.ApplyConfig(newCfg); err != nil {
			log.Error("Failed to apply reloaded configuration", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded")
	}, func(err error) {
		log.Warn("Ignoring configuration change", zap.Error(err))
	})
	if err != nil {
		log.Debug("Configuration hot reload disabled", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(port int) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
