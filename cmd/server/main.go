// Package main is the entry point for the comparathor API server.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (internal/config: .env + environment)
// 2. Create dependencies (logger, data directory)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// Each executable gets its own directory with its own main.go.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/comparathor/internal/config"
	"github.com/sakif/comparathor/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Load fails on a missing JWT_SECRET or any malformed value, naming the
	// offending variable. Nothing is logged yet, so report on stderr.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL and LOG_FORMAT pick the level and the text/JSON handler.
	// SetDefault routes the package-level slog functions (used by the
	// handlers' error path) through the same logger.
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.AllowAdminSignup {
		logger.Warn("ALLOW_ADMIN_SIGNUP is on: anyone can register as admin")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
