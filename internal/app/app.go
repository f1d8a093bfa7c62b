// Package app wires the application together: logging, environment,
// pipeline configuration, the container runtime, and the artifact store.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/vk/convoy/internal/runtime"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	errW   io.Writer
	logger *slog.Logger
	config *Config
	rt     runtime.Runtime

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. The runtime is
// injected so tests can substitute the in-memory implementation.
func NewApp(outW, errW io.Writer, cfg *Config, rt runtime.Runtime) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", cfg.EnvFile, err)
		}
		logger.Debug("Environment file loaded.", "path", cfg.EnvFile)
	}

	return &App{
		outW:   outW,
		errW:   errW,
		logger: logger,
		config: cfg,
		rt:     rt,
	}, nil
}
