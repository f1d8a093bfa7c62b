package app

import (
	"errors"
	"fmt"
	"time"
)

// Command names accepted by the CLI.
const (
	CommandRun         = "run"
	CommandRunPipeline = "run-pipeline"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	EnvFile         string

	// Single-stage run.
	Image      string
	Query      string
	InputFile  string
	MaxResults int
	OutputDir  string

	// Pipeline run.
	PipelinePath string
	PipelineName string
	Timeout      time.Duration
	PollInterval time.Duration
	UseS3        bool
	URLs         []string
}

// NewConfig validates the field combinations for the selected command.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandRun:
		if cfg.Query == "" && cfg.InputFile == "" {
			return nil, errors.New("a search query or an input file is required")
		}
		if cfg.MaxResults < 1 || cfg.MaxResults > 100 {
			return nil, fmt.Errorf("max-results must be between 1 and 100, got %d", cfg.MaxResults)
		}
		if cfg.OutputDir == "" {
			return nil, errors.New("an output directory is required")
		}
	case CommandRunPipeline:
		if cfg.PipelinePath == "" {
			return nil, errors.New("a pipeline definition path is required")
		}
		if len(cfg.URLs) == 0 {
			return nil, errors.New("at least one URL is required")
		}
		if cfg.Timeout < 0 {
			return nil, errors.New("timeout must not be negative")
		}
		if cfg.PollInterval < 0 {
			return nil, errors.New("poll-interval must not be negative")
		}
	default:
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}

	return &cfg, nil
}
