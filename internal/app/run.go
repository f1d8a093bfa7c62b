package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vk/convoy/internal/artifact"
	"github.com/vk/convoy/internal/config"
	"github.com/vk/convoy/internal/ctxlog"
	"github.com/vk/convoy/internal/pipeline"
	"github.com/vk/convoy/internal/runtime"
)

// In-container paths for the single-stage runner.
const (
	singleInputPath  = "/app/input/urls.txt"
	singleOutputPath = "/app/output"
)

// Run executes the selected command and blocks until it finishes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	a.startHealthcheckServer()
	defer a.closeHealthcheckServer()

	switch a.config.Command {
	case CommandRun:
		return a.runSingle(ctx)
	case CommandRunPipeline:
		return a.runPipeline(ctx)
	default:
		return fmt.Errorf("unknown command %q", a.config.Command)
	}
}

// runSingle runs one container to completion with the query or input file
// mounted in and the output directory mounted read-write.
func (a *App) runSingle(ctx context.Context) error {
	outDir, err := filepath.Abs(a.config.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	spec := runtime.StartSpec{
		Name:  fmt.Sprintf("convoy-run-%s", uuid.NewString()[:8]),
		Image: a.config.Image,
		Mounts: []runtime.Mount{
			{Kind: runtime.MountBind, Source: outDir, Target: singleOutputPath},
		},
	}

	if a.config.InputFile != "" {
		inFile, err := filepath.Abs(a.config.InputFile)
		if err != nil {
			return fmt.Errorf("failed to resolve input file: %w", err)
		}
		spec.Mounts = append(spec.Mounts, runtime.Mount{
			Kind:     runtime.MountBind,
			Source:   inFile,
			Target:   singleInputPath,
			ReadOnly: true,
		})
		spec.Command = []string{singleInputPath, strconv.Itoa(a.config.MaxResults)}
	} else {
		spec.Command = []string{a.config.Query, strconv.Itoa(a.config.MaxResults)}
	}

	a.logger.Info("Starting unit.", "name", spec.Name, "image", spec.Image)
	unit, err := a.rt.Start(ctx, spec)
	if err != nil {
		return fmt.Errorf("failed to start unit: %w", err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := unit.Remove(rmCtx); err != nil {
			a.logger.Warn("Failed to remove unit.", "name", spec.Name, "error", err)
		}
	}()

	code, err := unit.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for unit: %w", err)
	}
	if code != 0 {
		logs, logErr := unit.Logs(ctx)
		if logErr == nil && logs != "" {
			fmt.Fprint(a.errW, logs)
		}
		return fmt.Errorf("unit exited with code %d", code)
	}

	a.logger.Info("Unit finished.", "name", spec.Name, "output_dir", outDir)
	return nil
}

// runPipeline loads a pipeline definition, executes a fresh run, and routes
// artifacts into the configured store.
func (a *App) runPipeline(ctx context.Context) error {
	model, err := config.Load(ctx, a.config.PipelinePath)
	if err != nil {
		return err
	}

	var def pipeline.Definition
	if a.config.PipelineName != "" {
		def, err = model.Pipeline(a.config.PipelineName)
	} else {
		def, err = model.Default()
	}
	if err != nil {
		return err
	}

	if a.config.Timeout > 0 {
		def.Timeout = a.config.Timeout
	}
	if a.config.PollInterval > 0 {
		def.PollInterval = a.config.PollInterval
	}

	store, err := a.newStore()
	if err != nil {
		return err
	}

	run := pipeline.NewRun(def, a.config.URLs)
	a.logger.Info("Starting pipeline run.",
		"pipeline", def.Name, "run_id", run.ID, "urls", len(a.config.URLs))

	orch := pipeline.New(a.rt)
	result, err := orch.Execute(ctx, run, store)
	if err != nil {
		return err
	}

	switch result.Outcome {
	case pipeline.OutcomeSuccess:
		a.logger.Info("Pipeline run succeeded.",
			"pipeline", def.Name, "run_id", run.ID, "elapsed", result.Elapsed)
		for name, location := range result.Artifacts {
			a.logger.Info("Artifact extracted.", "name", name, "location", location)
		}
		return nil
	case pipeline.OutcomeTimeout:
		a.dumpStageLogs(result.Logs)
		return fmt.Errorf("pipeline %q timed out after %s", def.Name, def.Timeout)
	default:
		return fmt.Errorf("pipeline %q failed", def.Name)
	}
}

// newStore builds the artifact destination for a pipeline run.
func (a *App) newStore() (artifact.Store, error) {
	if !a.config.UseS3 {
		return artifact.NewDir(a.config.OutputDir), nil
	}
	cfg, err := artifact.S3ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return artifact.NewS3(cfg)
}

// dumpStageLogs writes every stage's captured logs to stderr, one prefixed
// line at a time, so a timed-out run can be diagnosed from the terminal.
func (a *App) dumpStageLogs(logs map[string]string) {
	names := make([]string, 0, len(logs))
	for name := range logs {
		names = append(names, name)
	}
	// Map iteration order is random; keep the dump deterministic.
	sort.Strings(names)

	for _, name := range names {
		for _, line := range strings.Split(strings.TrimRight(logs[name], "\n"), "\n") {
			fmt.Fprintf(a.errW, "[%s] %s\n", name, line)
		}
	}
}
