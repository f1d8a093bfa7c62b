package pipeline

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/convoy/internal/artifact"
	"github.com/vk/convoy/internal/ctxlog"
	"github.com/vk/convoy/internal/dag"
	"github.com/vk/convoy/internal/runtime"
)

// teardownTimeout bounds how long stopping and removing a run's resources
// may take, independent of the caller's context.
const teardownTimeout = 30 * time.Second

// Orchestrator drives pipeline runs against a runtime. It holds no per-run
// state; all of that lives in the Handle.
type Orchestrator struct {
	rt runtime.Runtime
}

// New creates an Orchestrator on top of the given runtime.
func New(rt runtime.Runtime) *Orchestrator {
	return &Orchestrator{rt: rt}
}

// Handle tracks the live resources of one run between Start and Teardown.
type Handle struct {
	run    *Run
	volume string
	units  map[string]runtime.Unit
	// started holds stage names in actual start order, for reverse teardown.
	started []string

	state        atomic.Int32
	teardownOnce sync.Once
}

// Run returns the run this handle belongs to.
func (h *Handle) Run() *Run { return h.run }

// unit returns the execution unit backing a stage.
func (h *Handle) unit(stage string) runtime.Unit {
	return h.units[stage]
}

// Start creates the run's shared volume and starts every stage's execution
// unit in dependency order, producers first. If any unit fails to start, the
// already-started units and the volume are torn down before a *StartupError
// is returned.
func (o *Orchestrator) Start(ctx context.Context, run *Run) (*Handle, error) {
	logger := ctxlog.FromContext(ctx)

	if len(run.Definition.Stages) == 0 {
		return nil, fmt.Errorf("pipeline: run has no stages")
	}

	order, err := stageOrder(run.Definition.Stages)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	h := &Handle{
		run:    run,
		volume: run.VolumeName(),
		units:  make(map[string]runtime.Unit, len(run.Definition.Stages)),
	}

	if err := o.rt.CreateVolume(ctx, h.volume); err != nil {
		return nil, &StartupError{Stage: order[0].Name, Err: fmt.Errorf("shared volume: %w", err)}
	}
	logger.Debug("Shared volume created.", "volume", h.volume, "run_id", run.ID)

	for _, stage := range order {
		unit, err := o.rt.Start(ctx, runtime.StartSpec{
			Name:    run.UnitName(stage.Name),
			Image:   stage.Image,
			Command: stage.Command,
			Env:     stage.Env,
			WorkDir: stage.WorkDir,
			Mounts: []runtime.Mount{{
				Kind:   runtime.MountVolume,
				Source: h.volume,
				Target: run.Definition.SharedMount,
			}},
		})
		if err != nil {
			logger.Error("Stage failed to start, tearing down run.", "stage", stage.Name, "run_id", run.ID, "error", err)
			if terr := o.Teardown(ctx, h); terr != nil {
				logger.Warn("Teardown after failed start reported errors.", "error", terr)
			}
			return nil, &StartupError{Stage: stage.Name, Err: err}
		}
		h.units[stage.Name] = unit
		h.started = append(h.started, stage.Name)
		logger.Info("Stage started.", "stage", stage.Name, "unit", unit.Name())
	}

	h.advance(StateStarted, StateCreated)
	return h, nil
}

// InjectInput writes the run's payload, one entry per line, into the first
// stage's declared input mount.
func (o *Orchestrator) InjectInput(ctx context.Context, h *Handle) error {
	def := h.run.Definition
	payload := strings.Join(h.run.Input, "\n") + "\n"

	first := h.unit(h.run.FirstStage().Name)
	if err := first.CopyIn(ctx, def.InputPath, []byte(payload)); err != nil {
		return &InjectionError{Path: def.InputPath, Err: err}
	}

	h.advance(StateInputInjected, StateStarted)
	ctxlog.FromContext(ctx).Info("Input injected.", "path", def.InputPath, "entries", len(h.run.Input))
	return nil
}

// AwaitCompletion polls the final stage for the completion marker at the
// run's poll interval until the marker appears or the timeout elapses. The
// marker check runs before the deadline check, so a marker appearing exactly
// at the deadline boundary still counts as success. On timeout, diagnostic
// logs are captured from every stage before returning.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, h *Handle) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	h.advance(StatePolling, StateStarted, StateInputInjected)

	def := h.run.Definition
	final := h.unit(h.run.FinalStage().Name)
	start := time.Now()
	deadline := start.Add(def.Timeout)

	logger.Info("Polling for completion marker.",
		"marker", def.MarkerPath, "timeout", def.Timeout, "poll_interval", def.PollInterval)

	for {
		exists, err := final.PathExists(ctx, def.MarkerPath)
		if err != nil {
			return &Result{Outcome: OutcomeFailure, Elapsed: time.Since(start)},
				fmt.Errorf("pipeline: marker check failed: %w", err)
		}
		if exists {
			h.advance(StateSucceeded, StatePolling)
			logger.Info("Completion marker detected.", "elapsed", time.Since(start))
			return &Result{Outcome: OutcomeSuccess, Elapsed: time.Since(start)}, nil
		}

		if !time.Now().Before(deadline) {
			h.advance(StateTimedOut, StatePolling)
			logger.Error("Run timed out waiting for completion marker.",
				"marker", def.MarkerPath, "timeout", def.Timeout)
			return &Result{
				Outcome: OutcomeTimeout,
				Logs:    o.captureLogs(ctx, h),
				Elapsed: time.Since(start),
			}, nil
		}

		select {
		case <-ctx.Done():
			return &Result{Outcome: OutcomeFailure, Elapsed: time.Since(start)}, ctx.Err()
		case <-time.After(def.PollInterval):
		}
	}
}

// captureLogs collects diagnostic logs from every stage of the run.
func (o *Orchestrator) captureLogs(ctx context.Context, h *Handle) map[string]string {
	logs := make(map[string]string, len(h.started))
	for _, stage := range h.started {
		text, err := h.unit(stage).Logs(ctx)
		if err != nil {
			text = fmt.Sprintf("(failed to capture logs: %v)", err)
		}
		logs[stage] = text
	}
	return logs
}

// ExtractArtifacts copies every declared artifact out of its stage into the
// store. It is only valid after a successful run. A declared artifact that
// is missing despite the success signal is an inconsistency reported as a
// *ExtractionError.
func (o *Orchestrator) ExtractArtifacts(ctx context.Context, h *Handle, store artifact.Store) (map[string]string, error) {
	if h.State() != StateSucceeded {
		return nil, fmt.Errorf("pipeline: artifacts can only be extracted after success, state is %s", h.State())
	}

	logger := ctxlog.FromContext(ctx)
	out := make(map[string]string, len(h.run.Definition.Artifacts))

	for _, a := range h.run.Definition.Artifacts {
		unit := h.unit(a.Stage)
		if unit == nil {
			return nil, &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path,
				Err: errors.New("no such stage")}
		}

		location, err := o.extractOne(ctx, unit, a, store)
		if err != nil {
			return nil, err
		}
		out[a.Name] = location
		logger.Info("Artifact extracted.", "artifact", a.Name, "location", location)
	}

	return out, nil
}

// extractOne streams one artifact (file or directory) out of a unit and
// writes each contained file to the store under the artifact's logical name.
func (o *Orchestrator) extractOne(ctx context.Context, unit runtime.Unit, a ArtifactSpec, store artifact.Store) (string, error) {
	rc, err := unit.CopyOut(ctx, a.Path)
	if err != nil {
		return "", &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path, Err: err}
	}
	defer rc.Close()

	// The archive root is the resource's base name; rewrite it to the
	// artifact's logical name so the stored layout follows the declaration.
	location := ""
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path, Err: err}
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return "", &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path, Err: err}
		}

		name := a.Name
		rest := ""
		if _, sub, ok := strings.Cut(strings.TrimPrefix(hdr.Name, "./"), "/"); ok && sub != "" {
			rest = sub
			name = a.Name + "/" + sub
		}

		loc, err := store.Put(ctx, name, data)
		if err != nil {
			return "", &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path, Err: err}
		}
		if location == "" {
			if rest != "" {
				loc = strings.TrimSuffix(loc, "/"+rest)
			}
			location = loc
		}
	}

	if location == "" {
		return "", &ExtractionError{Artifact: a.Name, Stage: a.Stage, Path: a.Path,
			Err: errors.New("artifact is empty")}
	}
	return location, nil
}

// Teardown stops and removes the run's execution units in reverse start
// order and removes the shared volume. It is idempotent: only the first call
// does any work. Teardown runs under its own deadline so it still completes
// when the caller's context is already canceled.
func (o *Orchestrator) Teardown(ctx context.Context, h *Handle) error {
	var firstErr error
	h.teardownOnce.Do(func() {
		logger := ctxlog.FromContext(ctx)
		tctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		for i := len(h.started) - 1; i >= 0; i-- {
			stage := h.started[i]
			unit := h.unit(stage)
			if err := unit.Stop(tctx); err != nil {
				logger.Warn("Failed to stop stage unit.", "stage", stage, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
			if err := unit.Remove(tctx); err != nil {
				logger.Warn("Failed to remove stage unit.", "stage", stage, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		if err := o.rt.RemoveVolume(tctx, h.volume); err != nil {
			logger.Warn("Failed to remove shared volume.", "volume", h.volume, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}

		h.state.Store(int32(StateTornDown))
		logger.Info("Run torn down.", "run_id", h.run.ID)
	})
	return firstErr
}

// Execute drives a run through its whole lifecycle: start, inject input,
// await completion, extract artifacts on success, and tear down on every
// exit path.
func (o *Orchestrator) Execute(ctx context.Context, run *Run, store artifact.Store) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	h, err := o.Start(ctx, run)
	if err != nil {
		return &Result{Outcome: OutcomeFailure}, err
	}
	defer func() {
		if terr := o.Teardown(ctx, h); terr != nil {
			logger.Warn("Teardown reported errors.", "error", terr)
		}
	}()

	if err := o.InjectInput(ctx, h); err != nil {
		return &Result{Outcome: OutcomeFailure}, err
	}

	res, err := o.AwaitCompletion(ctx, h)
	if err != nil {
		return res, err
	}

	if res.Outcome == OutcomeSuccess {
		artifacts, err := o.ExtractArtifacts(ctx, h, store)
		if err != nil {
			res.Outcome = OutcomeFailure
			return res, err
		}
		res.Artifacts = artifacts
	}

	return res, nil
}

// stageOrder computes the start order of stages: topological by depends_on,
// declaration order among independents. A stage with no explicit
// dependencies implicitly depends on the previously declared stage.
func stageOrder(stages []StageSpec) ([]StageSpec, error) {
	byName := make(map[string]StageSpec, len(stages))
	g := dag.New()
	for _, s := range stages {
		byName[s.Name] = s
		g.AddNode(s.Name)
	}

	for i, s := range stages {
		deps := s.DependsOn
		if len(deps) == 0 && i > 0 {
			deps = []string{stages[i-1].Name}
		}
		for _, dep := range deps {
			if err := g.AddEdge(dep, s.Name); err != nil {
				return nil, err
			}
		}
	}

	order, err := g.Sort()
	if err != nil {
		return nil, err
	}

	out := make([]StageSpec, len(order))
	for i, name := range order {
		out[i] = byName[name]
	}
	return out, nil
}
