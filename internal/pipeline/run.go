// Package pipeline contains the orchestrator core: the pipeline data model,
// the run state machine, and the operations that drive a run from start to
// terminal outcome.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageSpec describes one stage of a pipeline. It is immutable once the
// run has started.
type StageSpec struct {
	// Name uniquely identifies the stage within its pipeline.
	Name    string
	Image   string
	Command []string
	Env     map[string]string
	WorkDir string
	// DependsOn lists producer stages that must be started before this one.
	DependsOn []string
}

// ArtifactSpec declares an output to extract from a stage after success.
type ArtifactSpec struct {
	// Name is the logical artifact name, e.g. "final_report.json".
	Name string
	// Stage is the stage the artifact is copied out of.
	Stage string
	// Path is the file or directory inside the stage's filesystem.
	Path string
}

// Definition is a validated pipeline definition, independent of any run.
type Definition struct {
	Name string
	// InputPath is where the input payload is written inside the first stage.
	InputPath string
	// MarkerPath is the completion marker inside the final stage.
	MarkerPath string
	// SharedMount is the mount point of the per-run shared volume.
	SharedMount  string
	Timeout      time.Duration
	PollInterval time.Duration
	Stages       []StageSpec
	Artifacts    []ArtifactSpec
}

// Run is a single invocation of a pipeline definition. Each run gets a
// unique ID; container and volume names derive from it so concurrent runs
// never collide.
type Run struct {
	ID         string
	Definition Definition
	// Input is the shared input payload, one entry per line.
	Input []string
}

// NewRun creates a Run for the definition with a fresh unique ID.
func NewRun(def Definition, input []string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		Definition: def,
		Input:      input,
	}
}

// shortID is the collision-avoidance fragment used in resource names.
func (r *Run) shortID() string {
	if len(r.ID) < 8 {
		return r.ID
	}
	return r.ID[:8]
}

// UnitName returns the unique execution-unit name for a stage of this run.
func (r *Run) UnitName(stage string) string {
	return fmt.Sprintf("convoy-%s-%s-%s", r.Definition.Name, stage, r.shortID())
}

// VolumeName returns the unique shared-volume name for this run.
func (r *Run) VolumeName() string {
	return fmt.Sprintf("convoy-%s-shared-%s", r.Definition.Name, r.shortID())
}

// FirstStage returns the first declared stage, the one input is injected into.
func (r *Run) FirstStage() StageSpec {
	return r.Definition.Stages[0]
}

// FinalStage returns the last declared stage, the one holding the marker.
func (r *Run) FinalStage() StageSpec {
	return r.Definition.Stages[len(r.Definition.Stages)-1]
}
