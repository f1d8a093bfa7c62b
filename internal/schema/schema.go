// Package schema defines the HCL block structures for pipeline definition
// files.
package schema

import "github.com/hashicorp/hcl/v2"

// Stage represents a `stage` block: one execution unit of the pipeline.
type Stage struct {
	Name      string            `hcl:"name,label"`
	Image     string            `hcl:"image"`
	Command   []string          `hcl:"command,optional"`
	Env       map[string]string `hcl:"env,optional"`
	WorkDir   string            `hcl:"work_dir,optional"`
	DependsOn []string          `hcl:"depends_on,optional"`
}

// Artifact represents an `artifact` block: an output to copy out of a stage
// after a successful run.
type Artifact struct {
	Name  string `hcl:"name,label"`
	Stage string `hcl:"stage"`
	Path  string `hcl:"path"`
}

// Pipeline represents a `pipeline` block from a user's definition file.
type Pipeline struct {
	Name         string      `hcl:"name,label"`
	InputPath    string      `hcl:"input_path"`
	MarkerPath   string      `hcl:"marker_path"`
	SharedMount  string      `hcl:"shared_mount,optional"`
	Timeout      string      `hcl:"timeout,optional"`
	PollInterval string      `hcl:"poll_interval,optional"`
	Stages       []*Stage    `hcl:"stage,block"`
	Artifacts    []*Artifact `hcl:"artifact,block"`
}

// File represents the top-level structure of a pipeline definition file.
type File struct {
	Pipelines []*Pipeline `hcl:"pipeline,block"`
	Body      hcl.Body    `hcl:",remain"`
}
