// Package config loads pipeline definitions from HCL files and validates
// them into the pipeline package's model.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/convoy/internal/ctxlog"
	"github.com/vk/convoy/internal/dag"
	"github.com/vk/convoy/internal/fsutil"
	"github.com/vk/convoy/internal/pipeline"
	"github.com/vk/convoy/internal/schema"
)

const (
	defaultSharedMount  = "/shared"
	defaultTimeout      = 300 * time.Second
	defaultPollInterval = 5 * time.Second
)

// Model is the set of pipeline definitions loaded from a path.
type Model struct {
	// Pipelines is keyed by pipeline name.
	Pipelines map[string]pipeline.Definition
	// names preserves declaration order for Default().
	names []string
}

// Pipeline returns the named definition.
func (m *Model) Pipeline(name string) (pipeline.Definition, error) {
	def, ok := m.Pipelines[name]
	if !ok {
		return pipeline.Definition{}, fmt.Errorf("config: no pipeline named %q (have: %s)",
			name, strings.Join(m.names, ", "))
	}
	return def, nil
}

// Default returns the single loaded definition, or an error if the model
// holds zero or several and the caller did not name one.
func (m *Model) Default() (pipeline.Definition, error) {
	if len(m.names) == 1 {
		return m.Pipelines[m.names[0]], nil
	}
	return pipeline.Definition{}, fmt.Errorf("config: %d pipelines loaded, name one of: %s",
		len(m.names), strings.Join(m.names, ", "))
}

// Load finds and parses all .hcl files under path (or the single file it
// names) into a validated Model.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("config: failed to find pipeline files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("config: no .hcl pipeline files found in %s", path)
	}

	model := &Model{Pipelines: make(map[string]pipeline.Definition)}
	parser := hclparse.NewParser()
	evalCtx := evalContext()

	for _, file := range files {
		parsed, err := decodeFile(parser, evalCtx, file)
		if err != nil {
			return nil, err
		}
		for _, p := range parsed.Pipelines {
			def, err := buildDefinition(p)
			if err != nil {
				return nil, fmt.Errorf("config: pipeline %q in %s: %w", p.Name, file, err)
			}
			if _, exists := model.Pipelines[def.Name]; exists {
				return nil, fmt.Errorf("config: duplicate pipeline name %q in %s", def.Name, file)
			}
			model.Pipelines[def.Name] = def
			model.names = append(model.names, def.Name)
		}
	}

	logger.Debug("Pipeline definitions loaded.", "count", len(model.names), "names", model.names)
	return model, nil
}

// decodeFile parses one HCL file into the schema structs.
func decodeFile(parser *hclparse.Parser, evalCtx *hcl.EvalContext, path string) (*schema.File, error) {
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, diags)
	}

	var parsed schema.File
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, diags)
	}
	return &parsed, nil
}

// evalContext exposes the host environment as an `env` object so definition
// files can parameterize images and endpoints.
func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vars),
		},
	}
}

// buildDefinition converts a decoded pipeline block into a validated
// Definition, applying defaults.
func buildDefinition(p *schema.Pipeline) (pipeline.Definition, error) {
	def := pipeline.Definition{
		Name:         p.Name,
		InputPath:    p.InputPath,
		MarkerPath:   p.MarkerPath,
		SharedMount:  p.SharedMount,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
	}

	if def.SharedMount == "" {
		def.SharedMount = defaultSharedMount
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return pipeline.Definition{}, fmt.Errorf("invalid timeout: %w", err)
		}
		def.Timeout = d
	}
	if p.PollInterval != "" {
		d, err := time.ParseDuration(p.PollInterval)
		if err != nil {
			return pipeline.Definition{}, fmt.Errorf("invalid poll_interval: %w", err)
		}
		def.PollInterval = d
	}

	for _, s := range p.Stages {
		def.Stages = append(def.Stages, pipeline.StageSpec{
			Name:      s.Name,
			Image:     s.Image,
			Command:   s.Command,
			Env:       s.Env,
			WorkDir:   s.WorkDir,
			DependsOn: s.DependsOn,
		})
	}
	for _, a := range p.Artifacts {
		def.Artifacts = append(def.Artifacts, pipeline.ArtifactSpec{
			Name:  a.Name,
			Stage: a.Stage,
			Path:  a.Path,
		})
	}

	if err := validate(def); err != nil {
		return pipeline.Definition{}, err
	}
	return def, nil
}

// validate enforces the structural invariants of a definition.
func validate(def pipeline.Definition) error {
	if len(def.Stages) == 0 {
		return fmt.Errorf("at least one stage is required")
	}
	if !strings.HasPrefix(def.InputPath, "/") {
		return fmt.Errorf("input_path must be absolute, got %q", def.InputPath)
	}
	if !strings.HasPrefix(def.MarkerPath, "/") {
		return fmt.Errorf("marker_path must be absolute, got %q", def.MarkerPath)
	}
	if def.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if def.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if def.PollInterval >= def.Timeout {
		return fmt.Errorf("poll_interval (%s) must be shorter than timeout (%s)", def.PollInterval, def.Timeout)
	}

	g := dag.New()
	seen := make(map[string]bool, len(def.Stages))
	for _, s := range def.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage name must not be empty")
		}
		if s.Image == "" {
			return fmt.Errorf("stage %q: image is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true
		g.AddNode(s.Name)
	}

	for _, s := range def.Stages {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("stage %q depends on undeclared stage %q", s.Name, dep)
			}
			if err := g.AddEdge(dep, s.Name); err != nil {
				return err
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return err
	}

	for _, a := range def.Artifacts {
		if !seen[a.Stage] {
			return fmt.Errorf("artifact %q references undeclared stage %q", a.Name, a.Stage)
		}
		if !strings.HasPrefix(a.Path, "/") {
			return fmt.Errorf("artifact %q: path must be absolute, got %q", a.Name, a.Path)
		}
	}

	return nil
}
