package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/convoy/internal/pipeline"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validDefinition = `
pipeline "web_analysis" {
  input_path    = "/shared/input/urls.txt"
  marker_path   = "/shared/analysis/final_report.json"
  timeout       = "120s"
  poll_interval = "2s"

  stage "fetcher" {
    image = "pipeline-fetcher"
  }

  stage "processor" {
    image      = "pipeline-processor"
    depends_on = ["fetcher"]
  }

  artifact "final_report.json" {
    stage = "processor"
    path  = "/shared/analysis/final_report.json"
  }
}
`

func TestLoad_ValidDefinition(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, validDefinition)

	model, err := Load(context.Background(), path)
	require.NoError(t, err)

	def, err := model.Default()
	require.NoError(t, err)

	assert.Equal(t, "web_analysis", def.Name)
	assert.Equal(t, "/shared/input/urls.txt", def.InputPath)
	assert.Equal(t, "/shared/analysis/final_report.json", def.MarkerPath)
	assert.Equal(t, "/shared", def.SharedMount, "shared_mount defaults")
	assert.Equal(t, 120*time.Second, def.Timeout)
	assert.Equal(t, 2*time.Second, def.PollInterval)

	require.Len(t, def.Stages, 2)
	assert.Equal(t, pipeline.StageSpec{Name: "fetcher", Image: "pipeline-fetcher"}, def.Stages[0])
	assert.Equal(t, []string{"fetcher"}, def.Stages[1].DependsOn)

	require.Len(t, def.Artifacts, 1)
	assert.Equal(t, pipeline.ArtifactSpec{
		Name:  "final_report.json",
		Stage: "processor",
		Path:  "/shared/analysis/final_report.json",
	}, def.Artifacts[0])
}

func TestLoad_DefaultsApply(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `
pipeline "minimal" {
  input_path  = "/shared/in.txt"
  marker_path = "/shared/done"

  stage "only" {
    image = "busybox"
  }
}
`)

	model, err := Load(context.Background(), path)
	require.NoError(t, err)

	def, err := model.Default()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, def.Timeout)
	assert.Equal(t, 5*time.Second, def.PollInterval)
	assert.Equal(t, "/shared", def.SharedMount)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	// No t.Parallel(): mutates the process environment.
	t.Setenv("CONVOY_TEST_IMAGE", "pipeline-fetcher:v2")

	path := writeDefinition(t, `
pipeline "env" {
  input_path  = "/shared/in.txt"
  marker_path = "/shared/done"

  stage "fetch" {
    image = env.CONVOY_TEST_IMAGE
  }
}
`)

	model, err := Load(context.Background(), path)
	require.NoError(t, err)

	def, err := model.Default()
	require.NoError(t, err)
	assert.Equal(t, "pipeline-fetcher:v2", def.Stages[0].Image)
}

func TestLoad_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no stages",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
}
`,
			wantErr: "at least one stage",
		},
		{
			name: "duplicate stage names",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
  stage "a" { image = "x" }
  stage "a" { image = "y" }
}
`,
			wantErr: "duplicate stage name",
		},
		{
			name: "unknown dependency",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
  stage "a" {
    image      = "x"
    depends_on = ["ghost"]
  }
}
`,
			wantErr: "undeclared stage",
		},
		{
			name: "dependency cycle",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
  stage "a" {
    image      = "x"
    depends_on = ["b"]
  }
  stage "b" {
    image      = "y"
    depends_on = ["a"]
  }
}
`,
			wantErr: "cycle",
		},
		{
			name: "artifact references unknown stage",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
  stage "a" { image = "x" }
  artifact "out" {
    stage = "ghost"
    path  = "/shared/out"
  }
}
`,
			wantErr: "undeclared stage",
		},
		{
			name: "poll interval not shorter than timeout",
			content: `
pipeline "p" {
  input_path    = "/in"
  marker_path   = "/done"
  timeout       = "5s"
  poll_interval = "5s"
  stage "a" { image = "x" }
}
`,
			wantErr: "must be shorter than timeout",
		},
		{
			name: "bad duration",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "/done"
  timeout     = "soon"
  stage "a" { image = "x" }
}
`,
			wantErr: "invalid timeout",
		},
		{
			name: "relative marker path",
			content: `
pipeline "p" {
  input_path  = "/in"
  marker_path = "done"
  stage "a" { image = "x" }
}
`,
			wantErr: "marker_path must be absolute",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeDefinition(t, tc.content)

			_, err := Load(context.Background(), path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_DirectoryWithSeveralPipelines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
pipeline "alpha" {
  input_path  = "/in"
  marker_path = "/done"
  stage "s" { image = "x" }
}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte(`
pipeline "beta" {
  input_path  = "/in"
  marker_path = "/done"
  stage "s" { image = "x" }
}
`), 0o600))

	model, err := Load(context.Background(), dir)
	require.NoError(t, err)

	_, err = model.Default()
	require.Error(t, err, "ambiguous without a name")

	def, err := model.Pipeline("beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", def.Name)

	_, err = model.Pipeline("gamma")
	require.Error(t, err)
}

func TestLoad_NoDefinitionFiles(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl pipeline files")
}
