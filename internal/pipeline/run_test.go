package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun_NamesDeriveFromRunID(t *testing.T) {
	t.Parallel()

	def := testDefinition()
	run := NewRun(def, []string{"https://a.test"})

	require.NotEmpty(t, run.ID)
	short := run.ID[:8]
	assert.Equal(t, "convoy-web_analysis-fetcher-"+short, run.UnitName("fetcher"))
	assert.Equal(t, "convoy-web_analysis-shared-"+short, run.VolumeName())
}

func TestNewRun_ConcurrentRunsDoNotCollide(t *testing.T) {
	t.Parallel()

	def := testDefinition()
	a := NewRun(def, nil)
	b := NewRun(def, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.VolumeName(), b.VolumeName())
	assert.NotEqual(t, a.UnitName("fetcher"), b.UnitName("fetcher"))
}

func TestRun_FirstAndFinalStage(t *testing.T) {
	t.Parallel()

	run := NewRun(testDefinition(), nil)
	assert.Equal(t, "fetcher", run.FirstStage().Name)
	assert.Equal(t, "analyzer", run.FinalStage().Name)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "timeout", OutcomeTimeout.String())
}
