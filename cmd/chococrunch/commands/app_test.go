package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() domain.RunReport {
	return domain.RunReport{
		RunID: "c0ffee",
		Steps: []domain.StepResult{
			{Stage: domain.StageExtract, Skipped: true},
			{Stage: domain.StageClean, Duration: 1500 * time.Millisecond},
			{Stage: domain.StageEngineer, Error: "run the clean stage first"},
		},
		StepsCompleted: []domain.Stage{domain.StageExtract, domain.StageClean},
		SuccessRate:    2.0 / 3.0,
		Cleaning:       &domain.CleaningReport{InputRecords: 120, OutputRecords: 100},
	}
}

func TestPrintReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), false))

	out := buf.String()
	assert.Contains(t, out, "run c0ffee: 2/3 stages, success rate 67%")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "FAILED: run the clean stage first")
	assert.Contains(t, out, "cleaned 120 -> 100 records")
}

func TestPrintReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, sampleReport(), true))

	var decoded domain.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "c0ffee", decoded.RunID)
	assert.Len(t, decoded.Steps, 3)
}

func TestLazyLoader_OpensOnFirstLoad(t *testing.T) {
	dir := t.TempDir()
	loader := &lazyLoader{cfg: store.Config{Driver: "sqlite", DataDir: dir}}
	defer loader.Close()

	assert.NoFileExists(t, store.DefaultSQLitePath(dir))

	result, err := loader.Load(context.Background(), domain.EngineeredDataset{})
	require.NoError(t, err)
	assert.Equal(t, domain.LoadResult{}, result)
	assert.FileExists(t, filepath.Join(dir, "database", "chococrunch.db"))

	require.NoError(t, loader.Close())
	require.NoError(t, loader.Close())
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"extract", "clean", "engineer", "load", "run", "serve"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}
