package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

func TestRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"export-experiments", "export-models", "export-all",
		"import-experiments", "import-models", "import-all",
		"export-run", "import-run", "export-experiment", "import-experiment",
		"export-model", "import-model",
		"list-models", "http-client", "find-artifacts", "history",
	} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("tracking-uri"))
}

func TestRootCmd_RequiredFlags(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"export-models"}, want: `"models"`},
		{args: []string{"export-experiments", "--experiments", "all"}, want: `"output-dir"`},
		{args: []string{"import-models"}, want: `"input-dir"`},
		{args: []string{"import-run", "--input-dir", "x"}, want: `"experiment-name"`},
		{args: []string{"http-client"}, want: `"resource"`},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.ExecuteContext(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHistoryCmd_Disabled(t *testing.T) {
	t.Setenv("DATABASE_ENABLED", "false")
	t.Setenv("LOGGER_FORMAT", "text")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"history"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"SOURCE", "DBC"}, splitList(" SOURCE, ,DBC "))
	assert.Nil(t, splitList(""))
}

func TestPrintSummary(t *testing.T) {
	exp := domain.NewManifest(domain.EntityExperiments)
	exp.OK = []string{"1", "2"}
	exp.Duration = 1500 * time.Millisecond

	m := domain.NewManifest(domain.EntityModels)
	m.OperationID = "op-1"
	m.OK = []string{"m1"}
	m.Failed = []string{"m2"}
	m.Duration = 2 * time.Second
	m.Phases = []*domain.Manifest{exp}
	m.Child(domain.EntityVersions).Record("m1/1", nil)

	var buf bytes.Buffer
	printSummary(&buf, m)
	assert.Equal(t, "experiments: 2 ok, 0 failed (1.5s)\n"+
		"models: 1 ok, 1 failed (2.0s)\n"+
		"  versions: 1 ok, 0 failed\n"+
		"operation op-1 finished\n", buf.String())
}

func TestPrintHistory(t *testing.T) {
	id := uuid.New()
	var buf bytes.Buffer
	printHistory(&buf, []*ports.ManifestRecord{{
		ID:          id,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Operation:   "export-models",
		Entity:      domain.EntityModels,
		Duration:    3.2,
		OKCount:     4,
		FailedCount: 1,
	}}, 7)

	out := buf.String()
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, id.String())
	assert.Contains(t, out, "2024-05-01 12:00:00")
	assert.Contains(t, out, "3.2")
	assert.Contains(t, out, "1 of 7 records")
}
