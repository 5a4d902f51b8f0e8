package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/adapters/secondary/filesystem"
	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/testutil"
)

// exportModels runs export-models against src into a fresh in-memory store.
func exportModels(t *testing.T, src *testutil.FakeTracking, sel domain.Selector) *filesystem.BillyFS {
	t.Helper()
	fs := newMemory()
	_, err := NewBulkExporter(src, fs, nil, BulkExportOptions{}, 0).ExportModels(context.Background(), sel)
	require.NoError(t, err)
	return fs
}

func TestBulkImporter_RoundTrip(t *testing.T) {
	fs := exportModels(t, newSource(), domain.ListSelector("m1"))
	dst := testutil.NewFakeTracking("http://dest:5000")
	b := NewBulkImporter(dst, fs, nil, BulkImportOptions{ExperimentNameSuffix: "-copy"})

	m, err := b.ImportModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OpImportModels, m.Operation)
	assert.Equal(t, []string{"m1"}, m.OK)
	assert.Equal(t, []string{"m1/1", "m1/2"}, m.Child(domain.EntityVersions).OK)
	assert.Empty(t, m.Child(domain.EntityVersions).Failed)
	require.Len(t, m.Phases, 1)
	assert.Equal(t, []string{"1"}, m.Phases[0].OK)
	assert.Len(t, m.Phases[0].Child(domain.EntityRuns).OK, 2)

	exp := dst.ExperimentByName("exp1-copy")
	require.NotNil(t, exp)
	assert.Len(t, dst.RunsOf(exp.ExperimentID), 2)

	versions := dst.Versions("m1")
	require.Len(t, versions, 2)
	for _, v := range versions {
		assert.Equal(t, "runs:/"+v.RunID+"/model", v.Source)
		assert.NotContains(t, []string{"r1", "r2"}, v.RunID)
	}
	assert.Equal(t, string(domain.StageProduction), versions[0].CurrentStage)
	assert.Equal(t, string(domain.StageNone), versions[1].CurrentStage)
	assert.Equal(t, []string{"m1/1=Production"}, dst.Transitions)

	run := dst.Run(versions[0].RunID)
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusFinished, run.Info.Status)
	assert.Equal(t, "0.5", run.Data.Params["alpha"])
	assert.Equal(t, "ml", run.Data.Tags["team"])
	assert.NotContains(t, run.Data.Tags, domain.TagUser)

	history, err := dst.GetMetricHistory(context.Background(), versions[0].RunID, "loss")
	require.NoError(t, err)
	assert.Equal(t, []domain.Metric{
		{Key: "loss", Value: 0.2, Timestamp: 1400, Step: 0},
		{Key: "loss", Value: 0.1, Timestamp: 1500, Step: 1},
	}, history)

	data, ok := dst.Artifact(versions[0].RunID, "model/MLmodel")
	assert.True(t, ok)
	assert.Equal(t, "flavors: {}\n", string(data))
}

func TestBulkImporter_MissingRunFailsVersionOnly(t *testing.T) {
	src := newSource()
	src.FailListArtifacts.Insert("r2")
	fs := exportModels(t, src, domain.ListSelector("m1"))
	dst := testutil.NewFakeTracking("http://dest:5000")

	m, err := NewBulkImporter(dst, fs, nil, BulkImportOptions{}).ImportModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, m.OK)
	versions := m.Child(domain.EntityVersions)
	assert.Equal(t, []string{"m1/1"}, versions.OK)
	assert.Equal(t, []string{"m1/2"}, versions.Failed)
	assert.Len(t, dst.Versions("m1"), 1)
}

func TestBulkImporter_ImportExperiments(t *testing.T) {
	fs := newMemory()
	_, err := NewBulkExporter(newSource(), fs, nil, BulkExportOptions{}, 0).
		ExportExperiments(context.Background(), domain.AllSelector())
	require.NoError(t, err)
	dst := testutil.NewFakeTracking("http://dest:5000")
	dst.AddExperiment("99", "exp2")

	m, runMap, err := NewBulkImporter(dst, fs, nil, BulkImportOptions{UseThreads: true}).ImportExperiments(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, m.OK)
	assert.Len(t, m.Child(domain.EntityRuns).OK, 6)
	assert.Len(t, runMap, 6)
	assert.Equal(t, "99", dst.Run(runMap["r6"].DstRunID).Info.ExperimentID)
	assert.Equal(t, "mlflow-artifacts:/1/r1/artifacts", runMap["r1"].SrcArtifactURI)
}

func TestBulkImporter_EmptyInput(t *testing.T) {
	m, err := NewBulkImporter(testutil.NewFakeTracking("http://dest"), newMemory(), nil, BulkImportOptions{}).
		ImportAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m.OK)
	assert.Empty(t, m.Phases[0].OK)
}

func TestBulkImporter_SkipsDirsWithoutExport(t *testing.T) {
	fs := exportModels(t, newSource(), domain.ListSelector("m2"))
	require.NoError(t, fs.MkdirAll("models/stray"))

	m, err := NewBulkImporter(testutil.NewFakeTracking("http://dest"), fs, nil, BulkImportOptions{}).
		ImportModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, m.OK)
}
