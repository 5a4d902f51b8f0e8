package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/testutil"
)

func bigRunExport() domain.RunExport {
	export := domain.RunExport{
		Info: domain.RunInfo{
			RunID:       "src-run",
			RunName:     "big",
			UserID:      "alice",
			Status:      domain.RunStatusRunning,
			StartTime:   10,
			ArtifactURI: "s3://old/artifacts",
		},
		Params:  map[string]string{},
		Metrics: map[string][]domain.Metric{},
		Tags: map[string]string{
			domain.TagUser: "alice",
			"a":            "1",
			"b":            "2",
			"c":            "3",
		},
	}
	export.Tags[domain.MetadataTagPrefix+"tracking_uri"] = "http://source:5000"
	for i := 0; i < 250; i++ {
		export.Params[fmt.Sprintf("p%03d", i)] = "v"
	}
	for i := 0; i < 2500; i++ {
		export.Metrics["loss"] = append(export.Metrics["loss"], domain.Metric{Key: "loss", Value: float64(i), Step: int64(i)})
	}
	return export
}

func TestRunImporter_LogBatchChunking(t *testing.T) {
	fs := newMemory()
	require.NoError(t, writeJSON(fs, "run/run.json", bigRunExport()))
	dst := testutil.NewFakeTracking("http://dest")
	dst.AddExperiment("7", "target")

	rm, err := NewRunImporter(dst, fs, RunImportOptions{}).Import(context.Background(), "7", "run")
	require.NoError(t, err)

	assert.Equal(t, "src-run", rm.SrcRunID)
	assert.Equal(t, "s3://old/artifacts", rm.SrcArtifactURI)

	var metrics, params, tags int
	for _, c := range dst.LogBatchCalls {
		assert.LessOrEqual(t, c.Metrics, 1000)
		assert.LessOrEqual(t, c.Params, 100)
		assert.LessOrEqual(t, c.Tags, 100)
		metrics += c.Metrics
		params += c.Params
		tags += c.Tags
	}
	assert.Len(t, dst.LogBatchCalls, 3)
	assert.Equal(t, 2500, metrics)
	assert.Equal(t, 250, params)
	assert.Equal(t, 3, tags)

	run := dst.Run(rm.DstRunID)
	assert.Equal(t, domain.RunStatusFinished, run.Info.Status)
	assert.Equal(t, "big", run.Info.RunName)
	assert.NotContains(t, run.Data.Tags, domain.MetadataTagPrefix+"tracking_uri")
	assert.NotContains(t, run.Data.Tags, domain.TagUser)
}

func TestRunImporter_UserIDFallback(t *testing.T) {
	fs := newMemory()
	require.NoError(t, writeJSON(fs, "run/run.json", bigRunExport()))
	dst := testutil.NewFakeTracking("http://dest")
	dst.AddExperiment("7", "target")
	dst.DenyUserID = true

	rm, err := NewRunImporter(dst, fs, RunImportOptions{UseSrcUserID: true, ImportMetadataTags: true}).
		Import(context.Background(), "7", "run")
	require.NoError(t, err)

	require.Len(t, dst.CreatedRuns, 2)
	assert.Equal(t, "alice", dst.CreatedRuns[0].UserID)
	assert.Equal(t, "", dst.CreatedRuns[1].UserID)

	run := dst.Run(rm.DstRunID)
	assert.NotContains(t, run.Data.Tags, domain.TagUser)
	assert.Equal(t, "http://source:5000", run.Data.Tags[domain.MetadataTagPrefix+"tracking_uri"])
}

func TestRunImporter_KeepsSourceUser(t *testing.T) {
	fs := newMemory()
	require.NoError(t, writeJSON(fs, "run/run.json", bigRunExport()))
	dst := testutil.NewFakeTracking("http://dest")
	dst.AddExperiment("7", "target")

	rm, err := NewRunImporter(dst, fs, RunImportOptions{UseSrcUserID: true}).Import(context.Background(), "7", "run")
	require.NoError(t, err)

	require.Len(t, dst.CreatedRuns, 1)
	assert.Equal(t, "alice", dst.CreatedRuns[0].UserID)
	assert.Equal(t, "alice", dst.Run(rm.DstRunID).Data.Tags[domain.TagUser])
}

func TestRunImporter_MissingExperiment(t *testing.T) {
	fs := newMemory()
	require.NoError(t, writeJSON(fs, "run/run.json", bigRunExport()))

	_, err := NewRunImporter(testutil.NewFakeTracking("http://dest"), fs, RunImportOptions{}).
		Import(context.Background(), "404", "run")
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestRunImporter_MissingRunFile(t *testing.T) {
	_, err := NewRunImporter(testutil.NewFakeTracking("http://dest"), newMemory(), RunImportOptions{}).
		Import(context.Background(), "1", "nowhere")
	assert.Error(t, err)
}

func TestSplitAt(t *testing.T) {
	head, tail := splitAt([]int{1, 2, 3}, 2)
	assert.Equal(t, []int{1, 2}, head)
	assert.Equal(t, []int{3}, tail)

	head, tail = splitAt([]int{1}, 2)
	assert.Equal(t, []int{1}, head)
	assert.Nil(t, tail)
}
