package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/testutil"
)

func TestModelExporter_ExportRun(t *testing.T) {
	src := newSource()
	fs := newMemory()
	runs := NewRunExporter(src, fs, RunExportOptions{})
	exporter := NewModelExporter(src, fs, runs, ModelExportOptions{ExportRun: true}, 0)

	res, err := exporter.Export(context.Background(), "m1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1/1", "m1/2"}, res.Versions.OK)

	var v domain.VersionExport
	require.NoError(t, readJSON(fs, "m1/versions/1/version.json", &v))
	assert.True(t, v.RunExported)
	ok, err := fs.Exists("m1/versions/1/run/artifacts/model/MLmodel")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModelExporter_MissingModel(t *testing.T) {
	src := newSource()
	exporter := NewModelExporter(src, newMemory(), NewRunExporter(src, newMemory(), RunExportOptions{}), ModelExportOptions{}, 0)

	_, err := exporter.Export(context.Background(), "nope", "nope")
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)

	_, err = exporter.Export(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrEmptyModelName)
}

func TestModelImporter_ImportWithRuns(t *testing.T) {
	src := newSource()
	fs := newMemory()
	exporter := NewModelExporter(src, fs, NewRunExporter(src, fs, RunExportOptions{}), ModelExportOptions{ExportRun: true}, 0)
	_, err := exporter.Export(context.Background(), "m1", "m1")
	require.NoError(t, err)

	dst := testutil.NewFakeTracking("http://dest")
	importer := NewModelImporter(dst, fs, NewRunImporter(dst, fs, RunImportOptions{}), ModelImportOptions{})
	res, err := importer.ImportWithRuns(context.Background(), "m1-copy", "m1", "imported")
	require.NoError(t, err)

	assert.Equal(t, "m1", res.SrcName)
	assert.Equal(t, "m1-copy", res.DstName)
	assert.Equal(t, []string{"m1/1", "m1/2"}, res.Versions.OK)

	exp := dst.ExperimentByName("imported")
	require.NotNil(t, exp)
	assert.Len(t, dst.RunsOf(exp.ExperimentID), 2)
	for _, v := range dst.Versions("m1-copy") {
		assert.Equal(t, exp.ExperimentID, dst.Run(v.RunID).Info.ExperimentID)
	}
}

func TestModelImporter_MissingMapping(t *testing.T) {
	fs := exportModels(t, newSource(), domain.ListSelector("m1"))
	dst := testutil.NewFakeTracking("http://dest")
	importer := NewModelImporter(dst, fs, NewRunImporter(dst, fs, RunImportOptions{}), ModelImportOptions{})

	res, err := importer.Import(context.Background(), "", "models/m1", domain.RunIDMap{})
	require.NoError(t, err)

	assert.Empty(t, res.Versions.OK)
	assert.Equal(t, []string{"m1/1", "m1/2"}, res.Versions.Failed)
	assert.Empty(t, dst.Versions("m1"))
}

func TestModelImporter_DeleteModel(t *testing.T) {
	fs := exportModels(t, newSource(), domain.ListSelector("m2"))
	dst := testutil.NewFakeTracking("http://dest")
	dst.AddExperiment("5", "target")
	dst.AddRun("5", "old-run")
	dst.AddModel("m2")
	dst.AddVersion("m2", "old-run", domain.StageNone)
	runMap := domain.RunIDMap{"r6": {SrcRunID: "r6", DstRunID: "old-run"}}

	keep := NewModelImporter(dst, fs, nil, ModelImportOptions{})
	_, err := keep.Import(context.Background(), "", "models/m2", runMap)
	require.NoError(t, err)
	assert.Len(t, dst.Versions("m2"), 2)

	replace := NewModelImporter(dst, fs, nil, ModelImportOptions{DeleteModel: true})
	_, err = replace.Import(context.Background(), "", "models/m2", runMap)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, dst.DeletedModels)
	versions := dst.Versions("m2")
	require.Len(t, versions, 1)
	assert.Equal(t, string(domain.StageStaging), versions[0].CurrentStage)
}

func TestExperimentImporter_ImportRun(t *testing.T) {
	src := newSource()
	fs := newMemory()
	_, err := NewRunExporter(src, fs, RunExportOptions{ExportMetadataTags: true}).Export(context.Background(), "r1", "exp1", "r1")
	require.NoError(t, err)

	var export domain.RunExport
	require.NoError(t, readJSON(fs, "r1/run.json", &export))
	assert.Equal(t, "exp1", export.Tags[domain.MetadataTagPrefix+"experiment_name"])
	assert.Equal(t, "r1", export.Tags[domain.MetadataTagPrefix+"run_id"])

	dst := testutil.NewFakeTracking("http://dest")
	importer := NewExperimentImporter(dst, fs, NewRunImporter(dst, fs, RunImportOptions{}), nil, ExperimentImportOptions{NameSuffix: "-2"})
	rm, err := importer.ImportRun(context.Background(), "single", "r1")
	require.NoError(t, err)

	assert.NotNil(t, dst.ExperimentByName("single-2"))
	data, ok := dst.Artifact(rm.DstRunID, "model/model.pkl")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x80, 0x04}, data)
}
