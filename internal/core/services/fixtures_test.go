package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/adapters/secondary/filesystem"
	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/testutil"
)

// newSource returns a tracking server with two experiments:
//
//	1 "exp1": r1..r5, r1 has a model artifact tree
//	2 "exp2": r6
//
// and two registered models: m1 (v1 -> r1 Production, v2 -> r2) and
// m2 (v1 -> r6 Staging).
func newSource() *testutil.FakeTracking {
	src := testutil.NewFakeTracking("http://source:5000")
	src.AddExperiment("1", "exp1")
	src.AddExperiment("2", "exp2")
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		src.AddRun("1", id)
	}
	src.AddRun("2", "r6")
	src.AddArtifact("r1", "model/MLmodel", []byte("flavors: {}\n"))
	src.AddArtifact("r1", "model/model.pkl", []byte{0x80, 0x04})
	src.AddArtifact("r1", "metrics.txt", []byte("loss 0.1\n"))

	src.AddModel("m1")
	src.AddVersion("m1", "r1", domain.StageProduction)
	src.AddVersion("m1", "r2", domain.StageNone)
	src.AddModel("m2")
	src.AddVersion("m2", "r6", domain.StageStaging)
	return src
}

func readExperimentExport(t *testing.T, fs ports.Filesystem, dir string) domain.ExperimentExport {
	t.Helper()
	var export domain.ExperimentExport
	require.NoError(t, readJSON(fs, dir+"/"+domain.ExperimentFile, &export))
	return export
}

func newMemory() *filesystem.BillyFS {
	return filesystem.NewMemory()
}
