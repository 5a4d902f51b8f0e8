package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/core/workerpool"
)

func TestModelMapper_ExperimentsRunsOfModels(t *testing.T) {
	src := newSource()
	// m3 shares r1 with m1
	src.AddModel("m3")
	src.AddVersion("m3", "r1", domain.StageNone)
	mapper := NewModelMapper(src, workerpool.New(4), 1)

	res := mapper.ExperimentsRunsOfModels(context.Background(), []string{"m1", "m3", "m2", "m1"}, nil)

	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{"1", "2"}, res.Experiments.ExperimentIDs())
	assert.Equal(t, []string{"r1", "r2"}, res.Experiments.RunIDs("1"))
	assert.Equal(t, []string{"r6"}, res.Experiments.RunIDs("2"))
}

func TestModelMapper_StageFilter(t *testing.T) {
	mapper := NewModelMapper(newSource(), workerpool.New(1), 0)
	stages, err := domain.ParseStages("production")
	require.NoError(t, err)

	res := mapper.ExperimentsRunsOfModels(context.Background(), []string{"m1", "m2"}, stages)

	assert.Equal(t, []string{"1"}, res.Experiments.ExperimentIDs())
	assert.Equal(t, []string{"r1"}, res.Experiments.RunIDs("1"))
}

func TestModelMapper_MissingRun(t *testing.T) {
	src := newSource()
	src.FailGetRun.Insert("r2")
	mapper := NewModelMapper(src, workerpool.New(2), 0)

	res := mapper.ExperimentsRunsOfModels(context.Background(), []string{"m1"}, nil)

	assert.Equal(t, []string{"r1"}, res.Experiments.RunIDs("1"))
	assert.Equal(t, []string{"m1/2"}, res.FailedVersions())
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], domain.ErrResourceNotFound)
}
