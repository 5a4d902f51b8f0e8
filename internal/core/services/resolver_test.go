package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlflow-migrate/internal/core/domain"
	"mlflow-migrate/internal/testutil"
)

func TestResolver_ResolveExperiments(t *testing.T) {
	src := testutil.NewFakeTracking("http://src")
	src.AddExperiment("1", "sklearn-a")
	src.AddExperiment("2", "sklearn-b")
	src.AddExperiment("3", "torch")
	r := NewResolver(src, 1)
	ctx := context.Background()

	all, err := r.ResolveExperiments(ctx, domain.AllSelector())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, all)

	prefixed, err := r.ResolveExperiments(ctx, domain.PrefixSelector("sklearn"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, prefixed)

	again, err := r.ResolveExperiments(ctx, domain.PrefixSelector("sklearn"))
	require.NoError(t, err)
	assert.Equal(t, prefixed, again)

	list, err := r.ResolveExperiments(ctx, domain.ListSelector("torch", "42"))
	require.NoError(t, err)
	assert.Equal(t, []string{"torch", "42"}, list)

	none, err := r.ResolveExperiments(ctx, domain.PrefixSelector("xgb"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolver_ResolveModels(t *testing.T) {
	src := newSource()
	src.AddModel("other")
	r := NewResolver(src, 2)
	ctx := context.Background()

	names, err := r.ResolveModels(ctx, domain.ParseSelector("m*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, names)

	names, err = r.ResolveModels(ctx, domain.AllSelector())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "other"}, names)
}

func TestResolver_ListModels(t *testing.T) {
	r := NewResolver(newSource(), 0)

	models, err := r.ListModels(context.Background(), domain.ListSelector("m1", "missing"))
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].Name)
	assert.Len(t, models[0].LatestVersions, 2)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, dedupe([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, dedupe(nil))
}
