package services

import (
	"context"
	"fmt"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

const defaultPageSize = 1000

func pageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	return n
}

// paginate drains a token-paginated listing.
func paginate[T any](ctx context.Context, size int, fetch func(ctx context.Context, page ports.Page) ([]T, string, error)) ([]T, error) {
	var all []T
	page := ports.Page{MaxResults: pageSize(size)}
	for {
		items, next, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		page.Token = next
	}
}

func listAllExperiments(ctx context.Context, client ports.ExperimentClient, size int) ([]*domain.Experiment, error) {
	exps, err := paginate(ctx, size, client.SearchExperiments)
	if err != nil {
		return nil, fmt.Errorf("search experiments: %w", err)
	}
	return exps, nil
}

func listAllModels(ctx context.Context, client ports.RegistryClient, size int) ([]*domain.RegisteredModel, error) {
	models, err := paginate(ctx, size, client.SearchRegisteredModels)
	if err != nil {
		return nil, fmt.Errorf("search registered models: %w", err)
	}
	return models, nil
}

func listAllVersions(ctx context.Context, client ports.RegistryClient, modelName string, size int) ([]*domain.ModelVersion, error) {
	versions, err := paginate(ctx, size, func(ctx context.Context, page ports.Page) ([]*domain.ModelVersion, string, error) {
		return client.SearchModelVersions(ctx, modelName, page)
	})
	if err != nil {
		return nil, fmt.Errorf("search model versions of %q: %w", modelName, err)
	}
	domain.SortVersions(versions)
	return versions, nil
}

func listAllRuns(ctx context.Context, client ports.RunClient, experimentID string, size int) ([]*domain.Run, error) {
	runs, err := paginate(ctx, size, func(ctx context.Context, page ports.Page) ([]*domain.Run, string, error) {
		return client.SearchRuns(ctx, []string{experimentID}, "", page)
	})
	if err != nil {
		return nil, fmt.Errorf("search runs of experiment %s: %w", experimentID, err)
	}
	return runs, nil
}
