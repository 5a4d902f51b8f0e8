package services

import (
	"context"

	"mlflow-migrate/internal/core/domain"
)

// ModelSummary is one entry of the list-models output.
type ModelSummary struct {
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	LatestVersions []domain.ModelVersionRef `json:"latest_versions"`
}

// ListModels summarises the registered models a selector refers to.
func (r *Resolver) ListModels(ctx context.Context, sel domain.Selector) ([]ModelSummary, error) {
	models, err := r.RegisteredModels(ctx, sel)
	if err != nil {
		return nil, err
	}

	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		s := ModelSummary{
			Name:           m.Name,
			Description:    m.Description,
			LatestVersions: make([]domain.ModelVersionRef, 0, len(m.LatestVersions)),
		}
		for _, v := range m.LatestVersions {
			s.LatestVersions = append(s.LatestVersions, v.Ref())
		}
		out = append(out, s)
	}
	return out, nil
}
