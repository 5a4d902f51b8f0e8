package services

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

// Resolver turns selectors into concrete experiment IDs or model names.
type Resolver struct {
	client   ports.TrackingClient
	pageSize int
}

func NewResolver(client ports.TrackingClient, pageSize int) *Resolver {
	return &Resolver{client: client, pageSize: pageSize}
}

// ResolveExperiments returns experiment IDs for "all" and prefix selectors.
// List selectors are returned unchanged: each token may be an ID or a name
// and is validated by the exporter, not here.
func (r *Resolver) ResolveExperiments(ctx context.Context, sel domain.Selector) ([]string, error) {
	if sel.Kind == domain.SelectList {
		return sel.Names, nil
	}

	exps, err := listAllExperiments(ctx, r.client, r.pageSize)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, exp := range exps {
		if sel.Kind == domain.SelectPrefix && !strings.HasPrefix(exp.Name, sel.Prefix) {
			continue
		}
		ids = append(ids, exp.ExperimentID)
	}

	log.WithFields(log.Fields{
		"selector":    sel.String(),
		"experiments": len(ids),
	}).Debug("resolved experiments")
	return ids, nil
}

// ResolveModels returns registered model names matching the selector. List
// selectors are returned unchanged.
func (r *Resolver) ResolveModels(ctx context.Context, sel domain.Selector) ([]string, error) {
	if sel.Kind == domain.SelectList {
		return sel.Names, nil
	}

	models, err := r.RegisteredModels(ctx, sel)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}

	log.WithFields(log.Fields{
		"selector": sel.String(),
		"models":   len(names),
	}).Debug("resolved models")
	return names, nil
}

// RegisteredModels lists the registered models a selector refers to. Names of
// a list selector that do not exist are skipped.
func (r *Resolver) RegisteredModels(ctx context.Context, sel domain.Selector) ([]*domain.RegisteredModel, error) {
	if sel.Kind == domain.SelectList {
		models := make([]*domain.RegisteredModel, 0, len(sel.Names))
		for _, name := range sel.Names {
			m, err := r.client.GetRegisteredModel(ctx, name)
			if err != nil {
				log.WithError(err).WithField("model", name).Warn("registered model not found")
				continue
			}
			models = append(models, m)
		}
		return models, nil
	}

	all, err := listAllModels(ctx, r.client, r.pageSize)
	if err != nil {
		return nil, err
	}
	if sel.Kind == domain.SelectAll {
		return all, nil
	}

	models := []*domain.RegisteredModel{}
	for _, m := range all {
		if strings.HasPrefix(m.Name, sel.Prefix) {
			models = append(models, m)
		}
	}
	return models, nil
}
