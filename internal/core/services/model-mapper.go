package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/workerpool"
)

// ExperimentRuns groups run IDs by their owning experiment. Experiments keep
// the order in which they were first discovered.
type ExperimentRuns struct {
	order []string
	runs  map[string]sets.Set[string]
}

func NewExperimentRuns() *ExperimentRuns {
	return &ExperimentRuns{runs: make(map[string]sets.Set[string])}
}

func (e *ExperimentRuns) Add(experimentID, runID string) {
	set, ok := e.runs[experimentID]
	if !ok {
		set = sets.New[string]()
		e.runs[experimentID] = set
		e.order = append(e.order, experimentID)
	}
	set.Insert(runID)
}

// ExperimentIDs returns each experiment once, in discovery order.
func (e *ExperimentRuns) ExperimentIDs() []string {
	return append([]string(nil), e.order...)
}

// RunIDs returns the sorted run IDs of one experiment.
func (e *ExperimentRuns) RunIDs(experimentID string) []string {
	return sets.List(e.runs[experimentID])
}

func (e *ExperimentRuns) Len() int {
	return len(e.order)
}

// MappingResult is the outcome of mapping models to the experiments and runs
// backing their versions.
type MappingResult struct {
	Experiments *ExperimentRuns
	// Failures holds one EntityError per model or version that could not be
	// mapped. They do not invalidate the rest of the mapping.
	Failures []error
}

// FailedVersions returns the "name/version" keys of versions whose run could
// not be resolved.
func (m *MappingResult) FailedVersions() []string {
	var keys []string
	for _, err := range m.Failures {
		var ee *domain.EntityError
		if errors.As(err, &ee) && ee.Kind == domain.KindVersion {
			keys = append(keys, ee.ID)
		}
	}
	return keys
}

// ModelMapper walks model versions to the experiments that own their runs.
type ModelMapper struct {
	client   ports.TrackingClient
	pool     *workerpool.Pool
	pageSize int
}

func NewModelMapper(client ports.TrackingClient, pool *workerpool.Pool, pageSize int) *ModelMapper {
	return &ModelMapper{client: client, pool: pool, pageSize: pageSize}
}

// ExperimentsRunsOfModels returns experiment ID -> run IDs for every version
// of the given models that passes the stage filter.
func (m *ModelMapper) ExperimentsRunsOfModels(ctx context.Context, modelNames []string, stages domain.StageFilter) *MappingResult {
	result := &MappingResult{Experiments: NewExperimentRuns()}

	var versions []*domain.ModelVersion
	seen := sets.New[string]()
	for _, name := range modelNames {
		if seen.Has(name) {
			continue
		}
		seen.Insert(name)

		vrs, err := listAllVersions(ctx, m.client, name, m.pageSize)
		if err != nil {
			log.WithError(err).WithField("model", name).Warn("failed to list model versions")
			result.Failures = append(result.Failures, domain.NewEntityError(domain.KindModel, name, err))
			continue
		}
		for _, v := range vrs {
			if stages.Matches(v.CurrentStage) {
				versions = append(versions, v)
			}
		}
	}

	runs := workerpool.Map(ctx, m.pool, versions, func(ctx context.Context, v *domain.ModelVersion) (*domain.Run, error) {
		run, err := m.client.GetRun(ctx, v.RunID)
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", v.RunID, err)
		}
		return run, nil
	})

	for i, r := range runs {
		v := versions[i]
		if r.Err != nil {
			log.WithError(r.Err).WithFields(log.Fields{
				"model":   v.Name,
				"version": v.Version,
				"run_id":  v.RunID,
			}).Warn("backing run of model version not found")
			result.Failures = append(result.Failures, domain.NewEntityError(domain.KindVersion, v.Key(), r.Err))
			continue
		}
		result.Experiments.Add(r.Value.Info.ExperimentID, r.Value.Info.RunID)
	}

	log.WithFields(log.Fields{
		"models":      seen.Len(),
		"versions":    len(versions),
		"experiments": result.Experiments.Len(),
		"failures":    len(result.Failures),
	}).Info("mapped models to experiments")
	return result
}
