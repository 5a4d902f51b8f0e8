package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/workerpool"
)

// ExperimentExportResult reports one exported experiment and its runs.
type ExperimentExportResult struct {
	Experiment domain.ExperimentRef
	Runs       domain.Outcome
}

// ExperimentExporter writes an experiment and its runs. Runs are exported on
// the worker pool; a failing run is recorded and does not stop its siblings.
type ExperimentExporter struct {
	client   ports.TrackingClient
	fs       ports.Filesystem
	runs     *RunExporter
	pool     *workerpool.Pool
	pageSize int
}

func NewExperimentExporter(client ports.TrackingClient, fs ports.Filesystem, runs *RunExporter, pool *workerpool.Pool, pageSize int) *ExperimentExporter {
	return &ExperimentExporter{client: client, fs: fs, runs: runs, pool: pool, pageSize: pageSize}
}

// Lookup finds an experiment by ID, falling back to a lookup by name.
func (e *ExperimentExporter) Lookup(ctx context.Context, idOrName string) (*domain.Experiment, error) {
	return LookupExperiment(ctx, e.client, idOrName)
}

// LookupExperiment finds an experiment by ID, falling back to a lookup by name.
func LookupExperiment(ctx context.Context, client ports.ExperimentClient, idOrName string) (*domain.Experiment, error) {
	if idOrName == "" {
		return nil, domain.ErrEmptyExperimentName
	}
	exp, err := client.GetExperiment(ctx, idOrName)
	if err == nil {
		return exp, nil
	}
	if !errors.Is(err, domain.ErrResourceNotFound) && !errors.Is(err, domain.ErrInvalidParameter) {
		return nil, fmt.Errorf("get experiment: %w", err)
	}
	exp, err = client.GetExperimentByName(ctx, idOrName)
	if err != nil {
		return nil, fmt.Errorf("get experiment by name: %w", err)
	}
	return exp, nil
}

// Export writes experiment.json and runs/<run_id>/ under dir. When runIDs is
// nil every run of the experiment is exported, otherwise only the given runs.
func (e *ExperimentExporter) Export(ctx context.Context, exp *domain.Experiment, runIDs []string, dir string) (*ExperimentExportResult, error) {
	if runIDs == nil {
		runs, err := listAllRuns(ctx, e.client, exp.ExperimentID, e.pageSize)
		if err != nil {
			return nil, err
		}
		runIDs = make([]string, 0, len(runs))
		for _, r := range runs {
			runIDs = append(runIDs, r.Info.RunID)
		}
	}

	results := workerpool.Each(ctx, e.pool, runIDs, func(ctx context.Context, runID string) error {
		_, err := e.runs.Export(ctx, runID, exp.Name, path.Join(dir, domain.RunsDir, runID))
		return err
	})

	res := &ExperimentExportResult{
		Experiment: exp.Ref(),
		Runs:       domain.Outcome{Entity: domain.EntityRuns, OK: []string{}, Failed: []string{}},
	}
	for i, err := range results {
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"experiment_id": exp.ExperimentID,
				"run_id":        runIDs[i],
			}).Warn("run export failed")
		}
		res.Runs.Record(runIDs[i], err)
	}

	export := domain.ExperimentExport{
		ExportInfo: domain.NewExportInfo(e.client.TrackingURI()),
		Experiment: *exp,
		OKRuns:     res.Runs.OK,
		FailedRuns: res.Runs.Failed,
	}
	if err := writeJSON(e.fs, path.Join(dir, domain.ExperimentFile), export); err != nil {
		return res, err
	}

	log.WithFields(log.Fields{
		"experiment_id": exp.ExperimentID,
		"name":          exp.Name,
		"ok_runs":       len(res.Runs.OK),
		"failed_runs":   len(res.Runs.Failed),
	}).Info("exported experiment")
	return res, nil
}
