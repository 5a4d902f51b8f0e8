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

type ExperimentImportOptions struct {
	// NameSuffix is appended to the imported experiment name.
	NameSuffix string
}

// ExperimentImportResult reports one imported experiment.
type ExperimentImportResult struct {
	SrcExperiment domain.ExperimentRef
	DstExperiment domain.ExperimentRef
	Runs          domain.Outcome
	// Mappings holds one entry per successfully imported run.
	Mappings []domain.RunMapping
}

// ExperimentImporter recreates an exported experiment and its runs.
type ExperimentImporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	runs   *RunImporter
	pool   *workerpool.Pool
	opts   ExperimentImportOptions
}

func NewExperimentImporter(client ports.TrackingClient, fs ports.Filesystem, runs *RunImporter, pool *workerpool.Pool, opts ExperimentImportOptions) *ExperimentImporter {
	return &ExperimentImporter{client: client, fs: fs, runs: runs, pool: pool, opts: opts}
}

// Import reads dir/experiment.json and imports every exported run under
// dir/runs into the experiment named name, or the source name when empty.
func (i *ExperimentImporter) Import(ctx context.Context, name, dir string) (*ExperimentImportResult, error) {
	var export domain.ExperimentExport
	if err := readJSON(i.fs, path.Join(dir, domain.ExperimentFile), &export); err != nil {
		return nil, err
	}
	if name == "" {
		name = export.Experiment.Name
	}
	name += i.opts.NameSuffix
	if name == "" {
		return nil, domain.ErrEmptyExperimentName
	}

	dstID, err := getOrCreateExperiment(ctx, i.client, name, export.Experiment.Tags)
	if err != nil {
		return nil, err
	}

	runIDs := export.OKRuns
	if runIDs == nil {
		runIDs, err = i.listRunDirs(path.Join(dir, domain.RunsDir))
		if err != nil {
			return nil, err
		}
	}

	results := workerpool.Map(ctx, i.pool, runIDs, func(ctx context.Context, runID string) (*domain.RunMapping, error) {
		return i.runs.Import(ctx, dstID, path.Join(dir, domain.RunsDir, runID))
	})

	res := &ExperimentImportResult{
		SrcExperiment: export.Experiment.Ref(),
		DstExperiment: domain.ExperimentRef{ID: dstID, Name: name},
		Runs:          domain.Outcome{Entity: domain.EntityRuns, OK: []string{}, Failed: []string{}},
		Mappings:      []domain.RunMapping{},
	}
	for idx, r := range results {
		if r.Err != nil {
			log.WithError(r.Err).WithFields(log.Fields{
				"experiment": name,
				"run_id":     runIDs[idx],
			}).Warn("run import failed")
		} else {
			res.Mappings = append(res.Mappings, *r.Value)
		}
		res.Runs.Record(runIDs[idx], r.Err)
	}

	log.WithFields(log.Fields{
		"src_experiment_id": export.Experiment.ExperimentID,
		"dst_experiment_id": dstID,
		"name":              name,
		"ok_runs":           len(res.Runs.OK),
		"failed_runs":       len(res.Runs.Failed),
	}).Info("imported experiment")
	return res, nil
}

// ImportRun imports the single run exported to dir into the experiment
// called name, creating the experiment when missing.
func (i *ExperimentImporter) ImportRun(ctx context.Context, name, dir string) (*domain.RunMapping, error) {
	name += i.opts.NameSuffix
	if name == "" {
		return nil, domain.ErrEmptyExperimentName
	}
	dstID, err := getOrCreateExperiment(ctx, i.client, name, nil)
	if err != nil {
		return nil, err
	}
	return i.runs.Import(ctx, dstID, dir)
}

// getOrCreateExperiment returns the ID of the experiment called name,
// creating it when missing. Tags are applied in both cases.
func getOrCreateExperiment(ctx context.Context, client ports.ExperimentClient, name string, tags map[string]string) (string, error) {
	exp, err := client.GetExperimentByName(ctx, name)
	if err == nil {
		log.WithFields(log.Fields{
			"name":          name,
			"experiment_id": exp.ExperimentID,
		}).Debug("importing into existing experiment")
		for _, k := range sortedKeys(tags) {
			if err := client.SetExperimentTag(ctx, exp.ExperimentID, k, tags[k]); err != nil {
				return "", fmt.Errorf("set experiment tag %q: %w", k, err)
			}
		}
		return exp.ExperimentID, nil
	}
	if !errors.Is(err, domain.ErrResourceNotFound) {
		return "", fmt.Errorf("get experiment by name: %w", err)
	}

	id, err := client.CreateExperiment(ctx, name, tags)
	if err != nil {
		return "", fmt.Errorf("create experiment: %w", err)
	}
	return id, nil
}

func (i *ExperimentImporter) listRunDirs(dir string) ([]string, error) {
	ok, err := i.fs.Exists(dir)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	if !ok {
		return ids, nil
	}
	entries, err := i.fs.ListDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for _, e := range entries {
		if e.IsDir {
			ids = append(ids, e.Name)
		}
	}
	return ids, nil
}
