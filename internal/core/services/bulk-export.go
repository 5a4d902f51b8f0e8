package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/workerpool"
)

type BulkExportOptions struct {
	// Stages restricts exported model versions. Empty exports every stage.
	Stages          domain.StageFilter
	NotebookFormats []string
	// ExportAllRuns exports every run of a mapped experiment instead of only
	// the runs backing the requested model versions.
	ExportAllRuns      bool
	ExportMetadataTags bool
	UseThreads         bool
}

// BulkExporter exports many experiments or models into one output directory
// and writes a manifest describing the outcome.
type BulkExporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	repo   ports.ManifestRepository
	opts   BulkExportOptions

	pool        *workerpool.Pool
	resolver    *Resolver
	mapper      *ModelMapper
	experiments *ExperimentExporter
	models      *ModelExporter
}

// NewBulkExporter wires the exporters. repo may be nil when manifest history
// is disabled.
func NewBulkExporter(client ports.TrackingClient, fs ports.Filesystem, repo ports.ManifestRepository, opts BulkExportOptions, pageSize int) *BulkExporter {
	pool := workerpool.ForThreads(opts.UseThreads)
	runs := NewRunExporter(client, fs, RunExportOptions{
		ExportMetadataTags: opts.ExportMetadataTags,
		NotebookFormats:    opts.NotebookFormats,
	})
	return &BulkExporter{
		client:      client,
		fs:          fs,
		repo:        repo,
		opts:        opts,
		pool:        pool,
		resolver:    NewResolver(client, pageSize),
		mapper:      NewModelMapper(client, pool, pageSize),
		experiments: NewExperimentExporter(client, fs, runs, pool, pageSize),
		models:      NewModelExporter(client, fs, runs, ModelExportOptions{Stages: opts.Stages}, pageSize),
	}
}

// ExportExperiments exports the selected experiments with all their runs.
func (b *BulkExporter) ExportExperiments(ctx context.Context, sel domain.Selector) (*domain.Manifest, error) {
	op, err := b.start(OpExportExperiments)
	if err != nil {
		return nil, err
	}

	ids, err := b.resolver.ResolveExperiments(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("resolve experiments: %w", err)
	}

	m := b.exportExperiments(ctx, op, dedupe(ids), nil)
	m = op.root(m)
	if err := writeManifest(b.fs, "", m); err != nil {
		return nil, err
	}
	recordManifest(ctx, b.repo, m)
	return m, nil
}

// ExportModels exports the selected models together with the experiments
// owning their runs. Each experiment is exported once however many versions
// reference it.
func (b *BulkExporter) ExportModels(ctx context.Context, sel domain.Selector) (*domain.Manifest, error) {
	op, err := b.start(OpExportModels)
	if err != nil {
		return nil, err
	}

	names, err := b.resolver.ResolveModels(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("resolve models: %w", err)
	}
	names = dedupe(names)

	mapping := b.mapper.ExperimentsRunsOfModels(ctx, names, b.opts.Stages)
	var runsOf func(string) []string
	if !b.opts.ExportAllRuns {
		runsOf = mapping.Experiments.RunIDs
	}

	experiments := b.exportExperiments(ctx, op, mapping.Experiments.ExperimentIDs(), runsOf)
	return b.finish(ctx, op, experiments, names, mapping.FailedVersions())
}

// ExportAll exports every experiment with all runs, then every model.
func (b *BulkExporter) ExportAll(ctx context.Context) (*domain.Manifest, error) {
	op, err := b.start(OpExportAll)
	if err != nil {
		return nil, err
	}

	ids, err := b.resolver.ResolveExperiments(ctx, domain.AllSelector())
	if err != nil {
		return nil, fmt.Errorf("resolve experiments: %w", err)
	}
	experiments := b.exportExperiments(ctx, op, dedupe(ids), nil)

	names, err := b.resolver.ResolveModels(ctx, domain.AllSelector())
	if err != nil {
		return nil, fmt.Errorf("resolve models: %w", err)
	}
	return b.finish(ctx, op, experiments, dedupe(names), nil)
}

func (b *BulkExporter) start(name string) (*operation, error) {
	op := newOperation(name, b.client.TrackingURI())
	op.stages = b.opts.Stages.String()
	op.notebooks = strings.Join(b.opts.NotebookFormats, ",")

	if err := b.fs.MkdirAll(""); err != nil {
		return nil, &domain.FatalError{Op: "create output directory", Err: err}
	}
	op.log.WithField("output_dir", b.fs.Root()).Info("starting bulk export")
	return op, nil
}

// finish writes the experiments phase manifest, exports the models and
// writes the models and root manifests.
func (b *BulkExporter) finish(ctx context.Context, op *operation, experiments *domain.Manifest, names, failedVersions []string) (*domain.Manifest, error) {
	if err := writeManifest(b.fs, domain.ExperimentsDir, experiments); err != nil {
		return nil, err
	}

	models := b.exportModels(ctx, op, names, failedVersions)
	if err := writeManifest(b.fs, domain.ModelsDir, models); err != nil {
		return nil, err
	}

	m := op.root(models, experiments)
	if err := writeManifest(b.fs, "", m); err != nil {
		return nil, err
	}
	recordManifest(ctx, b.repo, m)
	return m, nil
}

// exportExperiments exports experiments one after another; the runs of each
// experiment go through the worker pool. runsOf selects the runs of an
// experiment, nil meaning all of them.
func (b *BulkExporter) exportExperiments(ctx context.Context, op *operation, ids []string, runsOf func(string) []string) *domain.Manifest {
	m := op.phase(domain.EntityExperiments)
	runs := m.Child(domain.EntityRuns)

	results := workerpool.Map(ctx, workerpool.New(1), ids, func(ctx context.Context, id string) (*ExperimentExportResult, error) {
		exp, err := b.experiments.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		var runIDs []string
		if runsOf != nil {
			runIDs = runsOf(exp.ExperimentID)
		}
		return b.experiments.Export(ctx, exp, runIDs, path.Join(domain.ExperimentsDir, exp.ExperimentID))
	})

	for i, r := range results {
		if r.Err != nil {
			op.log.WithError(r.Err).WithField("experiment", ids[i]).Warn("experiment export failed")
		}
		m.Record(ids[i], domain.NewEntityError(domain.KindExperiment, ids[i], r.Err))
		if r.Value != nil {
			runs.OK = append(runs.OK, r.Value.Runs.OK...)
			runs.Failed = append(runs.Failed, r.Value.Runs.Failed...)
		}
	}

	op.done(m)
	return m
}

// exportModels exports models on the worker pool. Versions whose backing run
// could not be mapped are reported as failed even though their metadata was
// written.
func (b *BulkExporter) exportModels(ctx context.Context, op *operation, names, failedVersions []string) *domain.Manifest {
	m := op.phase(domain.EntityModels)
	versions := m.Child(domain.EntityVersions)
	unmapped := sets.New(failedVersions...)

	results := workerpool.Map(ctx, b.pool, names, func(ctx context.Context, name string) (*ModelExportResult, error) {
		return b.models.Export(ctx, name, path.Join(domain.ModelsDir, name))
	})

	for i, r := range results {
		if r.Err != nil {
			op.log.WithError(r.Err).WithField("model", names[i]).Warn("model export failed")
		}
		m.Record(names[i], domain.NewEntityError(domain.KindModel, names[i], r.Err))
		if r.Value == nil {
			continue
		}
		for _, key := range r.Value.Versions.OK {
			if unmapped.Has(key) {
				versions.Failed = append(versions.Failed, key)
				continue
			}
			versions.OK = append(versions.OK, key)
		}
		versions.Failed = append(versions.Failed, r.Value.Versions.Failed...)
	}

	op.done(m)
	return m
}
