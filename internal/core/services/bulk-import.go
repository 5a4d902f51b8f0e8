package services

import (
	"context"
	"path"
	"sort"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/workerpool"
)

type BulkImportOptions struct {
	// ExperimentNameSuffix is appended to every imported experiment name.
	ExperimentNameSuffix string
	// DeleteModel deletes same-named registered models before import.
	DeleteModel        bool
	UseSrcUserID       bool
	ImportMetadataTags bool
	UseThreads         bool
}

// BulkImporter imports a bulk export directory: experiments first, then the
// models whose versions point at the imported runs.
type BulkImporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	repo   ports.ManifestRepository
	opts   BulkImportOptions

	pool        *workerpool.Pool
	experiments *ExperimentImporter
	models      *ModelImporter
}

// NewBulkImporter wires the importers. fs is the input directory; repo may be
// nil when manifest history is disabled.
func NewBulkImporter(client ports.TrackingClient, fs ports.Filesystem, repo ports.ManifestRepository, opts BulkImportOptions) *BulkImporter {
	pool := workerpool.ForThreads(opts.UseThreads)
	runs := NewRunImporter(client, fs, RunImportOptions{
		UseSrcUserID:       opts.UseSrcUserID,
		ImportMetadataTags: opts.ImportMetadataTags,
	})
	return &BulkImporter{
		client:      client,
		fs:          fs,
		repo:        repo,
		opts:        opts,
		pool:        pool,
		experiments: NewExperimentImporter(client, fs, runs, pool, ExperimentImportOptions{NameSuffix: opts.ExperimentNameSuffix}),
		models:      NewModelImporter(client, fs, runs, ModelImportOptions{DeleteModel: opts.DeleteModel}),
	}
}

// ImportExperiments imports every experiment under <input>/experiments and
// returns the manifest together with the source -> destination run mapping.
func (b *BulkImporter) ImportExperiments(ctx context.Context) (*domain.Manifest, domain.RunIDMap, error) {
	op := b.start(OpImportExperiments)
	m, runMap, err := b.importExperiments(ctx, op)
	if err != nil {
		return nil, nil, err
	}
	m = op.root(m)
	recordManifest(ctx, b.repo, m)
	return m, runMap, nil
}

// ImportModels imports the experiments phase and then every model under
// <input>/models. A version whose run was not imported fails on its own.
func (b *BulkImporter) ImportModels(ctx context.Context) (*domain.Manifest, error) {
	return b.importAll(ctx, OpImportModels)
}

// ImportAll imports the output of export-all.
func (b *BulkImporter) ImportAll(ctx context.Context) (*domain.Manifest, error) {
	return b.importAll(ctx, OpImportAll)
}

func (b *BulkImporter) start(name string) *operation {
	op := newOperation(name, b.client.TrackingURI())
	op.log.WithField("input_dir", b.fs.Root()).Info("starting bulk import")
	return op
}

func (b *BulkImporter) importAll(ctx context.Context, name string) (*domain.Manifest, error) {
	op := b.start(name)

	experiments, runMap, err := b.importExperiments(ctx, op)
	if err != nil {
		return nil, err
	}
	// Models are only imported once every run has been imported and runMap
	// is complete.
	models, err := b.importModels(ctx, op, runMap)
	if err != nil {
		return nil, err
	}

	m := op.root(models, experiments)
	recordManifest(ctx, b.repo, m)
	return m, nil
}

func (b *BulkImporter) importExperiments(ctx context.Context, op *operation) (*domain.Manifest, domain.RunIDMap, error) {
	m := op.phase(domain.EntityExperiments)
	runs := m.Child(domain.EntityRuns)

	ids, err := b.exportedDirs(domain.ExperimentsDir, domain.ExperimentFile)
	if err != nil {
		return nil, nil, err
	}

	results := workerpool.Map(ctx, workerpool.New(1), ids, func(ctx context.Context, id string) (*ExperimentImportResult, error) {
		return b.experiments.Import(ctx, "", path.Join(domain.ExperimentsDir, id))
	})

	groups := make([][]domain.RunMapping, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			op.log.WithError(r.Err).WithField("experiment", ids[i]).Warn("experiment import failed")
		}
		m.Record(ids[i], domain.NewEntityError(domain.KindExperiment, ids[i], r.Err))
		if r.Value != nil {
			runs.OK = append(runs.OK, r.Value.Runs.OK...)
			runs.Failed = append(runs.Failed, r.Value.Runs.Failed...)
			groups = append(groups, r.Value.Mappings)
		}
	}

	op.done(m)
	return m, domain.MergeRunMappings(groups...), nil
}

func (b *BulkImporter) importModels(ctx context.Context, op *operation, runMap domain.RunIDMap) (*domain.Manifest, error) {
	m := op.phase(domain.EntityModels)
	versions := m.Child(domain.EntityVersions)

	names, err := b.exportedDirs(domain.ModelsDir, domain.ModelFile)
	if err != nil {
		return nil, err
	}

	results := workerpool.Map(ctx, b.pool, names, func(ctx context.Context, name string) (*ModelImportResult, error) {
		return b.models.Import(ctx, "", path.Join(domain.ModelsDir, name), runMap)
	})

	for i, r := range results {
		if r.Err != nil {
			op.log.WithError(r.Err).WithField("model", names[i]).Warn("model import failed")
		}
		m.Record(names[i], domain.NewEntityError(domain.KindModel, names[i], r.Err))
		if r.Value != nil {
			versions.OK = append(versions.OK, r.Value.Versions.OK...)
			versions.Failed = append(versions.Failed, r.Value.Versions.Failed...)
		}
	}

	op.done(m)
	return m, nil
}

// exportedDirs lists the children of dir that contain file, sorted by name.
// A missing dir yields no entries.
func (b *BulkImporter) exportedDirs(dir, file string) ([]string, error) {
	ok, err := b.fs.Exists(dir)
	if err != nil {
		return nil, &domain.FatalError{Op: "read input directory", Err: err}
	}
	names := []string{}
	if !ok {
		return names, nil
	}

	entries, err := b.fs.ListDir(dir)
	if err != nil {
		return nil, &domain.FatalError{Op: "read input directory", Err: err}
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		found, err := b.fs.Exists(path.Join(dir, e.Name, file))
		if err != nil {
			return nil, &domain.FatalError{Op: "read input directory", Err: err}
		}
		if !found {
			log.WithFields(log.Fields{
				"dir":  path.Join(dir, e.Name),
				"file": file,
			}).Warn("skipping directory without export file")
			continue
		}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}
