package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

type ModelImportOptions struct {
	// DeleteModel deletes an existing registered model of the same name
	// before importing. This cannot be undone on the destination server.
	DeleteModel bool
}

// ModelImportResult reports one imported registered model.
type ModelImportResult struct {
	SrcName  string
	DstName  string
	Versions domain.Outcome
}

// ModelImporter recreates a registered model and its versions.
type ModelImporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	runs   *RunImporter
	opts   ModelImportOptions
}

func NewModelImporter(client ports.TrackingClient, fs ports.Filesystem, runs *RunImporter, opts ModelImportOptions) *ModelImporter {
	return &ModelImporter{client: client, fs: fs, runs: runs, opts: opts}
}

// Import creates the model exported in dir under name (the source name when
// empty). Each version is created against the run that runMap maps its
// source run to; versions without a mapping fail with ErrRunMappingMissing.
func (i *ModelImporter) Import(ctx context.Context, name, dir string, runMap domain.RunIDMap) (*ModelImportResult, error) {
	export, err := i.readModel(dir)
	if err != nil {
		return nil, err
	}
	return i.importModel(ctx, name, dir, export, func(_ context.Context, v *domain.VersionExport) (domain.RunMapping, error) {
		rm, ok := runMap[v.ModelVersion.RunID]
		if !ok {
			return domain.RunMapping{}, domain.ErrRunMappingMissing
		}
		return rm, nil
	})
}

// ImportWithRuns imports a model exported together with its backing runs.
// Each run is recreated in experimentName before its version is created.
func (i *ModelImporter) ImportWithRuns(ctx context.Context, name, dir, experimentName string) (*ModelImportResult, error) {
	if experimentName == "" {
		return nil, domain.ErrEmptyExperimentName
	}
	export, err := i.readModel(dir)
	if err != nil {
		return nil, err
	}
	experimentID, err := getOrCreateExperiment(ctx, i.client, experimentName, nil)
	if err != nil {
		return nil, err
	}
	return i.importModel(ctx, name, dir, export, func(ctx context.Context, v *domain.VersionExport) (domain.RunMapping, error) {
		if !v.RunExported {
			return domain.RunMapping{}, domain.ErrRunMappingMissing
		}
		runDir := path.Join(dir, domain.VersionsDir, v.ModelVersion.Version, domain.VersionRunDir)
		rm, err := i.runs.Import(ctx, experimentID, runDir)
		if err != nil {
			return domain.RunMapping{}, domain.NewEntityError(domain.KindRun, v.ModelVersion.RunID, err)
		}
		return *rm, nil
	})
}

func (i *ModelImporter) readModel(dir string) (*domain.ModelExport, error) {
	var export domain.ModelExport
	if err := readJSON(i.fs, path.Join(dir, domain.ModelFile), &export); err != nil {
		return nil, err
	}
	if export.RegisteredModel.Name == "" {
		return nil, domain.ErrEmptyModelName
	}
	return &export, nil
}

type runResolver func(ctx context.Context, v *domain.VersionExport) (domain.RunMapping, error)

func (i *ModelImporter) importModel(ctx context.Context, name, dir string, export *domain.ModelExport, resolve runResolver) (*ModelImportResult, error) {
	if name == "" {
		name = export.RegisteredModel.Name
	}
	if err := i.createModel(ctx, name, &export.RegisteredModel); err != nil {
		return nil, err
	}

	res := &ModelImportResult{
		SrcName:  export.RegisteredModel.Name,
		DstName:  name,
		Versions: domain.Outcome{Entity: domain.EntityVersions, OK: []string{}, Failed: []string{}},
	}

	// Versions are created one at a time so the destination assigns version
	// numbers in source order.
	for _, version := range export.Versions {
		key := export.RegisteredModel.Name + "/" + version
		err := i.importVersion(ctx, name, path.Join(dir, domain.VersionsDir, version), resolve)
		if err != nil {
			err = domain.NewEntityError(domain.KindVersion, key, err)
			log.WithError(err).WithField("model", name).Warn("model version import failed")
		}
		res.Versions.Record(key, err)
	}

	log.WithFields(log.Fields{
		"model":           name,
		"ok_versions":     len(res.Versions.OK),
		"failed_versions": len(res.Versions.Failed),
	}).Info("imported registered model")
	return res, nil
}

func (i *ModelImporter) createModel(ctx context.Context, name string, src *domain.RegisteredModel) error {
	if i.opts.DeleteModel {
		err := i.client.DeleteRegisteredModel(ctx, name)
		switch {
		case err == nil:
			log.WithField("model", name).Info("deleted existing registered model")
		case errors.Is(err, domain.ErrResourceNotFound):
		default:
			return fmt.Errorf("delete registered model: %w", err)
		}
	}

	err := i.client.CreateRegisteredModel(ctx, name, src.Description, src.Tags)
	if errors.Is(err, domain.ErrResourceAlreadyExists) {
		log.WithField("model", name).Debug("registered model already exists, adding versions")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create registered model: %w", err)
	}
	return nil
}

func (i *ModelImporter) importVersion(ctx context.Context, name, dir string, resolve runResolver) error {
	var v domain.VersionExport
	if err := readJSON(i.fs, path.Join(dir, domain.VersionFile), &v); err != nil {
		return err
	}

	rm, err := resolve(ctx, &v)
	if err != nil {
		return err
	}
	if rm.SrcArtifactURI == "" {
		rm.SrcArtifactURI = v.RunArtifactURI
	}

	created, err := i.client.CreateModelVersion(ctx, domain.CreateModelVersionRequest{
		Name:        name,
		Source:      rm.RewriteSource(v.ModelVersion.Source),
		RunID:       rm.DstRunID,
		Description: v.ModelVersion.Description,
		Tags:        v.ModelVersion.Tags,
	})
	if err != nil {
		return fmt.Errorf("create model version: %w", err)
	}

	stage, err := domain.ParseStage(v.ModelVersion.CurrentStage)
	if err != nil || stage == domain.StageNone {
		return nil
	}
	if err := i.client.TransitionModelVersionStage(ctx, name, created.Version, stage); err != nil {
		return fmt.Errorf("transition to %s: %w", stage, err)
	}
	return nil
}
