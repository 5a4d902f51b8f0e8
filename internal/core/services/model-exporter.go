package services

import (
	"context"
	"fmt"
	"path"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

type ModelExportOptions struct {
	Stages domain.StageFilter
	// ExportRun exports each version's backing run next to the version.
	// Bulk exports leave it off since runs are exported with their experiments.
	ExportRun bool
}

// ModelExportResult reports one exported registered model and its versions.
type ModelExportResult struct {
	Name     string
	Versions domain.Outcome
}

// ModelExporter writes a registered model and its versions.
type ModelExporter struct {
	client   ports.TrackingClient
	fs       ports.Filesystem
	runs     *RunExporter
	opts     ModelExportOptions
	pageSize int
}

func NewModelExporter(client ports.TrackingClient, fs ports.Filesystem, runs *RunExporter, opts ModelExportOptions, pageSize int) *ModelExporter {
	return &ModelExporter{client: client, fs: fs, runs: runs, opts: opts, pageSize: pageSize}
}

// Export writes model.json and versions/<version>/version.json under dir.
func (e *ModelExporter) Export(ctx context.Context, name, dir string) (*ModelExportResult, error) {
	if name == "" {
		return nil, domain.ErrEmptyModelName
	}

	model, err := e.client.GetRegisteredModel(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get registered model: %w", err)
	}

	versions, err := listAllVersions(ctx, e.client, name, e.pageSize)
	if err != nil {
		return nil, err
	}

	res := &ModelExportResult{
		Name:     name,
		Versions: domain.Outcome{Entity: domain.EntityVersions, OK: []string{}, Failed: []string{}},
	}
	exported := []string{}
	for _, v := range versions {
		if !e.opts.Stages.Matches(v.CurrentStage) {
			continue
		}
		err := e.exportVersion(ctx, v, path.Join(dir, domain.VersionsDir, v.Version))
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"model":   name,
				"version": v.Version,
			}).Warn("model version export failed")
		} else {
			exported = append(exported, v.Version)
		}
		res.Versions.Record(v.Key(), err)
	}

	// latest_versions is recomputed by the destination server
	model.LatestVersions = nil
	export := domain.ModelExport{
		ExportInfo:      domain.NewExportInfo(e.client.TrackingURI()),
		RegisteredModel: *model,
		Stages:          e.opts.Stages.String(),
		Versions:        exported,
		FailedVersions:  res.Versions.Failed,
	}
	if err := writeJSON(e.fs, path.Join(dir, domain.ModelFile), export); err != nil {
		return res, err
	}

	log.WithFields(log.Fields{
		"model":           name,
		"ok_versions":     len(res.Versions.OK),
		"failed_versions": len(res.Versions.Failed),
	}).Info("exported registered model")
	return res, nil
}

func (e *ModelExporter) exportVersion(ctx context.Context, v *domain.ModelVersion, dir string) error {
	export := domain.VersionExport{ModelVersion: *v}
	if run, err := e.client.GetRun(ctx, v.RunID); err == nil {
		export.RunArtifactURI = run.Info.ArtifactURI
	} else {
		log.WithError(err).WithField("run_id", v.RunID).Debug("backing run not available")
	}
	if e.opts.ExportRun {
		if _, err := e.runs.Export(ctx, v.RunID, "", path.Join(dir, domain.VersionRunDir)); err != nil {
			return domain.NewEntityError(domain.KindRun, v.RunID, err)
		}
		export.RunExported = true
	}
	return writeJSON(e.fs, path.Join(dir, domain.VersionFile), export)
}
