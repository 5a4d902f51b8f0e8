package services

import (
	"context"
	"fmt"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

type RunExportOptions struct {
	// ExportMetadataTags adds mlflow_export_import.metadata.* tags describing
	// the source of the run.
	ExportMetadataTags bool
	// NotebookFormats is echoed into manifests; notebook source export is
	// handled outside this tool.
	NotebookFormats []string
}

// RunExporter writes one run (metadata, full metric history and artifacts)
// into an export directory.
type RunExporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	opts   RunExportOptions
}

func NewRunExporter(client ports.TrackingClient, fs ports.Filesystem, opts RunExportOptions) *RunExporter {
	return &RunExporter{client: client, fs: fs, opts: opts}
}

// Export writes run.json and the artifact tree of runID under dir. The
// experiment name is only used for metadata tags and may be empty.
func (e *RunExporter) Export(ctx context.Context, runID, experimentName, dir string) (*domain.Run, error) {
	if runID == "" {
		return nil, domain.ErrEmptyRunID
	}

	run, err := e.client.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	metrics, err := e.metricHistories(ctx, run)
	if err != nil {
		return nil, err
	}

	tags := copyMap(run.Data.Tags)
	if e.opts.ExportMetadataTags {
		for k, v := range e.metadataTags(run, experimentName) {
			tags[k] = v
		}
	}

	export := domain.RunExport{
		ExportInfo: domain.NewExportInfo(e.client.TrackingURI()),
		Info:       run.Info,
		Params:     copyMap(run.Data.Params),
		Metrics:    metrics,
		Tags:       tags,
	}
	if err := writeJSON(e.fs, path.Join(dir, domain.RunFile), export); err != nil {
		return nil, err
	}

	n, err := e.exportArtifacts(ctx, runID, "", path.Join(dir, domain.ArtifactsDir))
	if err != nil {
		return nil, fmt.Errorf("export artifacts: %w", err)
	}

	log.WithFields(log.Fields{
		"run_id":    runID,
		"dir":       dir,
		"artifacts": n,
	}).Debug("exported run")
	return run, nil
}

func (e *RunExporter) metricHistories(ctx context.Context, run *domain.Run) (map[string][]domain.Metric, error) {
	metrics := make(map[string][]domain.Metric)
	for _, m := range run.Data.Metrics {
		if _, done := metrics[m.Key]; done {
			continue
		}
		history, err := e.client.GetMetricHistory(ctx, run.Info.RunID, m.Key)
		if err != nil {
			return nil, fmt.Errorf("get metric history %q: %w", m.Key, err)
		}
		metrics[m.Key] = history
	}
	return metrics, nil
}

func (e *RunExporter) metadataTags(run *domain.Run, experimentName string) map[string]string {
	tags := map[string]string{
		domain.MetadataTagPrefix + "run_id":        run.Info.RunID,
		domain.MetadataTagPrefix + "experiment_id": run.Info.ExperimentID,
		domain.MetadataTagPrefix + "tracking_uri":  e.client.TrackingURI(),
		domain.MetadataTagPrefix + "timestamp":     fmt.Sprintf("%d", time.Now().Unix()),
		domain.MetadataTagPrefix + "artifact_uri":  run.Info.ArtifactURI,
	}
	if experimentName != "" {
		tags[domain.MetadataTagPrefix+"experiment_name"] = experimentName
	}
	if run.Info.UserID != "" {
		tags[domain.MetadataTagPrefix+"user_id"] = run.Info.UserID
	}
	return tags
}

// exportArtifacts mirrors the artifact tree rooted at artifactPath into dir
// and returns the number of files written.
func (e *RunExporter) exportArtifacts(ctx context.Context, runID, artifactPath, dir string) (int, error) {
	files, err := e.client.ListArtifacts(ctx, runID, artifactPath)
	if err != nil {
		return 0, fmt.Errorf("list artifacts %q: %w", artifactPath, err)
	}

	count := 0
	for _, f := range files {
		if f.IsDir {
			n, err := e.exportArtifacts(ctx, runID, f.Path, dir)
			if err != nil {
				return count, err
			}
			count += n
			continue
		}

		data, err := e.client.DownloadArtifact(ctx, runID, f.Path)
		if err != nil {
			return count, fmt.Errorf("download %q: %w", f.Path, err)
		}
		target := path.Join(dir, f.Path)
		if err := e.fs.MkdirAll(path.Dir(target)); err != nil {
			return count, fmt.Errorf("create directory for %q: %w", f.Path, err)
		}
		if err := e.fs.WriteFile(target, data); err != nil {
			return count, fmt.Errorf("write %q: %w", f.Path, err)
		}
		count++
	}
	return count, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
