package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

// Log batch limits of the tracking server.
const (
	maxBatchMetrics = 1000
	maxBatchParams  = 100
	maxBatchTags    = 100
)

type RunImportOptions struct {
	// UseSrcUserID creates the run as the source user when the destination
	// server allows it.
	UseSrcUserID bool
	// ImportMetadataTags keeps mlflow_export_import.metadata.* tags.
	ImportMetadataTags bool
}

// RunImporter recreates an exported run on the destination server.
type RunImporter struct {
	client ports.TrackingClient
	fs     ports.Filesystem
	opts   RunImportOptions
}

func NewRunImporter(client ports.TrackingClient, fs ports.Filesystem, opts RunImportOptions) *RunImporter {
	return &RunImporter{client: client, fs: fs, opts: opts}
}

// Import creates a run from dir/run.json in experimentID, logs its data and
// uploads its artifacts.
func (i *RunImporter) Import(ctx context.Context, experimentID, dir string) (*domain.RunMapping, error) {
	var export domain.RunExport
	if err := readJSON(i.fs, path.Join(dir, domain.RunFile), &export); err != nil {
		return nil, err
	}
	if export.Info.RunID == "" {
		return nil, domain.ErrEmptyRunID
	}

	tags := i.importTags(export.Tags)
	run, err := i.createRun(ctx, experimentID, &export, tags)
	if err != nil {
		return nil, err
	}
	dstRunID := run.Info.RunID

	if err := i.logData(ctx, dstRunID, &export, tags); err != nil {
		i.markFailed(ctx, dstRunID)
		return nil, err
	}

	n, err := i.importArtifacts(ctx, dstRunID, path.Join(dir, domain.ArtifactsDir), "")
	if err != nil {
		i.markFailed(ctx, dstRunID)
		return nil, fmt.Errorf("import artifacts: %w", err)
	}

	status := export.Info.Status
	if status == "" || status == domain.RunStatusRunning || status == domain.RunStatusScheduled {
		status = domain.RunStatusFinished
	}
	if err := i.client.UpdateRun(ctx, dstRunID, status, export.Info.EndTime); err != nil {
		return nil, fmt.Errorf("update run: %w", err)
	}

	log.WithFields(log.Fields{
		"src_run_id": export.Info.RunID,
		"dst_run_id": dstRunID,
		"artifacts":  n,
	}).Debug("imported run")

	return &domain.RunMapping{
		SrcRunID:       export.Info.RunID,
		DstRunID:       dstRunID,
		SrcArtifactURI: export.Info.ArtifactURI,
		DstArtifactURI: run.Info.ArtifactURI,
	}, nil
}

func (i *RunImporter) importTags(src map[string]string) map[string]string {
	tags := make(map[string]string, len(src))
	for k, v := range src {
		if !i.opts.ImportMetadataTags && strings.HasPrefix(k, domain.MetadataTagPrefix) {
			continue
		}
		if !i.opts.UseSrcUserID && k == domain.TagUser {
			continue
		}
		tags[k] = v
	}
	return tags
}

// createRun falls back to the caller's identity when the server rejects the
// source user. The mlflow.user tag is dropped from tags in that case.
func (i *RunImporter) createRun(ctx context.Context, experimentID string, export *domain.RunExport, tags map[string]string) (*domain.Run, error) {
	req := domain.CreateRunRequest{
		ExperimentID: experimentID,
		RunName:      export.Info.RunName,
		StartTime:    export.Info.StartTime,
	}
	if name, ok := tags[domain.TagRunName]; ok && req.RunName == "" {
		req.RunName = name
	}
	if i.opts.UseSrcUserID {
		req.UserID = export.Info.UserID
	}

	run, err := i.client.CreateRun(ctx, req)
	if err != nil && req.UserID != "" &&
		(errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrInvalidParameter)) {
		log.WithError(err).WithField("user_id", req.UserID).Debug("cannot create run as source user, using caller")
		req.UserID = ""
		delete(tags, domain.TagUser)
		run, err = i.client.CreateRun(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (i *RunImporter) logData(ctx context.Context, runID string, export *domain.RunExport, tags map[string]string) error {
	var metrics []domain.Metric
	for _, key := range sortedKeys(export.Metrics) {
		metrics = append(metrics, export.Metrics[key]...)
	}
	params := toSortedPairs(export.Params)
	tagPairs := toSortedPairs(tags)

	for len(metrics) > 0 || len(params) > 0 || len(tagPairs) > 0 {
		var m []domain.Metric
		m, metrics = splitAt(metrics, maxBatchMetrics)
		var p, t []keyValue
		p, params = splitAt(params, maxBatchParams)
		t, tagPairs = splitAt(tagPairs, maxBatchTags)
		if err := i.client.LogBatch(ctx, runID, m, fromPairs(p), fromPairs(t)); err != nil {
			return fmt.Errorf("log batch: %w", err)
		}
	}
	return nil
}

func (i *RunImporter) importArtifacts(ctx context.Context, runID, dir, artifactPath string) (int, error) {
	local := path.Join(dir, artifactPath)
	ok, err := i.fs.Exists(local)
	if err != nil || !ok {
		return 0, err
	}
	entries, err := i.fs.ListDir(local)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		rel := path.Join(artifactPath, e.Name)
		if e.IsDir {
			n, err := i.importArtifacts(ctx, runID, dir, rel)
			if err != nil {
				return count, err
			}
			count += n
			continue
		}
		data, err := i.fs.ReadFile(path.Join(dir, rel))
		if err != nil {
			return count, fmt.Errorf("read %q: %w", rel, err)
		}
		if err := i.client.UploadArtifact(ctx, runID, rel, data); err != nil {
			return count, fmt.Errorf("upload %q: %w", rel, err)
		}
		count++
	}
	return count, nil
}

func (i *RunImporter) markFailed(ctx context.Context, runID string) {
	if err := i.client.UpdateRun(ctx, runID, domain.RunStatusFailed, 0); err != nil {
		log.WithError(err).WithField("run_id", runID).Warn("failed to mark partially imported run as failed")
	}
}

type keyValue struct {
	key, value string
}

func toSortedPairs(m map[string]string) []keyValue {
	pairs := make([]keyValue, 0, len(m))
	for _, k := range sortedKeys(m) {
		pairs = append(pairs, keyValue{k, m[k]})
	}
	return pairs
}

func fromPairs(pairs []keyValue) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.key] = p.value
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func splitAt[T any](s []T, n int) ([]T, []T) {
	if len(s) <= n {
		return s, nil
	}
	return s[:n], s[n:]
}
