package services

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"

	ports "mlflow-migrate/internal/core/ports/output"
	"mlflow-migrate/internal/core/workerpool"
)

var ErrInvalidPattern = errors.New("invalid artifact pattern")

// ArtifactMatch is one artifact path matching a find pattern.
type ArtifactMatch struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

// ArtifactFinder searches run artifact trees for paths matching a glob.
type ArtifactFinder struct {
	client   ports.TrackingClient
	pool     *workerpool.Pool
	pageSize int
}

func NewArtifactFinder(client ports.TrackingClient, pool *workerpool.Pool, pageSize int) *ArtifactFinder {
	return &ArtifactFinder{client: client, pool: pool, pageSize: pageSize}
}

// FindInExperiment searches every run of an experiment.
func (f *ArtifactFinder) FindInExperiment(ctx context.Context, experimentID, pattern string) ([]ArtifactMatch, error) {
	runs, err := listAllRuns(ctx, f.client, experimentID, f.pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.Info.RunID)
	}
	return f.Find(ctx, ids, pattern)
}

// Find returns the artifacts of runIDs whose full path or base name matches
// pattern, e.g. "**/MLmodel" or "*.pkl". Runs that cannot be listed are
// logged and skipped.
func (f *ArtifactFinder) Find(ctx context.Context, runIDs []string, pattern string) ([]ArtifactMatch, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	results := workerpool.Map(ctx, f.pool, runIDs, func(ctx context.Context, runID string) ([]ArtifactMatch, error) {
		var matches []ArtifactMatch
		err := f.walk(ctx, runID, "", func(p string) {
			if match(pattern, p) {
				matches = append(matches, ArtifactMatch{RunID: runID, Path: p})
			}
		})
		return matches, err
	})

	matches := []ArtifactMatch{}
	for i, r := range results {
		if r.Err != nil {
			log.WithError(r.Err).WithField("run_id", runIDs[i]).Warn("failed to list artifacts")
			continue
		}
		matches = append(matches, r.Value...)
	}
	return matches, nil
}

func (f *ArtifactFinder) walk(ctx context.Context, runID, dir string, visit func(string)) error {
	files, err := f.client.ListArtifacts(ctx, runID, dir)
	if err != nil {
		return fmt.Errorf("list artifacts %q: %w", dir, err)
	}
	for _, fi := range files {
		visit(fi.Path)
		if fi.IsDir {
			if err := f.walk(ctx, runID, fi.Path, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func match(pattern, p string) bool {
	if ok, _ := doublestar.Match(pattern, p); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, path.Base(p))
	return ok
}
