package services

import (
	"context"
	"path"

	log "github.com/sirupsen/logrus"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

// writeManifest writes m to dir/manifest.json. Any failure is fatal for the
// bulk operation.
func writeManifest(fs ports.Filesystem, dir string, m *domain.Manifest) error {
	p := path.Join(dir, domain.ManifestFile)
	if ok, err := fs.Exists(p); err == nil && ok {
		log.WithField("path", p).Warn("overwriting existing manifest")
	}

	data, err := m.Encode()
	if err != nil {
		return &domain.FatalError{Op: "encode manifest", Err: err}
	}
	if err := fs.MkdirAll(dir); err != nil {
		return &domain.FatalError{Op: "create output directory", Err: err}
	}
	if err := fs.WriteFile(p, data); err != nil {
		return &domain.FatalError{Op: "write manifest", Err: err}
	}
	return nil
}

// recordManifest stores m in the manifest history when a repository is
// configured. Store errors never fail the operation.
func recordManifest(ctx context.Context, repo ports.ManifestRepository, m *domain.Manifest) {
	if repo == nil {
		return
	}
	rec, err := repo.Create(ctx, m)
	if err != nil {
		log.WithError(err).WithField("operation_id", m.OperationID).Warn("failed to record manifest")
		return
	}
	log.WithFields(log.Fields{
		"operation_id": m.OperationID,
		"record_id":    rec.ID,
	}).Debug("recorded manifest")
}
