package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mlflow-migrate/internal/core/domain"
)

// ManifestRecord is one persisted bulk operation outcome.
type ManifestRecord struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Operation   string
	Entity      string
	Duration    float64
	OKCount     int
	FailedCount int
	Body        []byte
}

type ManifestListFilter struct {
	Operation string
	Limit     int
	Offset    int
}

// ManifestRepository keeps the history of completed bulk operations.
type ManifestRepository interface {
	Create(ctx context.Context, manifest *domain.Manifest) (*ManifestRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ManifestRecord, error)
	List(ctx context.Context, filter ManifestListFilter) ([]*ManifestRecord, int, error)
}
