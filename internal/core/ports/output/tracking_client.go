package ports

import (
	"context"

	"mlflow-migrate/internal/core/domain"
)

// Page is a pagination request against the tracking server. An empty Token
// asks for the first page.
type Page struct {
	Token      string
	MaxResults int
}

// ExperimentClient defines the contract for experiment operations
type ExperimentClient interface {
	SearchExperiments(ctx context.Context, page Page) ([]*domain.Experiment, string, error)
	GetExperiment(ctx context.Context, experimentID string) (*domain.Experiment, error)
	GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error)
	CreateExperiment(ctx context.Context, name string, tags map[string]string) (string, error)
	SetExperimentTag(ctx context.Context, experimentID, key, value string) error
}

// RunClient defines the contract for run operations
type RunClient interface {
	SearchRuns(ctx context.Context, experimentIDs []string, filter string, page Page) ([]*domain.Run, string, error)
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	GetMetricHistory(ctx context.Context, runID, key string) ([]domain.Metric, error)
	CreateRun(ctx context.Context, req domain.CreateRunRequest) (*domain.Run, error)
	LogBatch(ctx context.Context, runID string, metrics []domain.Metric, params, tags map[string]string) error
	UpdateRun(ctx context.Context, runID string, status domain.RunStatus, endTime int64) error
}

// ArtifactClient defines the contract for run artifact transfer
type ArtifactClient interface {
	// ListArtifacts lists the direct children of path ("" is the artifact root).
	ListArtifacts(ctx context.Context, runID, path string) ([]domain.FileInfo, error)
	DownloadArtifact(ctx context.Context, runID, path string) ([]byte, error)
	UploadArtifact(ctx context.Context, runID, path string, data []byte) error
}

// RegistryClient defines the contract for model registry operations
type RegistryClient interface {
	SearchRegisteredModels(ctx context.Context, page Page) ([]*domain.RegisteredModel, string, error)
	GetRegisteredModel(ctx context.Context, name string) (*domain.RegisteredModel, error)
	CreateRegisteredModel(ctx context.Context, name, description string, tags map[string]string) error
	DeleteRegisteredModel(ctx context.Context, name string) error
	SearchModelVersions(ctx context.Context, modelName string, page Page) ([]*domain.ModelVersion, string, error)
	CreateModelVersion(ctx context.Context, req domain.CreateModelVersionRequest) (*domain.ModelVersion, error)
	TransitionModelVersionStage(ctx context.Context, name, version string, stage domain.Stage) error
}

// TrackingClient is the full tracking + registry surface of one MLflow server.
type TrackingClient interface {
	ExperimentClient
	RunClient
	ArtifactClient
	RegistryClient

	// TrackingURI identifies the server for manifests and metadata tags.
	TrackingURI() string
}
