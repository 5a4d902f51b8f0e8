package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

// MockManifestRepo is a mock of ManifestRepository.
type MockManifestRepo struct {
	mock.Mock
}

func (m *MockManifestRepo) Create(ctx context.Context, manifest *domain.Manifest) (*ports.ManifestRecord, error) {
	args := m.Called(ctx, manifest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ManifestRecord), args.Error(1)
}

func (m *MockManifestRepo) GetByID(ctx context.Context, id uuid.UUID) (*ports.ManifestRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ManifestRecord), args.Error(1)
}

func (m *MockManifestRepo) List(ctx context.Context, filter ports.ManifestListFilter) ([]*ports.ManifestRecord, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*ports.ManifestRecord), args.Int(1), args.Error(2)
}

// MockFilesystem is a mock of Filesystem.
type MockFilesystem struct {
	mock.Mock
}

func (m *MockFilesystem) MkdirAll(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockFilesystem) WriteFile(path string, data []byte) error {
	args := m.Called(path, data)
	return args.Error(0)
}

func (m *MockFilesystem) ReadFile(path string) ([]byte, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFilesystem) ListDir(path string) ([]ports.Entry, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Entry), args.Error(1)
}

func (m *MockFilesystem) Exists(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *MockFilesystem) Root() string {
	args := m.Called()
	return args.String(0)
}
