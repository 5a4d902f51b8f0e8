package domain

import (
	"errors"
	"fmt"
)

// ============================================================================
// Tracking Server Errors
// ============================================================================

var (
	ErrResourceNotFound      = errors.New("resource not found")
	ErrResourceAlreadyExists = errors.New("resource already exists")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrInvalidParameter      = errors.New("invalid parameter value")
	ErrTrackingServer        = errors.New("tracking server error")
)

// ============================================================================
// Migration Errors
// ============================================================================

// Validation errors
var (
	ErrEmptyExperimentName = errors.New("experiment name is required")
	ErrEmptyModelName      = errors.New("model name is required")
	ErrEmptyRunID          = errors.New("run ID is required")
	ErrInvalidStage        = errors.New("invalid model version stage")
	ErrInvalidExportDir    = errors.New("directory does not contain an export")
)

// Unit errors
var (
	// ErrRunMappingMissing is returned when a model version references a run
	// that was never imported on the destination server.
	ErrRunMappingMissing = errors.New("backing run was not imported")
	ErrNotDispatched     = errors.New("unit was not dispatched")
	ErrWorkerPanic       = errors.New("worker panicked")
)

// Entity kinds used in EntityError.
const (
	KindExperiment = "experiment"
	KindRun        = "run"
	KindModel      = "registered model"
	KindVersion    = "model version"
)

// EntityError records the failure of one unit of work: a run, experiment,
// registered model or model version.
type EntityError struct {
	Kind string
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// NewEntityError wraps err for the given entity. A nil err yields nil.
func NewEntityError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	return &EntityError{Kind: kind, ID: id, Err: err}
}

// FatalError aborts a whole bulk operation, e.g. when the output directory or
// manifest cannot be written.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the bulk operation.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
