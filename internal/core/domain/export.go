package domain

import "time"

// Export file names inside the export tree.
const (
	ExperimentFile  = "experiment.json"
	RunFile         = "run.json"
	ModelFile       = "model.json"
	VersionFile     = "version.json"
	ArtifactsDir    = "artifacts"
	RunsDir         = "runs"
	VersionsDir     = "versions"
	ExperimentsDir  = "experiments"
	ModelsDir       = "models"
	VersionRunDir   = "run"
	ExportTimestamp = time.RFC3339
)

// ExportInfo describes where and when an entity was exported.
type ExportInfo struct {
	ExportTime  string `json:"export_time"`
	TrackingURI string `json:"tracking_uri,omitempty"`
}

func NewExportInfo(trackingURI string) ExportInfo {
	return ExportInfo{ExportTime: time.Now().UTC().Format(ExportTimestamp), TrackingURI: trackingURI}
}

// RunExport is the content of run.json.
type RunExport struct {
	ExportInfo ExportInfo          `json:"export_info"`
	Info       RunInfo             `json:"info"`
	Params     map[string]string   `json:"params"`
	Metrics    map[string][]Metric `json:"metrics"`
	Tags       map[string]string   `json:"tags"`
}

// ExperimentExport is the content of experiment.json.
type ExperimentExport struct {
	ExportInfo ExportInfo `json:"export_info"`
	Experiment Experiment `json:"experiment"`
	OKRuns     []string   `json:"ok_runs"`
	FailedRuns []string   `json:"failed_runs"`
}

// ModelExport is the content of model.json.
type ModelExport struct {
	ExportInfo      ExportInfo      `json:"export_info"`
	RegisteredModel RegisteredModel `json:"registered_model"`
	Stages          string          `json:"stages"`
	Versions        []string        `json:"versions"`
	FailedVersions  []string        `json:"failed_versions"`
}

// VersionExport is the content of versions/<version>/version.json.
type VersionExport struct {
	ModelVersion ModelVersion `json:"model_version"`

	// RunArtifactURI is the artifact root of the backing run on the source.
	RunArtifactURI string `json:"run_artifact_uri,omitempty"`

	// RunExported is set when the backing run was exported next to the version.
	RunExported bool `json:"run_exported,omitempty"`
}
