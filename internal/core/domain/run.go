package domain

import "strings"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusScheduled RunStatus = "SCHEDULED"
	RunStatusFinished  RunStatus = "FINISHED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusKilled    RunStatus = "KILLED"
)

// Reserved tag keys the tracking server interprets.
const (
	TagUser    = "mlflow.user"
	TagRunName = "mlflow.runName"

	// MetadataTagPrefix marks tags added on export that describe the source
	// of a run. They are stripped on import unless explicitly requested.
	MetadataTagPrefix = "mlflow_export_import.metadata."
)

type RunInfo struct {
	RunID          string    `json:"run_id"`
	RunName        string    `json:"run_name,omitempty"`
	ExperimentID   string    `json:"experiment_id"`
	UserID         string    `json:"user_id,omitempty"`
	Status         RunStatus `json:"status"`
	StartTime      int64     `json:"start_time"`
	EndTime        int64     `json:"end_time,omitempty"`
	ArtifactURI    string    `json:"artifact_uri"`
	LifecycleStage string    `json:"lifecycle_stage,omitempty"`
}

type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type RunData struct {
	Params  map[string]string `json:"params"`
	Tags    map[string]string `json:"tags"`
	Metrics []Metric          `json:"metrics"`
}

// Run is one execution record with params, metrics, tags and artifacts.
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// RunRef identifies a run and the experiment that owns it.
type RunRef struct {
	RunID        string            `json:"run_id"`
	ExperimentID string            `json:"experiment_id"`
	Tags         map[string]string `json:"tags,omitempty"`
	ArtifactURI  string            `json:"artifact_uri"`
}

func (r *Run) Ref() RunRef {
	return RunRef{
		RunID:        r.Info.RunID,
		ExperimentID: r.Info.ExperimentID,
		Tags:         r.Data.Tags,
		ArtifactURI:  r.Info.ArtifactURI,
	}
}

// CreateRunRequest carries what the destination server needs to create a run.
type CreateRunRequest struct {
	ExperimentID string
	RunName      string
	UserID       string
	StartTime    int64
	Tags         map[string]string
}

// FileInfo is one entry of a run's artifact tree.
type FileInfo struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size,omitempty"`
}

// RunMapping links a source run to the run created for it on the destination.
type RunMapping struct {
	SrcRunID       string `json:"src_run_id"`
	DstRunID       string `json:"dst_run_id"`
	SrcArtifactURI string `json:"src_artifact_uri"`
	DstArtifactURI string `json:"dst_artifact_uri"`
}

// RunIDMap is the old run ID -> new run mapping produced by the experiments
// import phase. It is built once from per-worker results and only read after.
type RunIDMap map[string]RunMapping

// MergeRunMappings builds a RunIDMap from per-unit results.
func MergeRunMappings(groups ...[]RunMapping) RunIDMap {
	m := make(RunIDMap)
	for _, g := range groups {
		for _, rm := range g {
			m[rm.SrcRunID] = rm
		}
	}
	return m
}

// RewriteSource points a model version source at the imported run. Sources of
// the form runs:/<id>/path and <artifact_uri>/path are rewritten; anything
// else is returned unchanged.
func (rm RunMapping) RewriteSource(source string) string {
	runsPrefix := "runs:/" + rm.SrcRunID
	if strings.HasPrefix(source, runsPrefix) {
		return "runs:/" + rm.DstRunID + strings.TrimPrefix(source, runsPrefix)
	}
	if rm.SrcArtifactURI != "" && strings.HasPrefix(source, rm.SrcArtifactURI) {
		return rm.DstArtifactURI + strings.TrimPrefix(source, rm.SrcArtifactURI)
	}
	return source
}
