package mlflow

import (
	"sort"
	"strconv"

	"mlflow-migrate/internal/core/domain"
)

// REST payloads. MLflow encodes tags and params as key/value lists.

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type experimentJSON struct {
	ExperimentID     string     `json:"experiment_id"`
	Name             string     `json:"name"`
	ArtifactLocation string     `json:"artifact_location,omitempty"`
	LifecycleStage   string     `json:"lifecycle_stage,omitempty"`
	LastUpdateTime   int64      `json:"last_update_time,omitempty"`
	CreationTime     int64      `json:"creation_time,omitempty"`
	Tags             []keyValue `json:"tags,omitempty"`
}

type runInfoJSON struct {
	RunID          string `json:"run_id"`
	RunName        string `json:"run_name,omitempty"`
	ExperimentID   string `json:"experiment_id"`
	UserID         string `json:"user_id,omitempty"`
	Status         string `json:"status"`
	StartTime      int64  `json:"start_time,omitempty"`
	EndTime        int64  `json:"end_time,omitempty"`
	ArtifactURI    string `json:"artifact_uri"`
	LifecycleStage string `json:"lifecycle_stage,omitempty"`
}

type metricJSON struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type runDataJSON struct {
	Metrics []metricJSON `json:"metrics,omitempty"`
	Params  []keyValue   `json:"params,omitempty"`
	Tags    []keyValue   `json:"tags,omitempty"`
}

type runJSON struct {
	Info runInfoJSON `json:"info"`
	Data runDataJSON `json:"data"`
}

type modelVersionJSON struct {
	Name              string     `json:"name"`
	Version           string     `json:"version"`
	CreationTimestamp int64      `json:"creation_timestamp,omitempty"`
	UserID            string     `json:"user_id,omitempty"`
	CurrentStage      string     `json:"current_stage,omitempty"`
	Description       string     `json:"description,omitempty"`
	Source            string     `json:"source,omitempty"`
	RunID             string     `json:"run_id,omitempty"`
	Status            string     `json:"status,omitempty"`
	Tags              []keyValue `json:"tags,omitempty"`
}

type registeredModelJSON struct {
	Name                 string             `json:"name"`
	CreationTimestamp    int64              `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp int64              `json:"last_updated_timestamp,omitempty"`
	Description          string             `json:"description,omitempty"`
	LatestVersions       []modelVersionJSON `json:"latest_versions,omitempty"`
	Tags                 []keyValue         `json:"tags,omitempty"`
}

type fileInfoJSON struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size,omitempty"`
}

func toMap(kvs []keyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

// fromMap renders a map as a key/value list sorted by key.
func fromMap(m map[string]string) []keyValue {
	kvs := make([]keyValue, 0, len(m))
	for k, v := range m {
		kvs = append(kvs, keyValue{Key: k, Value: v})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return kvs
}

func (e *experimentJSON) toDomain() *domain.Experiment {
	return &domain.Experiment{
		ExperimentID:     e.ExperimentID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
		Tags:             toMap(e.Tags),
		CreationTime:     e.CreationTime,
		LastUpdateTime:   e.LastUpdateTime,
	}
}

func toMetric(m metricJSON) domain.Metric {
	return domain.Metric{Key: m.Key, Value: m.Value, Timestamp: m.Timestamp, Step: m.Step}
}

func fromMetric(m domain.Metric) metricJSON {
	return metricJSON{Key: m.Key, Value: m.Value, Timestamp: m.Timestamp, Step: m.Step}
}

func (r *runJSON) toDomain() *domain.Run {
	metrics := make([]domain.Metric, 0, len(r.Data.Metrics))
	for _, m := range r.Data.Metrics {
		metrics = append(metrics, toMetric(m))
	}
	return &domain.Run{
		Info: domain.RunInfo{
			RunID:          r.Info.RunID,
			RunName:        r.Info.RunName,
			ExperimentID:   r.Info.ExperimentID,
			UserID:         r.Info.UserID,
			Status:         domain.RunStatus(r.Info.Status),
			StartTime:      r.Info.StartTime,
			EndTime:        r.Info.EndTime,
			ArtifactURI:    r.Info.ArtifactURI,
			LifecycleStage: r.Info.LifecycleStage,
		},
		Data: domain.RunData{
			Params:  toMap(r.Data.Params),
			Tags:    toMap(r.Data.Tags),
			Metrics: metrics,
		},
	}
}

func (v *modelVersionJSON) toDomain() *domain.ModelVersion {
	return &domain.ModelVersion{
		Name:              v.Name,
		Version:           v.Version,
		RunID:             v.RunID,
		Source:            v.Source,
		CurrentStage:      v.CurrentStage,
		Description:       v.Description,
		Status:            v.Status,
		UserID:            v.UserID,
		Tags:              toMap(v.Tags),
		CreationTimestamp: v.CreationTimestamp,
	}
}

func (m *registeredModelJSON) toDomain() *domain.RegisteredModel {
	latest := make([]*domain.ModelVersion, 0, len(m.LatestVersions))
	for i := range m.LatestVersions {
		latest = append(latest, m.LatestVersions[i].toDomain())
	}
	return &domain.RegisteredModel{
		Name:                 m.Name,
		Description:          m.Description,
		Tags:                 toMap(m.Tags),
		CreationTimestamp:    m.CreationTimestamp,
		LastUpdatedTimestamp: m.LastUpdatedTimestamp,
		LatestVersions:       latest,
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
