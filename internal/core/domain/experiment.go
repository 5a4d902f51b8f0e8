package domain

// Experiment is a named container for runs on one tracking server.
type Experiment struct {
	ExperimentID     string            `json:"experiment_id"`
	Name             string            `json:"name"`
	ArtifactLocation string            `json:"artifact_location,omitempty"`
	LifecycleStage   string            `json:"lifecycle_stage,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	CreationTime     int64             `json:"creation_time,omitempty"`
	LastUpdateTime   int64             `json:"last_update_time,omitempty"`
}

// ExperimentRef identifies an experiment on the source server.
type ExperimentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *Experiment) Ref() ExperimentRef {
	return ExperimentRef{ID: e.ExperimentID, Name: e.Name}
}
