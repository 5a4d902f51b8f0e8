package domain

// RegisteredModel is a named, versioned pointer to runs' model artifacts.
type RegisteredModel struct {
	Name                 string            `json:"name"`
	Description          string            `json:"description,omitempty"`
	Tags                 map[string]string `json:"tags,omitempty"`
	CreationTimestamp    int64             `json:"creation_timestamp,omitempty"`
	LastUpdatedTimestamp int64             `json:"last_updated_timestamp,omitempty"`
	LatestVersions       []*ModelVersion   `json:"latest_versions,omitempty"`
}

// ModelRef identifies a registered model.
type ModelRef struct {
	Name string `json:"name"`
}
