package domain

import (
	"sort"
	"strconv"
	"strings"
)

type Stage string

const (
	StageNone       Stage = "None"
	StageStaging    Stage = "Staging"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"
)

var knownStages = map[string]Stage{
	"none":       StageNone,
	"staging":    StageStaging,
	"production": StageProduction,
	"archived":   StageArchived,
}

// ParseStage accepts stage names case-insensitively.
func ParseStage(s string) (Stage, error) {
	st, ok := knownStages[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidStage
	}
	return st, nil
}

// StageFilter selects model versions by stage. An empty filter selects all.
type StageFilter map[Stage]struct{}

// ParseStages parses a comma separated stage list such as "production,staging".
func ParseStages(s string) (StageFilter, error) {
	f := StageFilter{}
	for _, tok := range strings.Split(s, ",") {
		if strings.TrimSpace(tok) == "" {
			continue
		}
		st, err := ParseStage(tok)
		if err != nil {
			return nil, err
		}
		f[st] = struct{}{}
	}
	return f, nil
}

func (f StageFilter) Matches(stage string) bool {
	if len(f) == 0 {
		return true
	}
	st, err := ParseStage(stage)
	if err != nil {
		return false
	}
	_, ok := f[st]
	return ok
}

func (f StageFilter) String() string {
	names := make([]string, 0, len(f))
	for st := range f {
		names = append(names, string(st))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ModelVersion is one immutable (model name, version) entry referencing a run.
type ModelVersion struct {
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	RunID             string            `json:"run_id"`
	Source            string            `json:"source"`
	CurrentStage      string            `json:"current_stage"`
	Description       string            `json:"description,omitempty"`
	Status            string            `json:"status,omitempty"`
	UserID            string            `json:"user_id,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
	CreationTimestamp int64             `json:"creation_timestamp,omitempty"`
}

// ModelVersionRef is the reference a version holds on its backing run.
type ModelVersionRef struct {
	ModelName string `json:"model_name"`
	Version   string `json:"version"`
	RunID     string `json:"run_id"`
	Stage     string `json:"stage"`
}

func (v *ModelVersion) Ref() ModelVersionRef {
	return ModelVersionRef{ModelName: v.Name, Version: v.Version, RunID: v.RunID, Stage: v.CurrentStage}
}

// Key renders the version as "name/version" for manifests and logs.
func (v *ModelVersion) Key() string {
	return v.Name + "/" + v.Version
}

// SortVersions orders versions by their numeric version, oldest first.
func SortVersions(versions []*ModelVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, errA := strconv.Atoi(versions[i].Version)
		b, errB := strconv.Atoi(versions[j].Version)
		if errA != nil || errB != nil {
			return versions[i].Version < versions[j].Version
		}
		return a < b
	})
}

// CreateModelVersionRequest carries what the registry needs to create a version.
type CreateModelVersionRequest struct {
	Name        string
	Source      string
	RunID       string
	Description string
	Tags        map[string]string
}
