package testutil

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

var _ ports.TrackingClient = (*FakeTracking)(nil)

// LogBatchCall records one LogBatch request.
type LogBatchCall struct {
	RunID   string
	Metrics int
	Params  int
	Tags    int
}

// FakeTracking is an in-memory tracking server for service tests.
type FakeTracking struct {
	mu  sync.Mutex
	uri string

	experiments map[string]*domain.Experiment
	runs        map[string]*domain.Run
	histories   map[string]map[string][]domain.Metric
	artifacts   map[string]map[string][]byte
	models      map[string]*domain.RegisteredModel
	versions    map[string][]*domain.ModelVersion
	nextID      int

	// FailGetRun makes GetRun return ErrResourceNotFound for these run IDs.
	FailGetRun sets.Set[string]
	// FailListArtifacts makes ListArtifacts fail for these run IDs.
	FailListArtifacts sets.Set[string]
	// DenyUserID rejects CreateRun requests that set a user ID.
	DenyUserID bool

	CreatedRuns   []domain.CreateRunRequest
	LogBatchCalls []LogBatchCall
	DeletedModels []string
	Transitions   []string
}

func NewFakeTracking(uri string) *FakeTracking {
	return &FakeTracking{
		uri:               uri,
		experiments:       make(map[string]*domain.Experiment),
		runs:              make(map[string]*domain.Run),
		histories:         make(map[string]map[string][]domain.Metric),
		artifacts:         make(map[string]map[string][]byte),
		models:            make(map[string]*domain.RegisteredModel),
		versions:          make(map[string][]*domain.ModelVersion),
		FailGetRun:        sets.New[string](),
		FailListArtifacts: sets.New[string](),
	}
}

func (f *FakeTracking) TrackingURI() string {
	return f.uri
}

// ============================================================================
// Seeding
// ============================================================================

func (f *FakeTracking) AddExperiment(id, name string) *domain.Experiment {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp := &domain.Experiment{ExperimentID: id, Name: name, LifecycleStage: "active", Tags: map[string]string{}}
	f.experiments[id] = exp
	return exp
}

// AddRun adds a finished run with one param, one tag and a two step metric.
func (f *FakeTracking) AddRun(experimentID, runID string) *domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := &domain.Run{
		Info: domain.RunInfo{
			RunID:        runID,
			RunName:      "name-" + runID,
			ExperimentID: experimentID,
			UserID:       "alice",
			Status:       domain.RunStatusFinished,
			StartTime:    1000,
			EndTime:      2000,
			ArtifactURI:  fmt.Sprintf("mlflow-artifacts:/%s/%s/artifacts", experimentID, runID),
		},
		Data: domain.RunData{
			Params:  map[string]string{"alpha": "0.5"},
			Tags:    map[string]string{domain.TagUser: "alice", "team": "ml"},
			Metrics: []domain.Metric{{Key: "loss", Value: 0.1, Timestamp: 1500, Step: 1}},
		},
	}
	f.runs[runID] = run
	f.histories[runID] = map[string][]domain.Metric{
		"loss": {
			{Key: "loss", Value: 0.2, Timestamp: 1400, Step: 0},
			{Key: "loss", Value: 0.1, Timestamp: 1500, Step: 1},
		},
	}
	return run
}

func (f *FakeTracking) AddArtifact(runID, p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.artifacts[runID] == nil {
		f.artifacts[runID] = make(map[string][]byte)
	}
	f.artifacts[runID][p] = data
}

func (f *FakeTracking) AddModel(name string) *domain.RegisteredModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &domain.RegisteredModel{Name: name, Description: "model " + name, Tags: map[string]string{"owner": "ml"}}
	f.models[name] = m
	return m
}

// AddVersion registers the next version of model backed by runID.
func (f *FakeTracking) AddVersion(model, runID string, stage domain.Stage) *domain.ModelVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addVersion(model, runID, "runs:/"+runID+"/model", stage)
}

func (f *FakeTracking) addVersion(model, runID, source string, stage domain.Stage) *domain.ModelVersion {
	v := &domain.ModelVersion{
		Name:         model,
		Version:      strconv.Itoa(len(f.versions[model]) + 1),
		RunID:        runID,
		Source:       source,
		CurrentStage: string(stage),
		Status:       "READY",
	}
	f.versions[model] = append(f.versions[model], v)
	return v
}

// ============================================================================
// Inspection
// ============================================================================

func (f *FakeTracking) Run(runID string) *domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[runID]
}

// RunsOf returns the runs of an experiment sorted by ID.
func (f *FakeTracking) RunsOf(experimentID string) []*domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runsOf(experimentID)
}

func (f *FakeTracking) ExperimentByName(name string) *domain.Experiment {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.experiments {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (f *FakeTracking) Versions(model string) []*domain.ModelVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ModelVersion(nil), f.versions[model]...)
}

func (f *FakeTracking) Artifact(runID, p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.artifacts[runID][p]
	return data, ok
}

// ============================================================================
// Experiments
// ============================================================================

func (f *FakeTracking) SearchExperiments(_ context.Context, page ports.Page) ([]*domain.Experiment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := sortedKeys(f.experiments)
	exps := make([]*domain.Experiment, 0, len(ids))
	for _, id := range ids {
		exps = append(exps, f.experiments[id])
	}
	return paginate(exps, page)
}

func (f *FakeTracking) GetExperiment(_ context.Context, experimentID string) (*domain.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.experiments[experimentID]
	if !ok {
		return nil, fmt.Errorf("experiment %s: %w", experimentID, domain.ErrResourceNotFound)
	}
	return exp, nil
}

func (f *FakeTracking) GetExperimentByName(_ context.Context, name string) (*domain.Experiment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range sortedKeys(f.experiments) {
		if f.experiments[id].Name == name {
			return f.experiments[id], nil
		}
	}
	return nil, fmt.Errorf("experiment %q: %w", name, domain.ErrResourceNotFound)
}

func (f *FakeTracking) CreateExperiment(_ context.Context, name string, tags map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.experiments {
		if e.Name == name {
			return "", fmt.Errorf("experiment %q: %w", name, domain.ErrResourceAlreadyExists)
		}
	}
	id := f.newID("exp")
	f.experiments[id] = &domain.Experiment{ExperimentID: id, Name: name, Tags: copyTags(tags)}
	return id, nil
}

func (f *FakeTracking) SetExperimentTag(_ context.Context, experimentID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.experiments[experimentID]
	if !ok {
		return domain.ErrResourceNotFound
	}
	if exp.Tags == nil {
		exp.Tags = map[string]string{}
	}
	exp.Tags[key] = value
	return nil
}

// ============================================================================
// Runs
// ============================================================================

func (f *FakeTracking) SearchRuns(_ context.Context, experimentIDs []string, _ string, page ports.Page) ([]*domain.Run, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []*domain.Run
	for _, id := range experimentIDs {
		runs = append(runs, f.runsOf(id)...)
	}
	return paginate(runs, page)
}

func (f *FakeTracking) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok || f.FailGetRun.Has(runID) {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrResourceNotFound)
	}
	return run, nil
}

func (f *FakeTracking) GetMetricHistory(_ context.Context, runID, key string) ([]domain.Metric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[runID]; !ok {
		return nil, domain.ErrResourceNotFound
	}
	return append([]domain.Metric(nil), f.histories[runID][key]...), nil
}

func (f *FakeTracking) CreateRun(_ context.Context, req domain.CreateRunRequest) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreatedRuns = append(f.CreatedRuns, req)
	if req.UserID != "" && f.DenyUserID {
		return nil, fmt.Errorf("user_id %q: %w", req.UserID, domain.ErrPermissionDenied)
	}
	if _, ok := f.experiments[req.ExperimentID]; !ok {
		return nil, fmt.Errorf("experiment %s: %w", req.ExperimentID, domain.ErrResourceNotFound)
	}
	id := f.newID("run")
	run := &domain.Run{
		Info: domain.RunInfo{
			RunID:        id,
			RunName:      req.RunName,
			ExperimentID: req.ExperimentID,
			UserID:       req.UserID,
			Status:       domain.RunStatusRunning,
			StartTime:    req.StartTime,
			ArtifactURI:  fmt.Sprintf("mlflow-artifacts:/%s/%s/artifacts", req.ExperimentID, id),
		},
		Data: domain.RunData{Params: map[string]string{}, Tags: copyTags(req.Tags)},
	}
	f.runs[id] = run
	f.histories[id] = map[string][]domain.Metric{}
	return run, nil
}

func (f *FakeTracking) LogBatch(_ context.Context, runID string, metrics []domain.Metric, params, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogBatchCalls = append(f.LogBatchCalls, LogBatchCall{RunID: runID, Metrics: len(metrics), Params: len(params), Tags: len(tags)})
	if len(metrics) > 1000 || len(params) > 100 || len(tags) > 100 {
		return fmt.Errorf("batch too large: %w", domain.ErrInvalidParameter)
	}
	run, ok := f.runs[runID]
	if !ok {
		return domain.ErrResourceNotFound
	}
	for k, v := range params {
		run.Data.Params[k] = v
	}
	for k, v := range tags {
		run.Data.Tags[k] = v
	}
	for _, m := range metrics {
		f.histories[runID][m.Key] = append(f.histories[runID][m.Key], m)
	}
	return nil
}

func (f *FakeTracking) UpdateRun(_ context.Context, runID string, status domain.RunStatus, endTime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return domain.ErrResourceNotFound
	}
	run.Info.Status = status
	run.Info.EndTime = endTime
	return nil
}

// ============================================================================
// Artifacts
// ============================================================================

func (f *FakeTracking) ListArtifacts(_ context.Context, runID, dir string) ([]domain.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailListArtifacts.Has(runID) {
		return nil, fmt.Errorf("list artifacts of %s: %w", runID, domain.ErrTrackingServer)
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	children := map[string]domain.FileInfo{}
	for p, data := range f.artifacts[runID] {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			child := path.Join(dir, rest[:i])
			children[child] = domain.FileInfo{Path: child, IsDir: true}
			continue
		}
		children[p] = domain.FileInfo{Path: p, FileSize: int64(len(data))}
	}

	files := make([]domain.FileInfo, 0, len(children))
	for _, k := range sortedKeys(children) {
		files = append(files, children[k])
	}
	return files, nil
}

func (f *FakeTracking) DownloadArtifact(_ context.Context, runID, p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.artifacts[runID][p]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", p, domain.ErrResourceNotFound)
	}
	return data, nil
}

func (f *FakeTracking) UploadArtifact(_ context.Context, runID, p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[runID]; !ok {
		return domain.ErrResourceNotFound
	}
	if f.artifacts[runID] == nil {
		f.artifacts[runID] = make(map[string][]byte)
	}
	f.artifacts[runID][p] = data
	return nil
}

// ============================================================================
// Registry
// ============================================================================

func (f *FakeTracking) SearchRegisteredModels(_ context.Context, page ports.Page) ([]*domain.RegisteredModel, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := sortedKeys(f.models)
	models := make([]*domain.RegisteredModel, 0, len(names))
	for _, n := range names {
		models = append(models, f.withLatest(f.models[n]))
	}
	return paginate(models, page)
}

func (f *FakeTracking) GetRegisteredModel(_ context.Context, name string) (*domain.RegisteredModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.models[name]
	if !ok {
		return nil, fmt.Errorf("registered model %q: %w", name, domain.ErrResourceNotFound)
	}
	return f.withLatest(m), nil
}

func (f *FakeTracking) CreateRegisteredModel(_ context.Context, name, description string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.models[name]; ok {
		return fmt.Errorf("registered model %q: %w", name, domain.ErrResourceAlreadyExists)
	}
	f.models[name] = &domain.RegisteredModel{Name: name, Description: description, Tags: copyTags(tags)}
	return nil
}

func (f *FakeTracking) DeleteRegisteredModel(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.models[name]; !ok {
		return fmt.Errorf("registered model %q: %w", name, domain.ErrResourceNotFound)
	}
	delete(f.models, name)
	delete(f.versions, name)
	f.DeletedModels = append(f.DeletedModels, name)
	return nil
}

func (f *FakeTracking) SearchModelVersions(_ context.Context, modelName string, page ports.Page) ([]*domain.ModelVersion, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(append([]*domain.ModelVersion(nil), f.versions[modelName]...), page)
}

func (f *FakeTracking) CreateModelVersion(_ context.Context, req domain.CreateModelVersionRequest) (*domain.ModelVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.models[req.Name]; !ok {
		return nil, fmt.Errorf("registered model %q: %w", req.Name, domain.ErrResourceNotFound)
	}
	if _, ok := f.runs[req.RunID]; !ok {
		return nil, fmt.Errorf("run %s: %w", req.RunID, domain.ErrResourceNotFound)
	}
	v := f.addVersion(req.Name, req.RunID, req.Source, domain.StageNone)
	v.Description = req.Description
	v.Tags = copyTags(req.Tags)
	return v, nil
}

func (f *FakeTracking) TransitionModelVersionStage(_ context.Context, name, version string, stage domain.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions[name] {
		if v.Version == version {
			v.CurrentStage = string(stage)
			f.Transitions = append(f.Transitions, name+"/"+version+"="+string(stage))
			return nil
		}
	}
	return fmt.Errorf("model version %s/%s: %w", name, version, domain.ErrResourceNotFound)
}

// ============================================================================
// Helpers
// ============================================================================

func (f *FakeTracking) runsOf(experimentID string) []*domain.Run {
	var runs []*domain.Run
	for _, id := range sortedKeys(f.runs) {
		if f.runs[id].Info.ExperimentID == experimentID {
			runs = append(runs, f.runs[id])
		}
	}
	return runs
}

// withLatest returns a copy of m with the latest version of each stage.
func (f *FakeTracking) withLatest(m *domain.RegisteredModel) *domain.RegisteredModel {
	out := *m
	latest := map[string]*domain.ModelVersion{}
	for _, v := range f.versions[m.Name] {
		latest[v.CurrentStage] = v
	}
	out.LatestVersions = nil
	for _, stage := range sortedKeys(latest) {
		out.LatestVersions = append(out.LatestVersions, latest[stage])
	}
	return &out
}

func (f *FakeTracking) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-new-%d", prefix, f.nextID)
}

// paginate serves items in pages; the token is the offset of the next page.
func paginate[T any](items []T, page ports.Page) ([]T, string, error) {
	offset := 0
	if page.Token != "" {
		n, err := strconv.Atoi(page.Token)
		if err != nil {
			return nil, "", fmt.Errorf("page token %q: %w", page.Token, domain.ErrInvalidParameter)
		}
		offset = n
	}
	if offset > len(items) {
		offset = len(items)
	}
	size := page.MaxResults
	if size <= 0 {
		size = len(items)
	}
	end := offset + size
	if end >= len(items) {
		return items[offset:], "", nil
	}
	return items[offset:end], strconv.Itoa(end), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyTags(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
