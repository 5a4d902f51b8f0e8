package mlflow

import (
	"context"
	"net/url"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

func (c *Client) SearchRuns(ctx context.Context, experimentIDs []string, filter string, page ports.Page) ([]*domain.Run, string, error) {
	req := map[string]interface{}{
		"experiment_ids": experimentIDs,
		"run_view_type":  viewTypeActiveOnly,
		"max_results":    page.MaxResults,
	}
	if filter != "" {
		req["filter"] = filter
	}
	if page.Token != "" {
		req["page_token"] = page.Token
	}

	var resp struct {
		Runs          []runJSON `json:"runs"`
		NextPageToken string    `json:"next_page_token"`
	}
	if err := c.post(ctx, "/runs/search", req, &resp); err != nil {
		return nil, "", err
	}

	runs := make([]*domain.Run, 0, len(resp.Runs))
	for i := range resp.Runs {
		runs = append(runs, resp.Runs[i].toDomain())
	}
	return runs, resp.NextPageToken, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var resp struct {
		Run runJSON `json:"run"`
	}
	if err := c.get(ctx, "/runs/get", url.Values{"run_id": {runID}}, &resp); err != nil {
		return nil, err
	}
	run := resp.Run.toDomain()
	c.artifactRoots.Store(run.Info.RunID, run.Info.ArtifactURI)
	return run, nil
}

// GetMetricHistory returns every logged value of one metric.
func (c *Client) GetMetricHistory(ctx context.Context, runID, key string) ([]domain.Metric, error) {
	var history []domain.Metric
	token := ""
	for {
		query := url.Values{"run_id": {runID}, "metric_key": {key}}
		if token != "" {
			query.Set("page_token", token)
		}
		var resp struct {
			Metrics       []metricJSON `json:"metrics"`
			NextPageToken string       `json:"next_page_token"`
		}
		if err := c.get(ctx, "/metrics/get-history", query, &resp); err != nil {
			return nil, err
		}
		for _, m := range resp.Metrics {
			history = append(history, toMetric(m))
		}
		if resp.NextPageToken == "" {
			return history, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) CreateRun(ctx context.Context, in domain.CreateRunRequest) (*domain.Run, error) {
	req := struct {
		ExperimentID string     `json:"experiment_id"`
		UserID       string     `json:"user_id,omitempty"`
		RunName      string     `json:"run_name,omitempty"`
		StartTime    int64      `json:"start_time,omitempty"`
		Tags         []keyValue `json:"tags,omitempty"`
	}{
		ExperimentID: in.ExperimentID,
		UserID:       in.UserID,
		RunName:      in.RunName,
		StartTime:    in.StartTime,
		Tags:         fromMap(in.Tags),
	}

	var resp struct {
		Run runJSON `json:"run"`
	}
	if err := c.post(ctx, "/runs/create", req, &resp); err != nil {
		return nil, err
	}
	run := resp.Run.toDomain()
	c.artifactRoots.Store(run.Info.RunID, run.Info.ArtifactURI)
	return run, nil
}

func (c *Client) LogBatch(ctx context.Context, runID string, metrics []domain.Metric, params, tags map[string]string) error {
	req := struct {
		RunID   string       `json:"run_id"`
		Metrics []metricJSON `json:"metrics,omitempty"`
		Params  []keyValue   `json:"params,omitempty"`
		Tags    []keyValue   `json:"tags,omitempty"`
	}{
		RunID:  runID,
		Params: fromMap(params),
		Tags:   fromMap(tags),
	}
	for _, m := range metrics {
		req.Metrics = append(req.Metrics, fromMetric(m))
	}
	return c.post(ctx, "/runs/log-batch", req, nil)
}

func (c *Client) UpdateRun(ctx context.Context, runID string, status domain.RunStatus, endTime int64) error {
	req := struct {
		RunID   string `json:"run_id"`
		Status  string `json:"status"`
		EndTime int64  `json:"end_time,omitempty"`
	}{RunID: runID, Status: string(status), EndTime: endTime}
	return c.post(ctx, "/runs/update", req, nil)
}
