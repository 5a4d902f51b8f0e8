package mlflow

import (
	"context"
	"net/url"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

// Listing calls see active experiments and runs only.
const viewTypeActiveOnly = "ACTIVE_ONLY"

func (c *Client) SearchExperiments(ctx context.Context, page ports.Page) ([]*domain.Experiment, string, error) {
	req := map[string]interface{}{
		"max_results": page.MaxResults,
		"view_type":   viewTypeActiveOnly,
	}
	if page.Token != "" {
		req["page_token"] = page.Token
	}

	var resp struct {
		Experiments   []experimentJSON `json:"experiments"`
		NextPageToken string           `json:"next_page_token"`
	}
	if err := c.post(ctx, "/experiments/search", req, &resp); err != nil {
		return nil, "", err
	}

	exps := make([]*domain.Experiment, 0, len(resp.Experiments))
	for i := range resp.Experiments {
		exps = append(exps, resp.Experiments[i].toDomain())
	}
	return exps, resp.NextPageToken, nil
}

func (c *Client) GetExperiment(ctx context.Context, experimentID string) (*domain.Experiment, error) {
	var resp struct {
		Experiment experimentJSON `json:"experiment"`
	}
	if err := c.get(ctx, "/experiments/get", url.Values{"experiment_id": {experimentID}}, &resp); err != nil {
		return nil, err
	}
	return resp.Experiment.toDomain(), nil
}

func (c *Client) GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error) {
	var resp struct {
		Experiment experimentJSON `json:"experiment"`
	}
	if err := c.get(ctx, "/experiments/get-by-name", url.Values{"experiment_name": {name}}, &resp); err != nil {
		return nil, err
	}
	return resp.Experiment.toDomain(), nil
}

func (c *Client) CreateExperiment(ctx context.Context, name string, tags map[string]string) (string, error) {
	req := struct {
		Name string     `json:"name"`
		Tags []keyValue `json:"tags,omitempty"`
	}{Name: name, Tags: fromMap(tags)}

	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.post(ctx, "/experiments/create", req, &resp); err != nil {
		return "", err
	}
	return resp.ExperimentID, nil
}

func (c *Client) SetExperimentTag(ctx context.Context, experimentID, key, value string) error {
	req := map[string]string{
		"experiment_id": experimentID,
		"key":           key,
		"value":         value,
	}
	return c.post(ctx, "/experiments/set-experiment-tag", req, nil)
}
