package mlflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mlflow-migrate/internal/core/domain"
	ports "mlflow-migrate/internal/core/ports/output"
)

func (c *Client) SearchRegisteredModels(ctx context.Context, page ports.Page) ([]*domain.RegisteredModel, string, error) {
	query := url.Values{"max_results": {itoa(page.MaxResults)}}
	if page.Token != "" {
		query.Set("page_token", page.Token)
	}

	var resp struct {
		RegisteredModels []registeredModelJSON `json:"registered_models"`
		NextPageToken    string                `json:"next_page_token"`
	}
	if err := c.get(ctx, "/registered-models/search", query, &resp); err != nil {
		return nil, "", err
	}

	models := make([]*domain.RegisteredModel, 0, len(resp.RegisteredModels))
	for i := range resp.RegisteredModels {
		models = append(models, resp.RegisteredModels[i].toDomain())
	}
	return models, resp.NextPageToken, nil
}

func (c *Client) GetRegisteredModel(ctx context.Context, name string) (*domain.RegisteredModel, error) {
	var resp struct {
		RegisteredModel registeredModelJSON `json:"registered_model"`
	}
	if err := c.get(ctx, "/registered-models/get", url.Values{"name": {name}}, &resp); err != nil {
		return nil, err
	}
	return resp.RegisteredModel.toDomain(), nil
}

func (c *Client) CreateRegisteredModel(ctx context.Context, name, description string, tags map[string]string) error {
	req := struct {
		Name        string     `json:"name"`
		Description string     `json:"description,omitempty"`
		Tags        []keyValue `json:"tags,omitempty"`
	}{Name: name, Description: description, Tags: fromMap(tags)}
	return c.post(ctx, "/registered-models/create", req, nil)
}

func (c *Client) DeleteRegisteredModel(ctx context.Context, name string) error {
	return c.send(ctx, http.MethodDelete, "/registered-models/delete", map[string]string{"name": name}, nil)
}

// SearchModelVersions lists the versions of one model.
func (c *Client) SearchModelVersions(ctx context.Context, modelName string, page ports.Page) ([]*domain.ModelVersion, string, error) {
	query := url.Values{
		"filter":      {fmt.Sprintf("name='%s'", strings.ReplaceAll(modelName, "'", "\\'"))},
		"max_results": {itoa(page.MaxResults)},
	}
	if page.Token != "" {
		query.Set("page_token", page.Token)
	}

	var resp struct {
		ModelVersions []modelVersionJSON `json:"model_versions"`
		NextPageToken string             `json:"next_page_token"`
	}
	if err := c.get(ctx, "/model-versions/search", query, &resp); err != nil {
		return nil, "", err
	}

	versions := make([]*domain.ModelVersion, 0, len(resp.ModelVersions))
	for i := range resp.ModelVersions {
		versions = append(versions, resp.ModelVersions[i].toDomain())
	}
	return versions, resp.NextPageToken, nil
}

func (c *Client) CreateModelVersion(ctx context.Context, in domain.CreateModelVersionRequest) (*domain.ModelVersion, error) {
	req := struct {
		Name        string     `json:"name"`
		Source      string     `json:"source"`
		RunID       string     `json:"run_id,omitempty"`
		Description string     `json:"description,omitempty"`
		Tags        []keyValue `json:"tags,omitempty"`
	}{
		Name:        in.Name,
		Source:      in.Source,
		RunID:       in.RunID,
		Description: in.Description,
		Tags:        fromMap(in.Tags),
	}

	var resp struct {
		ModelVersion modelVersionJSON `json:"model_version"`
	}
	if err := c.post(ctx, "/model-versions/create", req, &resp); err != nil {
		return nil, err
	}
	return resp.ModelVersion.toDomain(), nil
}

func (c *Client) TransitionModelVersionStage(ctx context.Context, name, version string, stage domain.Stage) error {
	req := struct {
		Name                    string `json:"name"`
		Version                 string `json:"version"`
		Stage                   string `json:"stage"`
		ArchiveExistingVersions bool   `json:"archive_existing_versions"`
	}{Name: name, Version: version, Stage: string(stage)}
	return c.post(ctx, "/model-versions/transition-stage", req, nil)
}
