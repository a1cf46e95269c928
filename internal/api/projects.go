package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nlebedev/predictit/internal/model"
)

// SaveProjectRequest carries the current pipeline state for durable save.
type SaveProjectRequest struct {
	Name          string
	Description   string
	SessionID     string
	Dataset       *model.DatasetDescriptor
	Preprocessing *model.PreprocessingConfig
	Split         *model.SplitConfig
	Model         *model.ModelConfig
	Result        *model.TrainingResult
}

// SaveProjectResult reports the created project and its remote file, if any.
type SaveProjectResult struct {
	ProjectID string
	FileURL   string
}

// SaveProject persists the current pipeline as a named project.
// The caller must be authenticated and the name must not be empty.
func (c *Client) SaveProject(ctx context.Context, req SaveProjectRequest) (SaveProjectResult, error) {
	if !c.Authenticated() {
		return SaveProjectResult{}, ErrUnauthenticated
	}
	if strings.TrimSpace(req.Name) == "" {
		return SaveProjectResult{}, fmt.Errorf("project name must not be empty")
	}
	body := struct {
		Name          string                     `json:"name"`
		Description   string                     `json:"description"`
		SessionID     string                     `json:"session_id,omitempty"`
		Dataset       *model.DatasetDescriptor   `json:"dataset_info,omitempty"`
		Preprocessing *model.PreprocessingConfig `json:"preprocessing_config,omitempty"`
		Split         *model.SplitConfig         `json:"split_config,omitempty"`
		Model         *model.ModelConfig         `json:"model_config,omitempty"`
		Result        *model.TrainingResult      `json:"results,omitempty"`
	}{
		Name:          req.Name,
		Description:   req.Description,
		SessionID:     req.SessionID,
		Dataset:       req.Dataset,
		Preprocessing: req.Preprocessing,
		Split:         req.Split,
		Model:         req.Model,
		Result:        req.Result,
	}
	var resp struct {
		ProjectID     string `json:"project_id"`
		CloudinaryURL string `json:"cloudinary_url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/projects/save", body, &resp); err != nil {
		return SaveProjectResult{}, err
	}
	if resp.ProjectID == "" {
		return SaveProjectResult{}, fmt.Errorf("save response missing project id")
	}
	return SaveProjectResult{ProjectID: resp.ProjectID, FileURL: resp.CloudinaryURL}, nil
}

// ListProjects returns the user's saved projects. A user with no
// projects gets an empty list, not an error.
func (c *Client) ListProjects(ctx context.Context) ([]model.ProjectSummary, error) {
	var projects []model.ProjectSummary
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one full project record by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	var project model.Project
	if err := c.doJSON(ctx, http.MethodGet, "/projects/"+projectID, nil, &project); err != nil {
		return model.Project{}, err
	}
	return project, nil
}

// DeleteResult reports a project deletion. CloudCleanupPerformed is
// informational: the delete succeeded either way.
type DeleteResult struct {
	CloudCleanupPerformed bool
}

// DeleteProject removes a project. Failure to clean up the auxiliary
// cloud file does not downgrade the outcome.
func (c *Client) DeleteProject(ctx context.Context, projectID string) (DeleteResult, error) {
	var resp struct {
		CloudinaryDeleted bool `json:"cloudinary_deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/projects/"+projectID, nil, &resp); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{CloudCleanupPerformed: resp.CloudinaryDeleted}, nil
}
