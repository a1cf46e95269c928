package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nlebedev/predictit/internal/model"
)

// UploadResult is the outcome of a successful dataset upload.
type UploadResult struct {
	SessionID string
	Dataset   model.DatasetDescriptor
}

type uploadResponse struct {
	SessionID string `json:"session_id"`
	model.DatasetDescriptor
}

// Upload sends a dataset file to the backend and returns its descriptor
// together with the new ephemeral session id.
func (c *Client) Upload(ctx context.Context, filePath string) (UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".csv", ".xlsx", ".xls":
	default:
		return UploadResult{}, fmt.Errorf("only CSV and Excel files are supported, got %q", ext)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() {
		// Best-effort file close.
		_ = file.Close()
	}()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResult{}, fmt.Errorf("failed to read dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("failed to finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return UploadResult{}, err
	}
	if resp.SessionID == "" {
		return UploadResult{}, fmt.Errorf("upload response missing session id")
	}
	dataset := resp.DatasetDescriptor
	dataset.Filename = filepath.Base(filePath)
	return UploadResult{SessionID: resp.SessionID, Dataset: dataset}, nil
}

// Preprocess asks the backend to scale the session's numeric columns.
func (c *Client) Preprocess(ctx context.Context, sessionID, targetColumn string, scaler model.Scaler) error {
	body := struct {
		SessionID     string `json:"session_id"`
		TargetColumn  string `json:"target_column"`
		OperationType string `json:"operation_type"`
	}{
		SessionID:     sessionID,
		TargetColumn:  targetColumn,
		OperationType: scaler.WireName(),
	}
	return c.doJSON(ctx, http.MethodPost, "/preprocess", body, nil)
}

// TrainRequest carries everything the backend needs to fit a model.
type TrainRequest struct {
	SessionID      string
	Kind           model.ModelKind
	SplitRatio     float64
	TargetColumn   string
	FeatureColumns []string
}

// Train fits a model on the session's dataset and returns its metrics.
func (c *Client) Train(ctx context.Context, req TrainRequest) (model.TrainingResult, error) {
	body := struct {
		SessionID      string   `json:"session_id"`
		ModelType      string   `json:"model_type"`
		SplitRatio     float64  `json:"split_ratio"`
		TargetColumn   string   `json:"target_column"`
		FeatureColumns []string `json:"feature_columns"`
	}{
		SessionID:      req.SessionID,
		ModelType:      req.Kind.WireName(),
		SplitRatio:     req.SplitRatio,
		TargetColumn:   req.TargetColumn,
		FeatureColumns: req.FeatureColumns,
	}
	var result model.TrainingResult
	if err := c.doJSON(ctx, http.MethodPost, "/train", body, &result); err != nil {
		return model.TrainingResult{}, err
	}
	return result, nil
}

// Predict runs the session's trained model on one feature vector.
func (c *Client) Predict(ctx context.Context, sessionID string, features map[string]float64) (model.Prediction, error) {
	body := struct {
		SessionID     string             `json:"session_id"`
		FeatureValues map[string]float64 `json:"feature_values"`
	}{SessionID: sessionID, FeatureValues: features}
	var pred model.Prediction
	if err := c.doJSON(ctx, http.MethodPost, "/predict", body, &pred); err != nil {
		return model.Prediction{}, err
	}
	return pred, nil
}

// CleanupSession requests server-side cleanup of an ephemeral session.
func (c *Client) CleanupSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, "/reset/"+sessionID, nil, nil)
}
