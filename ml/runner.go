package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RunnerClient delegates the opaque predict call to the model-runner
// sidecar that hosts the exported BiLSTM. The network stays behind the
// runner; this client only moves tensors and probabilities.
type RunnerClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewRunnerClient(baseURL, model string, timeout time.Duration) *RunnerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if model == "" {
		model = "exoplanet_bilstm"
	}
	return &RunnerClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type runnerRequest struct {
	Model     string `json:"model"`
	Instances Tensor `json:"instances"`
}

type runnerResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

type runnerErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Predict implements Model over the runner's HTTP API.
func (c *RunnerClient) Predict(ctx context.Context, batch Tensor) ([][]float64, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("runner client not configured")
	}
	if c.baseURL == "" {
		return nil, errors.New("runner url is required")
	}
	if len(batch) == 0 {
		return nil, errors.New("empty batch")
	}

	payload, err := json.Marshal(runnerRequest{Model: c.model, Instances: batch})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr runnerErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("runner error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("runner returned status %d", resp.StatusCode)
	}

	var result runnerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Predictions) != len(batch) {
		return nil, fmt.Errorf("runner returned %d predictions for %d samples", len(result.Predictions), len(batch))
	}
	return result.Predictions, nil
}
