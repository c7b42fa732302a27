// Package ml talks to the external injury-prediction model service.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"injurywatch/pipeline"
)

// BackendError is returned when the model service answers with a
// non-success status. Message carries the service's own error string
// when one could be decoded.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("model service rejected the request: %s", e.Message)
	}
	return fmt.Sprintf("model service rejected the request (status %d)", e.Status)
}

// ResponseError is returned when a success response cannot be used:
// the probability field is missing or not a finite number.
type ResponseError struct {
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// PredictionResult is the decoded model output. InjuryProbability is
// accepted as-is, clamping happens only at classification time.
type PredictionResult struct {
	InjuryProbability float64     `json:"injury_probability"`
	PredictedLabel    interface{} `json:"predicted_label,omitempty"`
}

// sessionFeatures is one day's 8 numeric features on the wire,
// player id and date are never sent to the model.
type sessionFeatures struct {
	SpeedMean    float64 `json:"speed_mean"`
	SpeedMax     float64 `json:"speed_max"`
	SpeedStd     float64 `json:"speed_std"`
	AccNormMean  float64 `json:"acc_norm_mean"`
	AccNormMax   float64 `json:"acc_norm_max"`
	AccNormStd   float64 `json:"acc_norm_std"`
	GyroNormMean float64 `json:"gyro_norm_mean"`
	GyroNormMax  float64 `json:"gyro_norm_max"`
}

type predictRequest struct {
	Last7Days []sessionFeatures `json:"last_7_days"`
}

type predictResponse struct {
	InjuryProbability *float64    `json:"injury_probability"`
	PredictedLabel    interface{} `json:"predicted_label"`
	Error             string      `json:"error"`
}

// Client Prediction客户端，持有端点、HTTP客户端与结果缓存
type Client struct {
	mu       sync.RWMutex
	endpoint string
	client   *http.Client
	cache    *resultCache
}

// NewClient creates a prediction client. cacheSize <= 0 disables the
// result cache.
func NewClient(endpoint string, timeout time.Duration, cacheSize int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cache:    newResultCache(cacheSize),
	}
}

// SetEndpoint swaps the model endpoint, used by config hot-reload.
// Safe to call while requests are in flight.
func (c *Client) SetEndpoint(endpoint string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

func (c *Client) currentEndpoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoint
}

// Predict projects the batch to its feature matrix, posts it to the
// model service and decodes the probability. A batch already seen is
// answered from the cache without a network call. No retries.
func (c *Client) Predict(ctx context.Context, batch *pipeline.WeeklyBatch) (*PredictionResult, error) {
	key := batchKey(batch)
	if cached, ok := c.cache.get(key); ok {
		return cached, nil
	}

	reqBody := predictRequest{Last7Days: make([]sessionFeatures, 0, len(batch.Records))}
	for _, rec := range batch.Records {
		reqBody.Last7Days = append(reqBody.Last7Days, sessionFeatures{
			SpeedMean:    rec.SpeedMean,
			SpeedMax:     rec.SpeedMax,
			SpeedStd:     rec.SpeedStd,
			AccNormMean:  rec.AccNormMean,
			AccNormMax:   rec.AccNormMax,
			AccNormStd:   rec.AccNormStd,
			GyroNormMean: rec.GyroNormMean,
			GyroNormMax:  rec.GyroNormMax,
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.currentEndpoint(), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	var decoded predictResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = decoded.Error
		}
		return nil, &BackendError{Status: resp.StatusCode, Message: msg}
	}

	if decodeErr != nil {
		return nil, &ResponseError{Reason: "response body is not valid JSON"}
	}
	if decoded.InjuryProbability == nil {
		return nil, &ResponseError{Reason: "injury_probability is missing"}
	}
	prob := *decoded.InjuryProbability
	if math.IsNaN(prob) || math.IsInf(prob, 0) {
		return nil, &ResponseError{Reason: "injury_probability is not a finite number"}
	}

	result := &PredictionResult{
		InjuryProbability: prob,
		PredictedLabel:    decoded.PredictedLabel,
	}
	c.cache.add(key, result)
	return result, nil
}
