package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"dataplatform/models"
)

var (
	// ErrConnection means the backend could not be reached at all.
	ErrConnection = errors.New("dashboard: backend unreachable")
	// ErrTimeout means the backend did not answer in time.
	ErrTimeout = errors.New("dashboard: backend timed out")
)

// HTTPError is a non-2xx answer from the backend. Detail is the server
// message, shown verbatim.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend answered %d: %s", e.Status, e.Detail)
}

// Client talks to the API server on behalf of the dashboard.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout waits for as long as
// the backend takes, which is what a bulk load needs.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Analyze sends records to POST /analyze and returns the ingestion result.
func (c *Client) Analyze(ctx context.Context, records []models.Record) (*models.IngestionResult, error) {
	if records == nil {
		records = []models.Record{}
	}
	body, err := json.Marshal(models.IngestionBatch{Data: records})
	if err != nil {
		return nil, fmt.Errorf("dashboard: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dashboard: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Detail: errorDetail(raw)}
	}

	var result models.IngestionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("dashboard: decode response: %w", err)
	}
	return &result, nil
}

// classify wraps a transport error in ErrTimeout or ErrConnection.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// errorDetail extracts {"detail": ...} when present, else the raw body.
func errorDetail(raw []byte) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		if s, ok := body.Detail.(string); ok {
			return s
		}
		out, _ := json.Marshal(body.Detail)
		return string(out)
	}
	return strings.TrimSpace(string(raw))
}
