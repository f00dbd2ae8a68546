// Package detection turns puzzle photos into serialized grids by delegating
// to an external recognizer service.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sudoku-arena/arena-api/internal/app/domain/sudoku"
	"github.com/sudoku-arena/arena-api/pkg/logger"
)

// Recognizer extracts an 81-char grid from a base64-encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, imageBase64 string) (string, error)
}

// HTTPRecognizer calls the recognizer service over HTTP.
type HTTPRecognizer struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	log      *logger.Logger
}

var _ Recognizer = (*HTTPRecognizer)(nil)

// NewHTTPRecognizer constructs a recognizer client for the given endpoint.
func NewHTTPRecognizer(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPRecognizer, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("recognizer endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("recognizer")
	}
	return &HTTPRecognizer{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		log:      log,
	}, nil
}

// Recognize submits the image and returns the recognized grid.
func (r *HTTPRecognizer) Recognize(ctx context.Context, imageBase64 string) (string, error) {
	body, err := json.Marshal(struct {
		Image string `json:"image"`
	}{Image: imageBase64})
	if err != nil {
		return "", fmt.Errorf("marshal recognizer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build recognizer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("recognizer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognizer status %d", resp.StatusCode)
	}

	var payload struct {
		Grid  string `json:"grid"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode recognizer response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("recognizer failed: %s", payload.Error)
	}
	if err := sudoku.ValidateGrid(payload.Grid); err != nil {
		return "", fmt.Errorf("recognizer returned bad grid: %w", err)
	}
	return payload.Grid, nil
}
