// Package client uploads ping samples to a remote heatmap server.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/meshcore-heatmap/internal/metrics"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// Client talks to the ingest endpoints of a remote server.
type Client struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// New returns a Client for the server at baseURL. A nil httpClient uses a
// client with a 10 second timeout.
func New(baseURL string, httpClient *http.Client, backoff BackoffConfig) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ingest:" + u.Host,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: u.String(),
		httpCfg: HTTPClientConfig{Client: httpClient, Backoff: backoff},
		circuit: cb,
	}, nil
}

// PushSamples posts samples to /ping-samples/bulk and returns the stored rows.
func (c *Client) PushSamples(ctx context.Context, samples []telemetry.SampleInput) ([]telemetry.PingSample, error) {
	if len(samples) == 0 {
		return nil, telemetry.ErrNoSamples
	}
	body, err := json.Marshal(samples)
	if err != nil {
		return nil, fmt.Errorf("encode samples: %w", err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/ping-samples/bulk", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues("ingest", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	metrics.RemoteRequests.WithLabelValues("ingest", "ok").Inc()

	var stored []telemetry.PingSample
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return stored, nil
}
