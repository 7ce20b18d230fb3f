package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

var fastBackoff = BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func samples() []telemetry.SampleInput {
	return []telemetry.SampleInput{{OriginNodeID: "a", TargetNodeID: "b"}}
}

func TestPushSamplesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping-samples/bulk" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var in []telemetry.SampleInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]telemetry.PingSample{{ID: 7, OriginNodeID: in[0].OriginNodeID, TargetNodeID: in[0].TargetNodeID}})
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", srv.Client(), fastBackoff)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	stored, err := c.PushSamples(context.Background(), samples())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != 7 {
		t.Fatalf("unexpected response %+v", stored)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestPushSamplesDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":true,"message":"invalid sample"}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, srv.Client(), fastBackoff)
	_, err := c.PushSamples(context.Background(), samples())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 StatusError, got %v", err)
	}
	if !errors.Is(err, ErrRejected) {
		t.Fatal("StatusError should unwrap to ErrRejected")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestPushSamplesGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := New(srv.URL, srv.Client(), fastBackoff)
	if _, err := c.PushSamples(context.Background(), samples()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls.Load() != int32(fastBackoff.MaxRetries+1) {
		t.Fatalf("expected %d attempts, got %d", fastBackoff.MaxRetries+1, calls.Load())
	}
}

func TestPushSamplesRejectsEmptyInput(t *testing.T) {
	c, _ := New("http://localhost:8080", nil, fastBackoff)
	if _, err := c.PushSamples(context.Background(), nil); !errors.Is(err, telemetry.ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}
}

func TestNewValidatesURL(t *testing.T) {
	if _, err := New("ftp://example.com", nil, fastBackoff); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}
