package contentstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"clipdex/internal/clip"
	"clipdex/internal/services"
	"clipdex/internal/services/contentstore"
	"clipdex/internal/testsupport"
)

func newTestClient(t *testing.T, baseURL string) *contentstore.Client {
	t.Helper()
	client, err := contentstore.New(contentstore.Config{
		BaseURL: baseURL,
		APIKey:  "key",
		Source:  "cliphub",
	}, testsupport.RetryClient(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func testItems() []contentstore.VideoItem {
	return []contentstore.VideoItem{
		{
			NaturalKey:  "cliphub-abc123",
			Format:      "mp4",
			MediaBase64: "bWVkaWE=",
			SizeBytes:   5,
			Metadata:    contentstore.VideoMetadata{Title: "Hospital drama", SourceID: "abc123"},
			WordMappings: []contentstore.WordMapping{
				{Word: "emergency", Language: "en", RelevanceScore: 0.9, TranscriptSource: "audio"},
			},
		},
		{
			NaturalKey:  "cliphub-def456",
			Format:      "mp4",
			MediaBase64: "bWVkaWE=",
			SizeBytes:   5,
			WordMappings: []contentstore.WordMapping{
				{Word: "emergency", Language: "en", RelevanceScore: 0.8, TranscriptSource: "audio"},
			},
		},
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := contentstore.New(contentstore.Config{APIKey: "key"}, testsupport.RetryClient(t)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing base url, got %v", err)
	}
	if _, err := contentstore.New(contentstore.Config{BaseURL: "https://example.com"}, testsupport.RetryClient(t)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing api key, got %v", err)
	}
}

func TestIngestBatchMapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/videos/ingest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var request struct {
			SourceID string                   `json:"source_id"`
			Videos   []contentstore.VideoItem `json:"videos"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if request.SourceID != "cliphub" {
			t.Errorf("unexpected source id %q", request.SourceID)
		}
		if len(request.Videos) != 2 {
			t.Errorf("expected 2 videos, got %d", len(request.Videos))
		}
		if len(request.Videos) > 0 && request.Videos[0].MediaBase64 != "bWVkaWE=" {
			t.Errorf("unexpected media payload %q", request.Videos[0].MediaBase64)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"natural_key": "cliphub-abc123", "video_id": "vid-1", "status": "created", "mappings_created": 1},
				{"natural_key": "cliphub-def456", "video_id": "vid-2", "status": "existed", "mappings_created": 1},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	results, err := client.IngestBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != clip.UploadCreated || results[0].VideoID != "vid-1" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Status != clip.UploadExisted {
		t.Fatalf("expected existed status for duplicate, got %+v", results[1])
	}
}

func TestIngestBatchSynthesizesMissingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"natural_key": "cliphub-abc123", "video_id": "vid-1", "status": "created", "mappings_created": 1},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	results, err := client.IngestBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Status != clip.UploadFailed || results[1].Reason == "" {
		t.Fatalf("expected synthesized failure for unanswered item, got %+v", results[1])
	}
}

func TestIngestBatchUnknownStatusBecomesFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"natural_key": "cliphub-abc123", "status": "queued"},
				{"natural_key": "cliphub-def456", "status": "created", "mappings_created": 1},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	results, err := client.IngestBatch(context.Background(), testItems())
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if results[0].Status != clip.UploadFailed {
		t.Fatalf("expected unknown status to map to failed, got %+v", results[0])
	}
	if results[0].Reason == "" {
		t.Fatal("expected reason naming the unknown status")
	}
}

func TestIngestBatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"natural_key": "cliphub-abc123", "video_id": "vid-1", "status": "created", "mappings_created": 1},
				{"natural_key": "cliphub-def456", "video_id": "vid-2", "status": "existed", "mappings_created": 1},
			},
		})
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	if _, err := client.IngestBatch(context.Background(), testItems()); err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
}

func TestIngestBatchSurfacesClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)
	if _, err := client.IngestBatch(context.Background(), testItems()); err == nil {
		t.Fatal("expected error for 413 response")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected no retries on 413, got %d requests", got)
	}
}

func TestIngestBatchEmpty(t *testing.T) {
	client := newTestClient(t, "https://example.com")
	results, err := client.IngestBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for empty batch, got %v", results)
	}
}
