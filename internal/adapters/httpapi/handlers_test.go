package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
)

type stubRepo struct {
	keywords     []domain.KeywordCount
	activity     []domain.ChannelActivity
	hits         []domain.MessageHit
	detections   []domain.DetectionRecord
	err          error
	lastLimit    int
	lastQuery    string
	lastChannel  string
	lastMessage  string
	keywordCalls int
}

func (r *stubRepo) TopKeywords(_ context.Context, _ []string, limit int) ([]domain.KeywordCount, error) {
	r.keywordCalls++
	r.lastLimit = limit
	return r.keywords, r.err
}

func (r *stubRepo) ChannelActivity(_ context.Context, channelName string) ([]domain.ChannelActivity, error) {
	r.lastChannel = channelName
	return r.activity, r.err
}

func (r *stubRepo) SearchMessages(_ context.Context, query string, limit int) ([]domain.MessageHit, error) {
	r.lastQuery = query
	r.lastLimit = limit
	return r.hits, r.err
}

func (r *stubRepo) DetectionsForMessage(_ context.Context, messageID string) ([]domain.DetectionRecord, error) {
	r.lastMessage = messageID
	return r.detections, r.err
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return nil, fmt.Errorf("cache miss")
	}
	return value, nil
}

func newTestServer(repo domain.InsightsRepo, cache domain.Cache) *httptest.Server {
	r := chi.NewRouter()
	NewHandlers(repo, cache, zerolog.Nop()).Register(r)
	return httptest.NewServer(r)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestTopProductsDefaultsAndLimitClamp(t *testing.T) {
	repo := &stubRepo{keywords: []domain.KeywordCount{{Keyword: "paracetamol", Count: 12}}}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	var results []domain.KeywordCount
	if code := getJSON(t, srv.URL+"/api/reports/top-products", &results); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if repo.lastLimit != 10 {
		t.Fatalf("expected default limit 10, got %d", repo.lastLimit)
	}
	if len(results) != 1 || results[0].Keyword != "paracetamol" {
		t.Fatalf("unexpected results: %+v", results)
	}

	getJSON(t, srv.URL+"/api/reports/top-products?limit=9999", nil)
	if repo.lastLimit != 10 {
		t.Fatalf("expected out-of-range limit to fall back to default, got %d", repo.lastLimit)
	}
	getJSON(t, srv.URL+"/api/reports/top-products?limit=5", nil)
	if repo.lastLimit != 5 {
		t.Fatalf("expected explicit limit 5, got %d", repo.lastLimit)
	}
}

func TestTopProductsUsesCache(t *testing.T) {
	repo := &stubRepo{keywords: []domain.KeywordCount{{Keyword: "vaccine", Count: 3}}}
	srv := newTestServer(repo, newMemCache())
	defer srv.Close()

	getJSON(t, srv.URL+"/api/reports/top-products", nil)
	getJSON(t, srv.URL+"/api/reports/top-products", nil)
	if repo.keywordCalls != 1 {
		t.Fatalf("expected second request served from cache, repo hit %d times", repo.keywordCalls)
	}

	// A different limit is a different cache key.
	getJSON(t, srv.URL+"/api/reports/top-products?limit=3", nil)
	if repo.keywordCalls != 2 {
		t.Fatalf("expected distinct cache entry per limit, repo hit %d times", repo.keywordCalls)
	}
}

func TestChannelActivityNotFound(t *testing.T) {
	repo := &stubRepo{}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	var body map[string]string
	if code := getJSON(t, srv.URL+"/api/channels/ghost/activity", &body); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown channel, got %d", code)
	}
	if repo.lastChannel != "ghost" {
		t.Fatalf("expected channel ghost queried, got %q", repo.lastChannel)
	}
	if body["error"] == "" {
		t.Fatalf("expected error payload, got %v", body)
	}
}

func TestChannelActivityOK(t *testing.T) {
	repo := &stubRepo{activity: []domain.ChannelActivity{
		{Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), MessageCount: 5, TotalViews: 120},
	}}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	var activity []domain.ChannelActivity
	if code := getJSON(t, srv.URL+"/api/channels/medchannel/activity", &activity); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(activity) != 1 || activity[0].MessageCount != 5 {
		t.Fatalf("unexpected activity payload: %+v", activity)
	}
}

func TestSearchMessagesValidation(t *testing.T) {
	srv := newTestServer(&stubRepo{}, nil)
	defer srv.Close()

	if code := getJSON(t, srv.URL+"/api/search/messages", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/search/messages?query=a", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a one-character query, got %d", code)
	}
}

func TestSearchMessagesWrapsResults(t *testing.T) {
	repo := &stubRepo{hits: []domain.MessageHit{
		{ChannelName: "medchannel", Text: "paracetamol restocked"},
	}}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	var body struct {
		Query   string              `json:"query"`
		Count   int                 `json:"count"`
		Results []domain.MessageHit `json:"results"`
	}
	if code := getJSON(t, srv.URL+"/api/search/messages?query=paracetamol&limit=50", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Query != "paracetamol" || body.Count != 1 || len(body.Results) != 1 {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if repo.lastLimit != 50 {
		t.Fatalf("expected limit 50 passed through, got %d", repo.lastLimit)
	}
}

func TestDetectionsNotFound(t *testing.T) {
	srv := newTestServer(&stubRepo{}, nil)
	defer srv.Close()

	if code := getJSON(t, srv.URL+"/api/detections/deadbeef", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for a message without detections, got %d", code)
	}
}

func TestDetectionsPayloadShape(t *testing.T) {
	repo := &stubRepo{detections: []domain.DetectionRecord{{
		MessageID:       "deadbeef",
		SourceMessageID: 42,
		DetectedClass:   "person",
		Confidence:      0.91,
		DetectedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}}}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	var body []map[string]any
	if code := getJSON(t, srv.URL+"/api/detections/deadbeef", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body) != 1 {
		t.Fatalf("expected one record, got %d", len(body))
	}
	if body[0]["detected_object_class"] != "person" {
		t.Fatalf("unexpected payload: %v", body[0])
	}
	if body[0]["source_message_id"].(float64) != 42 {
		t.Fatalf("expected source_message_id 42, got %v", body[0]["source_message_id"])
	}
}

func TestQueryFailureIs500(t *testing.T) {
	repo := &stubRepo{err: errors.New("connection refused")}
	srv := newTestServer(repo, nil)
	defer srv.Close()

	if code := getJSON(t, srv.URL+"/api/reports/top-products", nil); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on repo failure, got %d", code)
	}
	if code := getJSON(t, srv.URL+"/api/search/messages?query=fever", nil); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on repo failure, got %d", code)
	}
}
