package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/session"
	"github.com/lumenclass/selcoach/internal/snapshot"
)

// stubProvider answers every chat with a fixed response or error.
type stubProvider struct {
	resp *provider.ChatResponse
	err  error

	mu      sync.Mutex
	lastReq *provider.ChatRequest
}

func (p *stubProvider) ID() string   { return "stub" }
func (p *stubProvider) Name() string { return "Stub" }

func (p *stubProvider) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.mu.Lock()
	p.lastReq = req
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *stubProvider) ChatStream(_ context.Context, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan *provider.StreamChunk, 4)
	ch <- &provider.StreamChunk{Content: p.resp.Content}
	ch <- &provider.StreamChunk{Done: true, Usage: &p.resp.Usage}
	close(ch)
	return ch, nil
}

func (p *stubProvider) HealthCheck(context.Context) error { return nil }

// newTestHandler creates a Handler wired with in-memory deps (no Postgres,
// Redis, or Qdrant).
func newTestHandler(t *testing.T, p provider.Provider) (*Handler, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	router := provider.NewRouter(logger)
	router.Register(p)
	router.SetDefault(p.ID())

	sessions := session.NewManager(session.Defaults{Model: "claude-sonnet-4-5-20250929"})
	allow := session.NewAllowlist([]string{"rest:admin"})
	saver := snapshot.NewMemorySaver()

	h := NewHandler(sessions, coach.NewGateway(router, logger), allow, nil, saver, nil, nil, logger)
	return h, h.Router()
}

func okProvider() *stubProvider {
	return &stubProvider{resp: &provider.ChatResponse{
		Content: "**Overview:** A strategy.",
		Usage:   provider.Usage{InputTokens: 1000, OutputTokens: 500},
	}}
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func newSessionID(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, ts, "/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, resp, &out)
	return out.SessionID
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestCatalog(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	var out struct {
		Competencies []string `json:"competencies"`
		GradeLevels  []string `json:"grade_levels"`
	}
	decodeJSON(t, getJSON(t, ts, "/api/catalog"), &out)
	if len(out.Competencies) != 5 {
		t.Fatalf("competencies = %v", out.Competencies)
	}
	if len(out.GradeLevels) != 13 {
		t.Fatalf("grade levels = %v", out.GradeLevels)
	}
}

func TestStrategyEndpoint(t *testing.T) {
	p := okProvider()
	_, router := newTestHandler(t, p)
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id+"/strategy", map[string]string{
		"situation": "a student is refusing to join group work",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out struct {
		Response string `json:"response"`
	}
	decodeJSON(t, resp, &out)
	if out.Response != "**Overview:** A strategy." {
		t.Fatalf("response = %q", out.Response)
	}

	p.mu.Lock()
	req := p.lastReq
	p.mu.Unlock()
	if !strings.Contains(req.Messages[0].Content, "refusing to join group work") {
		t.Fatal("situation missing from prompt")
	}
	if req.System == "" {
		t.Fatal("system prompt missing")
	}
}

func TestStrategyRequiresSituation(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id+"/strategy", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestUnknownSession(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/sessions/nope/strategy", map[string]string{"situation": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestProviderErrorsMapToStatuses(t *testing.T) {
	p := &stubProvider{err: &provider.APIError{StatusCode: 400, Type: "invalid_request_error", Message: "max_tokens too large"}}
	_, router := newTestHandler(t, p)
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id+"/strategy", map[string]string{"situation": "x"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", resp.StatusCode)
	}
	var out struct {
		Error string `json:"error"`
		Type  string `json:"type"`
	}
	decodeJSON(t, resp, &out)
	if out.Error != "max_tokens too large" || out.Type != "invalid_request_error" {
		t.Fatalf("provider error not surfaced verbatim: %+v", out)
	}
}

func TestRateLimitMapsTo429(t *testing.T) {
	p := okProvider()
	_, router := newTestHandler(t, p)
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	path := "/api/sessions/" + id + "/wellness/destress"
	for i := 0; i < 50; i++ {
		resp := postJSON(t, ts, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
	resp := postJSON(t, ts, path, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
}

func TestScreeningLifecycleOverHTTP(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	base := "/api/sessions/" + id + "/screening"

	resp := postJSON(t, ts, base+"/start", map[string]interface{}{"grade": "3rd Grade", "num_students": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: status %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, base+"/submit", map[string]interface{}{"ratings": []int{1, 1, 1, 1, 1}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit 1: status %d", resp.StatusCode)
	}

	// Out-of-range rating is a 400 and does not advance.
	resp = postJSON(t, ts, base+"/submit", map[string]interface{}{"ratings": []int{5, 1, 1, 1, 1}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid submit: status %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts, base+"/submit", map[string]interface{}{"ratings": []int{4, 4, 4, 4, 4}})
	var submitOut struct {
		State string `json:"state"`
	}
	decodeJSON(t, resp, &submitOut)
	if submitOut.State != "complete" {
		t.Fatalf("state after final submit = %q", submitOut.State)
	}

	var results struct {
		Priority  []string `json:"priority"`
		FocusArea string   `json:"focus_area"`
	}
	decodeJSON(t, getJSON(t, ts, base+"/results"), &results)
	if len(results.Priority) != 1 {
		t.Fatalf("priority tier = %+v", results.Priority)
	}
	if results.FocusArea == "" {
		t.Fatal("focus area missing")
	}
}

func TestScreeningResultsBeforeComplete(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	base := "/api/sessions/" + id + "/screening"
	postJSON(t, ts, base+"/start", map[string]interface{}{"grade": "3rd Grade", "num_students": 2}).Body.Close()

	resp := getJSON(t, ts, base+"/results")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestScreeningSnapshotRestore(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	base := "/api/sessions/" + id + "/screening"
	postJSON(t, ts, base+"/start", map[string]interface{}{"grade": "5th Grade", "num_students": 1}).Body.Close()
	postJSON(t, ts, base+"/submit", map[string]interface{}{"ratings": []int{2, 2, 2, 2, 2}}).Body.Close()
	if resp := postJSON(t, ts, base+"/snapshot", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot: status %d", resp.StatusCode)
	}

	// A second session adopts the first session's snapshot.
	id2 := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id2+"/screening/restore", map[string]string{"from_session_id": id})
	var out struct {
		State string `json:"state"`
		Grade string `json:"grade"`
	}
	decodeJSON(t, resp, &out)
	if out.State != "complete" || out.Grade != "5th Grade" {
		t.Fatalf("restore = %+v", out)
	}
}

func TestUsageSummaryAndAdminReset(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	postJSON(t, ts, "/api/sessions/"+id+"/wellness/destress", nil).Body.Close()

	var usage struct {
		Summary struct {
			CallsMade     int64   `json:"calls_made"`
			EstimatedCost float64 `json:"estimated_cost"`
		} `json:"summary"`
		Attempts int64 `json:"attempts"`
	}
	decodeJSON(t, getJSON(t, ts, "/api/sessions/"+id+"/usage"), &usage)
	if usage.Summary.CallsMade != 1 || usage.Attempts != 1 {
		t.Fatalf("usage = %+v", usage)
	}
	// 1000 in + 500 out at default prices.
	if diff := usage.Summary.EstimatedCost - 0.0105; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("estimated cost = %v", usage.Summary.EstimatedCost)
	}

	// Reset without admin identity is refused.
	resp := postJSON(t, ts, "/api/sessions/"+id+"/usage/reset", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthenticated reset: status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("POST", ts.URL+"/api/sessions/"+id+"/usage/reset", nil)
	req.Header.Set("X-Identity", "rest:admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin reset: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	decodeJSON(t, getJSON(t, ts, "/api/sessions/"+id+"/usage"), &usage)
	if usage.Summary.CallsMade != 0 {
		t.Fatalf("ledger not reset: %+v", usage)
	}
}

func TestExportText(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id+"/export", map[string]string{
		"plan":   "# Plan\nBreathing break after recess.",
		"format": "txt",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type %q", ct)
	}
	resp.Body.Close()
}

func TestStrategyStream(t *testing.T) {
	_, router := newTestHandler(t, okProvider())
	ts := httptest.NewServer(router)
	defer ts.Close()

	id := newSessionID(t, ts)
	resp := postJSON(t, ts, "/api/sessions/"+id+"/strategy/stream", map[string]string{"situation": "x"})
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	resp.Body.Close()
	body := buf.String()
	if !strings.Contains(body, "data: ") || !strings.Contains(body, "event: done") {
		t.Fatalf("stream body:\n%s", body)
	}
}
