package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/usage"
	"go.uber.org/zap"
)

// fakeProvider scripts one buffered response or stream per test.
type fakeProvider struct {
	resp   *provider.ChatResponse
	err    error
	chunks []*provider.StreamChunk
	calls  int
}

func (f *fakeProvider) ID() string   { return "fake" }
func (f *fakeProvider) Name() string { return "Fake" }

func (f *fakeProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.calls++
	return f.resp, f.err
}

func (f *fakeProvider) ChatStream(_ context.Context, _ *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan *provider.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) HealthCheck(context.Context) error { return nil }

func newTestGateway(t *testing.T, fp *fakeProvider) (*Gateway, *Meter) {
	t.Helper()
	logger := zap.NewNop()
	router := provider.NewRouter(logger)
	router.Register(fp)
	g := NewGateway(router, logger)
	m := NewMeter(50, 1000, usage.DefaultPrices, time.Now())
	return g, m
}

func TestGenerateSuccess(t *testing.T) {
	fp := &fakeProvider{resp: &provider.ChatResponse{
		Content: "Try a mindful minute.",
		Usage:   provider.Usage{InputTokens: 1000, OutputTokens: 500},
	}}
	g, m := newTestGateway(t, fp)

	text, err := g.Generate(context.Background(), m, &provider.ChatRequest{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Try a mindful minute." {
		t.Errorf("text = %q", text)
	}

	l := m.Usage.Ledger()
	if l.CallsMade != 1 || l.InputTokens != 1000 || l.OutputTokens != 500 {
		t.Errorf("ledger = %+v", l)
	}
	if l.EstimatedCost != 0.0105 {
		t.Errorf("cost = %v, want 0.0105", l.EstimatedCost)
	}

	recent := m.Memory.Recent(1)
	if len(recent) != 1 || recent[0].Role != "assistant" || recent[0].Content != text {
		t.Errorf("memory entry = %+v", recent)
	}
}

func TestGenerateDeniedByLimiter(t *testing.T) {
	fp := &fakeProvider{resp: &provider.ChatResponse{Content: "ok"}}
	logger := zap.NewNop()
	router := provider.NewRouter(logger)
	router.Register(fp)
	g := NewGateway(router, logger)
	m := NewMeter(1, 1000, usage.DefaultPrices, time.Now())

	if _, err := g.Generate(context.Background(), m, &provider.ChatRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, err := g.Generate(context.Background(), m, &provider.ChatRequest{})
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("want RateLimitError, got %v", err)
	}
	if fp.calls != 1 {
		t.Errorf("provider contacted on denied call: %d calls", fp.calls)
	}
	if l := m.Usage.Ledger(); l.CallsMade != 1 {
		t.Errorf("denied call mutated ledger: %+v", l)
	}
	if m.Memory.Len() != 1 {
		t.Errorf("denied call mutated memory: len=%d", m.Memory.Len())
	}
}

func TestGenerateProviderError(t *testing.T) {
	apiErr := &provider.APIError{StatusCode: 400, Type: "invalid_request_error", Message: "max_tokens too large"}
	fp := &fakeProvider{err: apiErr}
	g, m := newTestGateway(t, fp)

	_, err := g.Generate(context.Background(), m, &provider.ChatRequest{})
	var got *provider.APIError
	if !errors.As(err, &got) || got.Message != "max_tokens too large" {
		t.Fatalf("provider error not surfaced verbatim: %v", err)
	}
	if l := m.Usage.Ledger(); l.CallsMade != 0 {
		t.Errorf("failed call credited usage: %+v", l)
	}
	if m.Memory.Len() != 0 {
		t.Error("failed call appended memory")
	}
	// The attempt still consumed rate-limit budget.
	if m.Limiter.Attempts() != 1 {
		t.Errorf("attempts = %d, want 1", m.Limiter.Attempts())
	}
}

func TestGenerateTransportError(t *testing.T) {
	fp := &fakeProvider{err: errors.New("connection reset by peer")}
	g, m := newTestGateway(t, fp)

	_, err := g.Generate(context.Background(), m, &provider.ChatRequest{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), "connection reset") {
		t.Error("transport detail leaked into surfaced error")
	}
}

func TestGenerateStream(t *testing.T) {
	fp := &fakeProvider{chunks: []*provider.StreamChunk{
		{Content: "Take three slow breaths, "},
		{Content: "then name the feeling "},
		{Content: "out loud."},
		{Done: true, Usage: &provider.Usage{InputTokens: 200, OutputTokens: 40, CacheReadTokens: 100}},
	}}
	g, m := newTestGateway(t, fp)

	var streamed strings.Builder
	text, err := g.GenerateStream(context.Background(), m, &provider.ChatRequest{}, func(s string) {
		streamed.WriteString(s)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}

	want := "Take three slow breaths, then name the feeling out loud."
	if text != want {
		t.Errorf("text = %q", text)
	}
	if streamed.String() != want {
		t.Errorf("sink saw %q", streamed.String())
	}

	l := m.Usage.Ledger()
	if l.InputTokens != 200 || l.OutputTokens != 40 || l.CacheReadTokens != 100 {
		t.Errorf("stream usage not recorded: %+v", l)
	}
	if m.Memory.Len() != 1 {
		t.Errorf("assistant entry not appended: len=%d", m.Memory.Len())
	}
}

func TestGenerateStreamWithoutUsageEnvelope(t *testing.T) {
	// Stream drops before the final envelope: transport failure semantics.
	fp := &fakeProvider{chunks: []*provider.StreamChunk{{Content: "partial"}}}
	g, m := newTestGateway(t, fp)

	_, err := g.GenerateStream(context.Background(), m, &provider.ChatRequest{}, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if l := m.Usage.Ledger(); l.CallsMade != 0 {
		t.Errorf("aborted stream credited usage: %+v", l)
	}
	if m.Limiter.Attempts() != 1 {
		t.Errorf("aborted stream should still charge the attempt")
	}
}
