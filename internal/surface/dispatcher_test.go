package surface

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/session"
)

type scriptedProvider struct {
	resp *provider.ChatResponse
	err  error

	mu       sync.Mutex
	lastReq  *provider.ChatRequest
	requests int
}

func (p *scriptedProvider) ID() string   { return "scripted" }
func (p *scriptedProvider) Name() string { return "Scripted" }

func (p *scriptedProvider) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	p.mu.Lock()
	p.lastReq = req
	p.requests++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func (p *scriptedProvider) ChatStream(context.Context, *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	return nil, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) error { return nil }

type captureAdapter struct {
	handler MessageHandler

	mu   sync.Mutex
	sent []*OutboundMessage
	done chan struct{}
}

func newCaptureAdapter() *captureAdapter {
	return &captureAdapter{done: make(chan struct{}, 4)}
}

func (a *captureAdapter) Platform() string              { return "test" }
func (a *captureAdapter) Connect(context.Context) error { return nil }
func (a *captureAdapter) OnMessage(h MessageHandler)    { a.handler = h }
func (a *captureAdapter) Close() error                  { return nil }

func (a *captureAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	a.mu.Lock()
	a.sent = append(a.sent, msg)
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *captureAdapter) waitForReply(t *testing.T) *OutboundMessage {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sent[len(a.sent)-1]
}

func newTestDispatcher(t *testing.T, p provider.Provider) (*captureAdapter, *session.Manager) {
	t.Helper()
	logger := zap.NewNop()
	router := provider.NewRouter(logger)
	router.Register(p)
	router.SetDefault(p.ID())

	sessions := session.NewManager(session.Defaults{Model: "claude-sonnet-4-5-20250929"})
	surfaces := NewManager(logger)
	adapter := newCaptureAdapter()
	surfaces.Register(adapter)
	NewDispatcher(coach.NewGateway(router, logger), sessions, surfaces, nil, logger)
	return adapter, sessions
}

func TestDispatcherRepliesWithStrategy(t *testing.T) {
	p := &scriptedProvider{resp: &provider.ChatResponse{
		Content: "**Strategy Name:** Mindful Minute",
		Usage:   provider.Usage{InputTokens: 100, OutputTokens: 50},
	}}
	adapter, sessions := newTestDispatcher(t, p)

	adapter.handler(&InboundMessage{
		Platform:  "test",
		ChannelID: "C1",
		UserID:    "U1",
		Content:   "two students arguing over shared materials",
		ReplyTo:   "thread-1",
	})

	reply := adapter.waitForReply(t)
	if reply.Content != "**Strategy Name:** Mindful Minute" {
		t.Fatalf("reply = %q", reply.Content)
	}
	if reply.ChannelID != "C1" || reply.ReplyTo != "thread-1" {
		t.Fatalf("reply routing lost: %+v", reply)
	}

	p.mu.Lock()
	req := p.lastReq
	p.mu.Unlock()
	if !strings.Contains(req.Messages[0].Content, "two students arguing over shared materials") {
		t.Fatal("situation not embedded in the strategy prompt")
	}
	if req.System == "" {
		t.Fatal("system prompt missing")
	}

	sess := sessions.ForKey("test:U1")
	sess.Do(func() {
		if got := sess.Meter.Usage.Ledger().CallsMade; got != 1 {
			t.Fatalf("ledger requests = %d, want 1", got)
		}
		recent := sess.Meter.Memory.Recent(2)
		if len(recent) != 2 {
			t.Fatalf("memory entries = %d, want user+assistant", len(recent))
		}
	})
}

func TestDispatcherReportsProviderRejection(t *testing.T) {
	p := &scriptedProvider{err: &provider.APIError{StatusCode: 400, Type: "invalid_request_error", Message: "max_tokens too large"}}
	adapter, _ := newTestDispatcher(t, p)

	adapter.handler(&InboundMessage{Platform: "test", ChannelID: "C1", UserID: "U1", Content: "help"})

	reply := adapter.waitForReply(t)
	if !strings.Contains(reply.Content, "max_tokens too large") {
		t.Fatalf("provider message not surfaced: %q", reply.Content)
	}
}

func TestDispatcherSessionsAreDistinctPerUser(t *testing.T) {
	p := &scriptedProvider{resp: &provider.ChatResponse{Content: "ok", Usage: provider.Usage{InputTokens: 1, OutputTokens: 1}}}
	adapter, sessions := newTestDispatcher(t, p)

	adapter.handler(&InboundMessage{Platform: "test", ChannelID: "C1", UserID: "U1", Content: "a"})
	adapter.waitForReply(t)
	adapter.handler(&InboundMessage{Platform: "test", ChannelID: "C1", UserID: "U2", Content: "b"})
	adapter.waitForReply(t)

	s1 := sessions.ForKey("test:U1")
	s2 := sessions.ForKey("test:U2")
	if s1 == s2 {
		t.Fatal("users share a session")
	}
	s1.Do(func() {
		if got := s1.Meter.Usage.Ledger().CallsMade; got != 1 {
			t.Fatalf("U1 ledger requests = %d", got)
		}
	})
}
