// Package coach wraps every call to the generation API with the session's
// rate limiter, usage ledger, and conversation memory. All three mutate only
// on confirmed outcomes: the limiter on attempts, the ledger and memory on
// success.
package coach

import (
	"context"
	"errors"
	"time"

	"github.com/lumenclass/selcoach/internal/memory"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/ratelimit"
	"github.com/lumenclass/selcoach/internal/usage"
	"go.uber.org/zap"
)

// Meter bundles the per-session state the gateway charges. Constructed once
// per user session and threaded explicitly through every call.
type Meter struct {
	Limiter *ratelimit.Limiter
	Usage   *usage.Tracker
	Memory  *memory.Buffer
}

// NewMeter creates session metering state with the given limits and prices.
func NewMeter(perMinute, perHour int, prices usage.PriceTable, now time.Time) *Meter {
	return &Meter{
		Limiter: ratelimit.New(perMinute, perHour),
		Usage:   usage.NewTracker(prices, now),
		Memory:  memory.NewBuffer(),
	}
}

// Gateway routes generation requests through the provider router, charging
// the caller's Meter on the way.
type Gateway struct {
	router *provider.Router
	logger *zap.Logger
	now    func() time.Time
}

// NewGateway creates a Gateway over the given provider router.
func NewGateway(router *provider.Router, logger *zap.Logger) *Gateway {
	return &Gateway{
		router: router,
		logger: logger,
		now:    time.Now,
	}
}

// Generate performs a buffered generation call.
//
// The limiter is checked before anything else; a denial surfaces immediately
// with no provider contact and no state change. An allowed call is charged
// against the window before the provider is contacted, so failed transport
// attempts still consume budget. Usage and memory mutate only on success.
func (g *Gateway) Generate(ctx context.Context, m *Meter, req *provider.ChatRequest) (string, error) {
	now := g.now()
	if ok, reason := m.Limiter.Check(now); !ok {
		g.logger.Warn("generation denied by limiter", zap.String("reason", reason))
		return "", &RateLimitError{Reason: reason}
	}
	m.Limiter.Record(now)

	resp, err := g.router.Route(ctx, req)
	if err != nil {
		return "", g.classify(err)
	}

	g.settle(m, resp.Usage, resp.Content)
	return resp.Content, nil
}

// GenerateStream performs a streaming generation call, driving sink with
// batched fragments as they arrive. Rate-limit and accounting semantics
// match Generate; a stream that ends without a usage envelope is treated as
// a transport failure and charges nothing beyond the attempt.
func (g *Gateway) GenerateStream(ctx context.Context, m *Meter, req *provider.ChatRequest, sink Sink) (string, error) {
	now := g.now()
	if ok, reason := m.Limiter.Check(now); !ok {
		g.logger.Warn("generation denied by limiter", zap.String("reason", reason))
		return "", &RateLimitError{Reason: reason}
	}
	m.Limiter.Record(now)

	ch, err := g.router.RouteStream(ctx, req)
	if err != nil {
		return "", g.classify(err)
	}

	text, finalUsage := relay(ch, sink)
	if finalUsage == nil {
		g.logger.Error("stream ended without usage envelope")
		return "", ErrUnavailable
	}

	g.settle(m, *finalUsage, text)
	return text, nil
}

// settle applies exactly-once success side effects: ledger update and
// assistant memory append.
func (g *Gateway) settle(m *Meter, u provider.Usage, text string) {
	m.Usage.Record(u.InputTokens, u.OutputTokens, u.CacheCreationTokens, u.CacheReadTokens)
	m.Memory.Append(memory.RoleAssistant, text, nil)
	g.logger.Debug("generation settled",
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens))
}

// classify separates provider-reported errors, which are safe to surface
// verbatim, from transport and unexpected failures, which get a generic
// message. Neither records usage or memory.
func (g *Gateway) classify(err error) error {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		g.logger.Warn("provider rejected request",
			zap.Int("status", apiErr.StatusCode), zap.String("type", apiErr.Type))
		return apiErr
	}
	g.logger.Error("generation transport failure", zap.Error(err))
	return ErrUnavailable
}
