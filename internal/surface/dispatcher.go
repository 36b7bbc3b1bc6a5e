package surface

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lumenclass/selcoach/internal/coach"
	"github.com/lumenclass/selcoach/internal/library"
	"github.com/lumenclass/selcoach/internal/memory"
	"github.com/lumenclass/selcoach/internal/prompt"
	"github.com/lumenclass/selcoach/internal/provider"
	"github.com/lumenclass/selcoach/internal/session"
)

// evidenceTopK bounds how many library excerpts a chat reply pulls in.
const evidenceTopK = 3

// Dispatcher turns an inbound chat message into a strategy request: it
// binds the sender to a session, runs the strategy-finder prompt through
// the coach gateway, and sends the reply back on the same surface.
type Dispatcher struct {
	gateway  *coach.Gateway
	sessions *session.Manager
	surfaces *Manager
	library  *library.Library // nil when retrieval is not configured
	logger   *zap.Logger
}

// NewDispatcher wires the dispatcher into the surface manager's inbound
// handler. lib may be nil.
func NewDispatcher(gw *coach.Gateway, sessions *session.Manager, surfaces *Manager, lib *library.Library, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		gateway:  gw,
		sessions: sessions,
		surfaces: surfaces,
		library:  lib,
		logger:   logger,
	}
	surfaces.SetHandler(d.handle)
	return d
}

func (d *Dispatcher) handle(msg *InboundMessage) {
	// Each inbound message runs on its own goroutine so a slow generation
	// on one surface never stalls another.
	go d.respond(msg)
}

func (d *Dispatcher) respond(msg *InboundMessage) {
	ctx := context.Background()
	sess := d.sessions.ForKey(msg.Platform + ":" + msg.UserID)

	userPrompt := prompt.Strategy(msg.Content)
	if d.library != nil {
		entries, err := d.library.Query(ctx, msg.Content, evidenceTopK)
		if err != nil {
			d.logger.Warn("evidence lookup failed", zap.Error(err))
		} else {
			userPrompt = prompt.WithEvidence(userPrompt, library.FormatEvidence(entries))
		}
	}

	var reply string
	sess.Do(func() {
		sess.Meter.Memory.Append(memory.RoleUser, msg.Content, map[string]string{"platform": msg.Platform})

		req := &provider.ChatRequest{
			Model:       sess.Defaults.Model,
			System:      prompt.System,
			Messages:    []provider.Message{{Role: "user", Content: userPrompt}},
			Temperature: sess.Defaults.Temperature,
			MaxTokens:   sess.Defaults.MaxTokens,
			UseCache:    sess.Defaults.UseCache,
		}
		text, err := d.gateway.Generate(ctx, sess.Meter, req)
		if err != nil {
			reply = replyForError(err)
			return
		}
		reply = text
	})

	out := &OutboundMessage{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		Content:   reply,
		ReplyTo:   msg.ReplyTo,
	}
	if err := d.surfaces.Send(ctx, out); err != nil {
		d.logger.Error("reply delivery failed",
			zap.String("platform", msg.Platform), zap.Error(err))
	}
}

// replyForError maps gateway errors to user-facing chat text. Rate-limit
// denials and provider rejections carry their own messages; anything else
// stays generic.
func replyForError(err error) string {
	var rle *coach.RateLimitError
	if errors.As(err, &rle) {
		return "You've hit the usage limit: " + rle.Reason + ". Please try again in a little while."
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return "The coaching service rejected the request: " + apiErr.Message
	}
	return coach.ErrUnavailable.Error() + ". Please try again shortly."
}
