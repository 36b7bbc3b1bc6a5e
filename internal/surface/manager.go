package surface

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager owns the chat surface adapters. Inbound messages from every
// platform funnel into one handler (the dispatcher); outbound replies are
// addressed by platform name.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	handler  MessageHandler
	logger   *zap.Logger
}

// NewManager creates a surface manager with no adapters registered.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// SetHandler installs the inbound message callback. Must be wired before
// Register so no adapter ever sees a nil handler.
func (m *Manager) SetHandler(h MessageHandler) {
	m.handler = h
}

// Register adds an adapter under its platform name and hooks its inbound
// messages into the shared handler.
func (m *Manager) Register(adapter Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	platform := adapter.Platform()
	m.adapters[platform] = adapter
	adapter.OnMessage(func(msg *InboundMessage) {
		if m.handler != nil {
			m.handler(msg)
		}
	})
	m.logger.Info("registered surface adapter", zap.String("platform", platform))
}

// ConnectAll starts every registered adapter, stopping at the first
// failure. The caller decides whether a partial start is fatal; the REST
// adapter cannot fail to connect, so the HTTP surface stays usable.
func (m *Manager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for platform, adapter := range m.adapters {
		if err := adapter.Connect(ctx); err != nil {
			m.logger.Error("adapter connect failed",
				zap.String("platform", platform), zap.Error(err))
			return fmt.Errorf("connect %s: %w", platform, err)
		}
		m.logger.Info("adapter connected", zap.String("platform", platform))
	}
	return nil
}

// Send delivers a reply to the channel named in the message, on whichever
// platform it came from.
func (m *Manager) Send(ctx context.Context, msg *OutboundMessage) error {
	m.mu.RLock()
	adapter, ok := m.adapters[msg.Platform]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no adapter for platform: %s", msg.Platform)
	}
	return adapter.Send(ctx, msg)
}

// Close shuts down all adapters, logging per-adapter failures rather than
// aborting the shutdown.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for platform, adapter := range m.adapters {
		if err := adapter.Close(); err != nil {
			m.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}
