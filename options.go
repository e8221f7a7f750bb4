package bulkhead

import (
	"log/slog"

	"github.com/xraph/bulkhead/hook"
	"github.com/xraph/bulkhead/store"
)

// Option is a functional option for the Manager.
type Option func(*Manager)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(m *Manager) { m.store = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithConfig sets the manager configuration.
func WithConfig(c Config) Option { return func(m *Manager) { m.config = c } }

// WithCache sets the membership resolution cache.
func WithCache(c Cache) Option { return func(m *Manager) { m.cache = c } }

// WithHook registers a lifecycle hook with the manager.
func WithHook(h hook.Hook) Option {
	return func(m *Manager) {
		if m.hooks == nil {
			m.hooks = hook.NewRegistry(m.logger)
		}
		m.hooks.Register(h)
	}
}
