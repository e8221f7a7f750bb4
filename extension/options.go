package extension

import (
	"log/slog"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/hook"
	"github.com/xraph/bulkhead/socket"
	"github.com/xraph/bulkhead/store"
)

// ExtOption configures the Bulkhead Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.mgrOpts = append(e.mgrOpts, bulkhead.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithManagerOptions adds manager-level options.
func WithManagerOptions(opts ...bulkhead.Option) ExtOption {
	return func(e *Extension) {
		e.mgrOpts = append(e.mgrOpts, opts...)
	}
}

// WithHook registers a lifecycle hook.
func WithHook(h hook.Hook) ExtOption {
	return func(e *Extension) {
		e.mgrOpts = append(e.mgrOpts, bulkhead.WithHook(h))
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithAuthenticator sets the websocket handshake authenticator and
// enables the socket gateway.
func WithAuthenticator(a socket.Authenticator) ExtOption {
	return func(e *Extension) {
		e.authenticator = a
		e.config.EnableSocket = true
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
