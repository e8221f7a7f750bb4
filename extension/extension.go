// Package extension provides a Forge extension entry point for Bulkhead.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/api"
	"github.com/xraph/bulkhead/socket"
	"github.com/xraph/bulkhead/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "bulkhead"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Multi-tenant isolation core (scoped data access, context management, violation audit)"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Bulkhead as a Forge extension.
type Extension struct {
	config        Config
	mgr           *bulkhead.Manager
	apiHandler    *api.API
	socketServer  *socket.Server
	logger        *slog.Logger
	mgrOpts       []bulkhead.Option
	authenticator socket.Authenticator
}

// New creates a Bulkhead Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Manager returns the underlying Bulkhead manager.
func (e *Extension) Manager() *bulkhead.Manager { return e.mgr }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the manager,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	// Register the manager in the DI container.
	if err := vessel.Provide(fapp.Container(), func() (*bulkhead.Manager, error) {
		return e.mgr, nil
	}); err != nil {
		return fmt.Errorf("bulkhead: register manager in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Build manager options.
	opts := make([]bulkhead.Option, 0, len(e.mgrOpts)+2)
	opts = append(opts, bulkhead.WithLogger(logger))

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, bulkhead.WithStore(s))
	}

	// Append user-provided options (may override store).
	opts = append(opts, e.mgrOpts...)

	mgr, err := bulkhead.NewManager(opts...)
	if err != nil {
		return fmt.Errorf("bulkhead: create manager: %w", err)
	}
	e.mgr = mgr

	// Create API handler.
	e.apiHandler = api.New(mgr, fapp.Router())

	// Register HTTP routes unless disabled.
	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("bulkhead: register routes: %w", err)
		}
	}

	// Register the websocket gateway when enabled.
	if e.config.EnableSocket {
		if e.authenticator == nil {
			return errors.New("bulkhead: socket enabled without an authenticator")
		}
		e.socketServer = socket.NewServer(mgr,
			socket.WithAuthenticator(e.authenticator),
			socket.WithLogger(logger),
			socket.WithBasePath(e.config.SocketPath),
		)
		if err := e.socketServer.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("bulkhead: register socket routes: %w", err)
		}
	}

	return nil
}

// Start runs migrations if enabled and starts the manager.
func (e *Extension) Start(ctx context.Context) error {
	if e.mgr == nil {
		return errors.New("bulkhead: extension not initialized")
	}

	// Run migrations unless disabled.
	if !e.config.DisableMigrate {
		s := e.mgr.Store()
		if s != nil {
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("bulkhead: migration failed: %w", err)
			}
		}
	}

	return e.mgr.Start(ctx)
}

// Stop gracefully shuts down the manager.
func (e *Extension) Stop(ctx context.Context) error {
	if e.mgr == nil {
		return nil
	}
	return e.mgr.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.mgr == nil {
		return errors.New("bulkhead: extension not initialized")
	}
	s := e.mgr.Store()
	if s == nil {
		return errors.New("bulkhead: no store configured")
	}
	return s.Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all bulkhead API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}
