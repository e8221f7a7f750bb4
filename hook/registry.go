package hook

import (
	"context"
	"log/slog"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
)

// Named entry types pair a hook with its name for logging.

type establishedEntry struct {
	name string
	hook ContextEstablished
}
type clearedEntry struct {
	name string
	hook ContextCleared
}
type violationEntry struct {
	name string
	hook ViolationDetected
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events.
// It type-caches hooks at registration time so emit calls iterate only
// over hooks implementing the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	established []establishedEntry
	cleared     []clearedEntry
	violation   []violationEntry
	shutdown    []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(ContextEstablished); ok {
		r.established = append(r.established, establishedEntry{name, e})
	}
	if e, ok := h.(ContextCleared); ok {
		r.cleared = append(r.cleared, clearedEntry{name, e})
	}
	if e, ok := h.(ViolationDetected); ok {
		r.violation = append(r.violation, violationEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitContextEstablished notifies all hooks that implement ContextEstablished.
func (r *Registry) EmitContextEstablished(ctx context.Context, actorID string, orgID id.OrgID) {
	for _, e := range r.established {
		if err := e.hook.OnContextEstablished(ctx, actorID, orgID); err != nil {
			r.logHookError("OnContextEstablished", e.name, err)
		}
	}
}

// EmitContextCleared notifies all hooks that implement ContextCleared.
func (r *Registry) EmitContextCleared(ctx context.Context, actorID string, orgID id.OrgID) {
	for _, e := range r.cleared {
		if err := e.hook.OnContextCleared(ctx, actorID, orgID); err != nil {
			r.logHookError("OnContextCleared", e.name, err)
		}
	}
}

// EmitViolationDetected notifies all hooks that implement ViolationDetected.
func (r *Registry) EmitViolationDetected(ctx context.Context, entry *audit.Entry) {
	for _, e := range r.violation {
		if err := e.hook.OnViolationDetected(ctx, entry); err != nil {
			r.logHookError("OnViolationDetected", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated — they must not abort the caller.
func (r *Registry) logHookError(event, hookName string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
