// Package socket is the connection-oriented boundary adapter. A
// websocket outlives any single request, so tenant context is derived
// once, at handshake, and pinned to the connection: the first frame
// must authenticate, every later frame executes under the handshake
// organization, and teardown runs on every exit path. Outbound frames
// pass through the post-hoc sweep before they reach the wire.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xraph/forge"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/interceptor"
)

// Frame kinds.
const (
	FrameAuth     = "auth"
	FrameMessage  = "message"
	FrameResponse = "response"
	FrameError    = "error"
	FramePing     = "ping"
	FramePong     = "pong"
)

// Frame is the wire envelope for socket traffic.
type Frame struct {
	ID     string          `json:"id,omitempty"`
	Kind   string          `json:"kind"`
	Method string          `json:"method,omitempty"`
	Token  string          `json:"token,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Conn is the transport the server speaks. forge.Connection satisfies
// it; tests use an in-memory fake.
type Conn interface {
	ID() string
	Read() ([]byte, error)
	WriteJSON(v any) error
}

// Handler processes one inbound frame. The context carries the
// connection's tenant scope; the returned value is serialized into a
// response frame after the sweep clears it.
type Handler func(ctx context.Context, conn *Connection, data json.RawMessage) (any, error)

// Server drives authenticated, tenant-pinned socket sessions.
type Server struct {
	mgr      *bulkhead.Manager
	sweeper  *interceptor.Interceptor
	auth     Authenticator
	conns    *ConnectionManager
	logger   *slog.Logger
	handlers map[string]Handler
	basePath string
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator sets the handshake authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) { s.auth = a }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBasePath sets the websocket mount path.
func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// NewServer creates a socket server bound to the manager. An
// authenticator is required before serving; there is no anonymous mode.
func NewServer(mgr *bulkhead.Manager, opts ...Option) *Server {
	s := &Server{
		mgr:      mgr,
		sweeper:  interceptor.New(mgr),
		conns:    NewConnectionManager(),
		logger:   mgr.Logger(),
		handlers: make(map[string]Handler),
		basePath: "/ws",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// Handle registers a handler for a frame method.
func (s *Server) Handle(method string, fn Handler) {
	s.handlers[method] = fn
}

// RegisterRoutes mounts the websocket endpoint on a forge router.
func (s *Server) RegisterRoutes(router forge.Router) error {
	return router.WebSocket(s.basePath, s.handleWebSocket)
}

func (s *Server) handleWebSocket(ctx forge.Context, conn forge.Connection) error {
	return s.Serve(ctx.Context(), conn)
}

// Serve runs one connection's lifecycle: auth handshake, frame loop,
// teardown. It returns when the connection closes or the handshake is
// refused.
func (s *Server) Serve(ctx context.Context, conn Conn) error {
	if s.auth == nil {
		return fmt.Errorf("socket: no authenticator configured")
	}

	connID := conn.ID()
	if connID == "" {
		connID = id.NewConnectionID().String()
	}

	identity, authFrameID, err := s.handshake(ctx, conn)
	if err != nil {
		return err
	}

	// Establish tenant context once for the connection's lifetime.
	connCtx, err := s.mgr.SetCurrent(ctx, identity.Actor, identity.OrgID)
	if err != nil {
		conn.WriteJSON(errorFrame(authFrameID, "organization context could not be established")) //nolint:errcheck // best-effort before disconnect
		return fmt.Errorf("socket: establish context: %w", err)
	}

	state := NewConnection(connID, identity)
	s.conns.Add(state)
	defer func() {
		s.conns.Remove(connID)
		s.mgr.ClearCurrent(connCtx)
		s.logger.Info("socket disconnected", slog.String("conn_id", connID))
	}()

	if err := conn.WriteJSON(Frame{ID: authFrameID, Kind: FrameResponse}); err != nil {
		return err
	}
	s.logger.Info("socket authenticated",
		slog.String("conn_id", connID),
		slog.String("actor", identity.Actor.ID),
		slog.String("org_id", identity.OrgID.String()),
	)

	for {
		data, err := conn.Read()
		if err != nil {
			return nil // connection closed
		}
		state.Touch()

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			if writeErr := conn.WriteJSON(errorFrame("", "invalid frame")); writeErr != nil {
				return writeErr
			}
			continue
		}

		if frame.Kind == FramePing {
			if writeErr := conn.WriteJSON(Frame{ID: frame.ID, Kind: FramePong}); writeErr != nil {
				return writeErr
			}
			continue
		}

		s.dispatch(connCtx, conn, state, frame)
	}
}

// dispatch runs one frame under the connection's pinned context and
// writes the response. Outbound payloads are swept first; a violating
// response is replaced with an opaque error frame.
func (s *Server) dispatch(ctx context.Context, conn Conn, state *Connection, frame Frame) {
	fn, ok := s.handlers[frame.Method]
	if !ok {
		s.writeError(conn, frame.ID, "unknown method")
		return
	}

	result, err := fn(ctx, state, frame.Data)
	if err != nil {
		s.writeError(conn, frame.ID, err.Error())
		return
	}

	if err := s.sweeper.Sweep(ctx, result); err != nil {
		s.writeError(conn, frame.ID, "response withheld")
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.writeError(conn, frame.ID, "response could not be encoded")
		return
	}
	if err := conn.WriteJSON(Frame{ID: frame.ID, Kind: FrameResponse, Data: data}); err != nil {
		s.logger.Warn("socket write failed",
			slog.String("conn_id", state.ID),
			slog.String("error", err.Error()),
		)
	}
}

// handshake reads and validates the mandatory first frame.
func (s *Server) handshake(ctx context.Context, conn Conn) (*Identity, string, error) {
	data, err := conn.Read()
	if err != nil {
		return nil, "", fmt.Errorf("socket: read auth frame: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		conn.WriteJSON(errorFrame("", "invalid auth frame")) //nolint:errcheck // best-effort before disconnect
		return nil, "", fmt.Errorf("socket: unmarshal auth frame: %w", err)
	}
	if frame.Kind != FrameAuth {
		conn.WriteJSON(errorFrame(frame.ID, "first frame must be auth")) //nolint:errcheck // best-effort before disconnect
		return nil, "", fmt.Errorf("socket: expected auth frame, got %q", frame.Kind)
	}

	identity, err := s.auth.Authenticate(ctx, frame.Token)
	if err != nil {
		conn.WriteJSON(errorFrame(frame.ID, "authentication failed")) //nolint:errcheck // best-effort before disconnect
		return nil, "", fmt.Errorf("socket: auth failed: %w", err)
	}
	return identity, frame.ID, nil
}

func (s *Server) writeError(conn Conn, frameID, msg string) {
	if err := conn.WriteJSON(errorFrame(frameID, msg)); err != nil {
		s.logger.Warn("socket error-frame write failed", slog.String("error", err.Error()))
	}
}

func errorFrame(frameID, msg string) Frame {
	return Frame{ID: frameID, Kind: FrameError, Error: msg}
}
