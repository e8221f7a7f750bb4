package socket

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/record"
	"github.com/xraph/bulkhead/store/memory"
)

// fakeConn is an in-memory Conn: tests feed inbound frames and collect
// everything the server writes.
type fakeConn struct {
	id      string
	inbound chan []byte

	mu      sync.Mutex
	written []Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: "conn-test", inbound: make(chan []byte, 32)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Read() ([]byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func (c *fakeConn) WriteJSON(v any) error {
	frame, ok := v.(Frame)
	if !ok {
		return io.ErrUnexpectedEOF
	}
	c.mu.Lock()
	c.written = append(c.written, frame)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) send(t *testing.T, f Frame) {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	c.inbound <- data
}

func (c *fakeConn) frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.written))
	copy(out, c.written)
	return out
}

// waitFrames polls until the connection has written at least n frames.
func (c *fakeConn) waitFrames(t *testing.T, n int) []Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frames := c.frames(); len(frames) >= n {
			return frames
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frames, have %d", n, len(c.frames()))
	return nil
}

func newTestManager(t *testing.T) (*bulkhead.Manager, *memory.Store) {
	t.Helper()
	s := memory.New()
	mgr, err := bulkhead.NewManager(bulkhead.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	return mgr, s
}

func createOrg(t *testing.T, s *memory.Store, name string) id.OrgID {
	t.Helper()
	o := &organization.Organization{ID: id.NewOrgID(), Name: name, Slug: name, Active: true}
	if err := s.CreateOrganization(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	return o.ID
}

func newTestServer(t *testing.T, mgr *bulkhead.Manager, orgID id.OrgID) *Server {
	t.Helper()
	auth := NewStaticTokenAuthenticator(TokenEntry{
		Token: "secret",
		Identity: Identity{
			Actor: bulkhead.Actor{Kind: bulkhead.ActorUser, ID: "user-1"},
			OrgID: orgID,
		},
	})
	return NewServer(mgr, WithAuthenticator(auth))
}

func TestHandshakeScopesConnection(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-4")
	srv := newTestServer(t, mgr, orgID)

	var seen []id.OrgID
	var mu sync.Mutex
	srv.Handle("whoami", func(ctx context.Context, conn *Connection, _ json.RawMessage) (any, error) {
		got, ok := mgr.CurrentOrgID(ctx)
		if !ok {
			t.Error("handler must see the handshake organization")
		}
		mu.Lock()
		seen = append(seen, got)
		mu.Unlock()
		return map[string]string{"org": got.String()}, nil
	})

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-0", Kind: FrameAuth, Token: "secret"})
	conn.waitFrames(t, 1) // auth ack

	// Every message on the connection sees the same organization.
	for i := range 10 {
		conn.send(t, Frame{ID: "f-" + string(rune('a'+i)), Kind: FrameMessage, Method: "whoami"})
	}
	frames := conn.waitFrames(t, 11)

	close(conn.inbound)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 10 {
		t.Fatalf("expected 10 handled messages, got %d", len(seen))
	}
	for _, got := range seen {
		if got != orgID {
			t.Fatalf("expected %s, got %s", orgID, got)
		}
	}
	for _, f := range frames[1:] {
		if f.Kind != FrameResponse {
			t.Fatalf("expected response frame, got %s (%s)", f.Kind, f.Error)
		}
	}

	// The caller's context was never touched.
	if _, ok := mgr.CurrentOrgID(context.Background()); ok {
		t.Fatal("tenant context leaked outside the connection")
	}
	if srv.Connections().Count() != 0 {
		t.Fatal("connection state must be torn down on close")
	}
}

func TestFirstFrameMustBeAuth(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")
	srv := newTestServer(t, mgr, orgID)

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-1", Kind: FrameMessage, Method: "whoami"})
	if err := <-done; err == nil {
		t.Fatal("expected handshake failure")
	}

	frames := conn.frames()
	if len(frames) != 1 || frames[0].Kind != FrameError {
		t.Fatalf("expected a single error frame, got %+v", frames)
	}
}

func TestBadTokenRejected(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")
	srv := newTestServer(t, mgr, orgID)

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-1", Kind: FrameAuth, Token: "wrong"})
	if err := <-done; err == nil {
		t.Fatal("expected auth failure")
	}
	if srv.Connections().Count() != 0 {
		t.Fatal("failed handshake must not register a connection")
	}
}

func TestUnknownOrganizationRejectedAtHandshake(t *testing.T) {
	mgr, _ := newTestManager(t)
	srv := newTestServer(t, mgr, id.NewOrgID()) // org never created

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-1", Kind: FrameAuth, Token: "secret"})
	if err := <-done; err == nil {
		t.Fatal("expected context establishment failure")
	}
}

func TestOutboundFramesSwept(t *testing.T) {
	mgr, s := newTestManager(t)
	orgA := createOrg(t, s, "org-a")
	orgB := createOrg(t, s, "org-b")
	srv := newTestServer(t, mgr, orgA)

	// A handler that leaks a foreign record.
	srv.Handle("leak", func(ctx context.Context, conn *Connection, _ json.RawMessage) (any, error) {
		return &record.Record{Type: "invoice", ID: "b-1", OrgID: orgB}, nil
	})

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-0", Kind: FrameAuth, Token: "secret"})
	conn.send(t, Frame{ID: "f-1", Kind: FrameMessage, Method: "leak"})
	frames := conn.waitFrames(t, 2)

	close(conn.inbound)
	<-done

	resp := frames[1]
	if resp.Kind != FrameError {
		t.Fatalf("expected error frame, got %s", resp.Kind)
	}
	if resp.Error != "response withheld" {
		t.Fatalf("violation detail must stay opaque, got %q", resp.Error)
	}
	if len(resp.Data) != 0 {
		t.Fatal("foreign payload must not reach the wire")
	}
}

func TestPingPong(t *testing.T) {
	mgr, s := newTestManager(t)
	orgID := createOrg(t, s, "org-1")
	srv := newTestServer(t, mgr, orgID)

	conn := newFakeConn()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), conn) }()

	conn.send(t, Frame{ID: "f-0", Kind: FrameAuth, Token: "secret"})
	conn.send(t, Frame{ID: "f-1", Kind: FramePing})
	frames := conn.waitFrames(t, 2)

	close(conn.inbound)
	<-done

	if frames[1].Kind != FramePong || frames[1].ID != "f-1" {
		t.Fatalf("expected pong for f-1, got %+v", frames[1])
	}
}

func TestConnectionManagerByOrg(t *testing.T) {
	cm := NewConnectionManager()
	orgA := id.NewOrgID()
	orgB := id.NewOrgID()

	cm.Add(NewConnection("c1", &Identity{OrgID: orgA}))
	cm.Add(NewConnection("c2", &Identity{OrgID: orgA}))
	cm.Add(NewConnection("c3", &Identity{OrgID: orgB}))

	if got := len(cm.ByOrg(orgA)); got != 2 {
		t.Fatalf("expected 2 connections for orgA, got %d", got)
	}
	cm.Remove("c1")
	if got := len(cm.ByOrg(orgA)); got != 1 {
		t.Fatalf("expected 1 connection after remove, got %d", got)
	}
	if cm.Count() != 2 {
		t.Fatalf("expected 2 total, got %d", cm.Count())
	}
}
