package hook

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
)

// testHook implements Hook + ContextEstablished + ViolationDetected.
type testHook struct {
	establishedCalled bool
	violationCalled   bool
	fail              bool
}

func (t *testHook) Name() string { return "test-hook" }

func (t *testHook) OnContextEstablished(_ context.Context, _ string, _ id.OrgID) error {
	t.establishedCalled = true
	if t.fail {
		return errors.New("boom")
	}
	return nil
}

func (t *testHook) OnViolationDetected(_ context.Context, _ *audit.Entry) error {
	t.violationCalled = true
	return nil
}

// minimalHook only implements Hook (no events).
type minimalHook struct{}

func (m *minimalHook) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	th := &testHook{}
	reg.Register(th)
	reg.Register(&minimalHook{})

	if len(reg.Hooks()) != 2 {
		t.Fatalf("expected 2 hooks, got %d", len(reg.Hooks()))
	}

	reg.EmitContextEstablished(ctx, "u1", id.NewOrgID())
	if !th.establishedCalled {
		t.Fatal("OnContextEstablished was not called")
	}

	reg.EmitViolationDetected(ctx, &audit.Entry{ID: id.NewAuditID()})
	if !th.violationCalled {
		t.Fatal("OnViolationDetected was not called")
	}

	// Should not panic on events with no listeners.
	reg.EmitContextCleared(ctx, "u1", id.NewOrgID())
	reg.EmitShutdown(ctx)
}

func TestRegistryHookErrorDoesNotPropagate(t *testing.T) {
	reg := NewRegistry(slog.Default())
	th := &testHook{fail: true}
	reg.Register(th)

	// Must not panic or abort; the error is logged and swallowed.
	reg.EmitContextEstablished(context.Background(), "u1", id.NewOrgID())
	if !th.establishedCalled {
		t.Fatal("hook was not invoked")
	}
}
