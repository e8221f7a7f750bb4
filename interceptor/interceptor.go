// Package interceptor implements the post-hoc security sweep: a
// reflective walk over outgoing payloads that blocks any response
// carrying data owned by an organization other than the active one. It
// is the last line of defense, catching code paths that bypassed the
// scoped access layer.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
)

// ErrSweepDepthExceeded means the payload nests deeper than the
// configured limit. The sweep fails closed: an unverifiable payload is
// withheld like a violating one.
var ErrSweepDepthExceeded = errors.New("interceptor: payload exceeds sweep depth")

// Interceptor sweeps outgoing payloads for foreign-tenant values.
type Interceptor struct {
	mgr      *bulkhead.Manager
	maxDepth int
}

// New creates an Interceptor bound to the manager. Sweep depth comes
// from the manager's config.
func New(mgr *bulkhead.Manager) *Interceptor {
	depth := mgr.Config().MaxSweepDepth
	if depth <= 0 {
		depth = 8
	}
	return &Interceptor{mgr: mgr, maxDepth: depth}
}

// Sweep walks payload and returns ErrCrossTenant if any reachable value
// is owned by an organization other than the active one. The first
// violation is recorded in the audit log and aborts the sweep; the
// caller must withhold the response. Superuser actors and contexts
// marked admin are exempt: cross-tenant reads are their job.
func (i *Interceptor) Sweep(ctx context.Context, payload any) error {
	if payload == nil {
		return nil
	}
	if exempt(ctx) {
		return nil
	}
	orgID, _ := i.mgr.CurrentOrgID(ctx)

	w := &walker{orgID: orgID, maxDepth: i.maxDepth, visited: make(map[visitKey]struct{})}
	offender, err := w.walk(reflect.ValueOf(payload), 0)
	if err != nil {
		return err
	}
	if offender == nil {
		return nil
	}

	resourceType, resourceID := describe(offender)
	i.mgr.ReportViolation(ctx, offender.OwningOrg(), resourceType, resourceID,
		audit.OutcomeStripped, "foreign-tenant value in outgoing payload")
	return fmt.Errorf("%s/%s owned by %s: %w",
		resourceType, resourceID, offender.OwningOrg(), bulkhead.ErrCrossTenant)
}

func exempt(ctx context.Context) bool {
	if bulkhead.IsAdmin(ctx) {
		return true
	}
	actor, ok := bulkhead.ActorFrom(ctx)
	return ok && actor.Superuser
}

func describe(o bulkhead.Owned) (resourceType, resourceID string) {
	if d, ok := o.(bulkhead.Describable); ok {
		return d.ResourceType(), d.ResourceID()
	}
	return fmt.Sprintf("%T", o), ""
}

// visitKey identifies a pointer-like value already seen, so cyclic
// payloads terminate. Slices carry their length: two slices over the
// same backing array are distinct views, and skipping the longer one
// because a prefix was walked would leave its tail unswept.
type visitKey struct {
	ptr    uintptr
	length int
	typ    reflect.Type
}

type walker struct {
	orgID    id.OrgID
	maxDepth int
	visited  map[visitKey]struct{}
}

// walk returns the first reachable Owned value whose owner differs from
// the active organization. Values owned by the active organization are
// passed over but still descended into, so a clean wrapper cannot hide
// a foreign element. Walking stops at unexported fields, which cannot
// be read through reflection without unsafe.
func (w *walker) walk(v reflect.Value, depth int) (bulkhead.Owned, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if depth > w.maxDepth {
		return nil, ErrSweepDepthExceeded
	}

	// A typed nil still satisfies Owned through its method set; calling
	// OwningOrg on it would dereference nil. Nothing is reachable
	// through a nil value, so it is clean.
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return nil, nil
		}
	}

	if o := asOwned(v); o != nil && o.OwningOrg() != w.orgID {
		return o, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.Kind() == reflect.Pointer {
			key := visitKey{ptr: v.Pointer(), typ: v.Type()}
			if _, seen := w.visited[key]; seen {
				return nil, nil
			}
			w.visited[key] = struct{}{}
		}
		return w.walk(v.Elem(), depth+1)

	case reflect.Struct:
		t := v.Type()
		for f := 0; f < t.NumField(); f++ {
			if t.Field(f).PkgPath != "" {
				continue // unexported
			}
			if o, err := w.walk(v.Field(f), depth+1); o != nil || err != nil {
				return o, err
			}
		}

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice {
			key := visitKey{ptr: v.Pointer(), length: v.Len(), typ: v.Type()}
			if _, seen := w.visited[key]; seen {
				return nil, nil
			}
			w.visited[key] = struct{}{}
		}
		for e := 0; e < v.Len(); e++ {
			if o, err := w.walk(v.Index(e), depth+1); o != nil || err != nil {
				return o, err
			}
		}

	case reflect.Map:
		key := visitKey{ptr: v.Pointer(), typ: v.Type()}
		if _, seen := w.visited[key]; seen {
			return nil, nil
		}
		w.visited[key] = struct{}{}
		iter := v.MapRange()
		for iter.Next() {
			if o, err := w.walk(iter.Value(), depth+1); o != nil || err != nil {
				return o, err
			}
		}
	}

	return nil, nil
}

// asOwned extracts a bulkhead.Owned from v, reaching through
// addressability so values with pointer-receiver methods are caught
// whether the payload carries them by value or by pointer.
func asOwned(v reflect.Value) bulkhead.Owned {
	if !v.CanInterface() {
		return nil
	}
	if o, ok := v.Interface().(bulkhead.Owned); ok {
		return o
	}
	if v.Kind() == reflect.Struct {
		pv := v
		if !pv.CanAddr() {
			pv = reflect.New(v.Type())
			pv.Elem().Set(v)
		} else {
			pv = pv.Addr()
		}
		if o, ok := pv.Interface().(bulkhead.Owned); ok {
			return o
		}
	}
	return nil
}
