// Package memory provides an in-memory implementation of the Bulkhead
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/record"
)

// Compile-time interface checks.
var (
	_ organization.Store = (*Store)(nil)
	_ membership.Store   = (*Store)(nil)
	_ audit.Store        = (*Store)(nil)
	_ record.Store       = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Bulkhead entities.
type Store struct {
	mu sync.RWMutex

	orgs         map[string]*organization.Organization
	memberships  map[string]*membership.Membership
	auditEntries map[string]*audit.Entry
	records      map[string]*record.Record // "type/id" -> record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		orgs:         make(map[string]*organization.Organization),
		memberships:  make(map[string]*membership.Membership),
		auditEntries: make(map[string]*audit.Entry),
		records:      make(map[string]*record.Record),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Organization Store
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(_ context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[o.ID.String()] = copyOrganization(o)
	return nil
}

func (s *Store) GetOrganization(_ context.Context, orgID id.OrgID) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[orgID.String()]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, bulkhead.ErrNotFound)
	}
	return copyOrganization(o), nil
}

func (s *Store) GetOrganizationBySlug(_ context.Context, slug string) (*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orgs {
		if o.Slug == slug {
			return copyOrganization(o), nil
		}
	}
	return nil, fmt.Errorf("organization slug %q: %w", slug, bulkhead.ErrNotFound)
}

func (s *Store) UpdateOrganization(_ context.Context, o *organization.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orgs[o.ID.String()]
	if !ok {
		return fmt.Errorf("organization %s: %w", o.ID, bulkhead.ErrNotFound)
	}
	c := copyOrganization(o)
	c.Active = cur.Active // active is managed by SetOrganizationActive
	s.orgs[o.ID.String()] = c
	return nil
}

func (s *Store) SetOrganizationActive(_ context.Context, orgID id.OrgID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID.String()]
	if !ok {
		return fmt.Errorf("organization %s: %w", orgID, bulkhead.ErrNotFound)
	}
	o.Active = active
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListOrganizations(_ context.Context, filter *organization.ListFilter) ([]*organization.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*organization.Organization
	for _, o := range s.orgs {
		if filter != nil {
			if filter.Active != nil && o.Active != *filter.Active {
				continue
			}
			if filter.Search != "" && !matchesSearch(o, filter.Search) {
				continue
			}
		}
		result = append(result, copyOrganization(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return applyPagination(result, paginationOptsOrg(filter)), nil
}

func (s *Store) CountOrganizations(ctx context.Context, filter *organization.ListFilter) (int64, error) {
	f := stripPaginationOrg(filter)
	list, err := s.ListOrganizations(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func matchesSearch(o *organization.Organization, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(o.Name), q) ||
		strings.Contains(strings.ToLower(o.Slug), q)
}

// ──────────────────────────────────────────────────
// Membership Store
// ──────────────────────────────────────────────────

func (s *Store) CreateMembership(_ context.Context, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Status == membership.StatusActive {
		for _, e := range s.memberships {
			if e.UserID == m.UserID && e.OrgID == m.OrgID && e.Status == membership.StatusActive {
				return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
			}
		}
	}
	s.memberships[m.ID.String()] = copyMembership(m)
	return nil
}

func (s *Store) GetMembership(_ context.Context, memberID id.MembershipID) (*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[memberID.String()]
	if !ok {
		return nil, fmt.Errorf("membership %s: %w", memberID, bulkhead.ErrNotFound)
	}
	return copyMembership(m), nil
}

func (s *Store) ListMemberships(_ context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*membership.Membership
	for _, m := range s.memberships {
		if filter != nil {
			if filter.OrgID != nil && m.OrgID != *filter.OrgID {
				continue
			}
			if filter.UserID != "" && m.UserID != filter.UserID {
				continue
			}
			if filter.Status != "" && m.Status != filter.Status {
				continue
			}
		}
		result = append(result, copyMembership(m))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return applyPagination(result, paginationOptsMember(filter)), nil
}

func (s *Store) ListActiveOrgsForUser(_ context.Context, userID string) ([]id.OrgID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []id.OrgID
	for _, m := range s.memberships {
		if m.UserID != userID || m.Status != membership.StatusActive {
			continue
		}
		if _, ok := seen[m.OrgID.String()]; ok {
			continue
		}
		seen[m.OrgID.String()] = struct{}{}
		result = append(result, m.OrgID)
	}
	return result, nil
}

func (s *Store) UpdateMembershipStatus(_ context.Context, memberID id.MembershipID, status membership.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[memberID.String()]
	if !ok {
		return fmt.Errorf("membership %s: %w", memberID, bulkhead.ErrNotFound)
	}
	if status == membership.StatusActive && m.Status != membership.StatusActive {
		for _, e := range s.memberships {
			if e.ID != m.ID && e.UserID == m.UserID && e.OrgID == m.OrgID && e.Status == membership.StatusActive {
				return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
			}
		}
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteMembership(_ context.Context, memberID id.MembershipID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships, memberID.String())
	return nil
}

func (s *Store) DeleteMembershipsByOrg(_ context.Context, orgID id.OrgID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range s.memberships {
		if m.OrgID == orgID {
			delete(s.memberships, k)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditEntries[e.ID.String()] = copyAuditEntry(e)
	return nil
}

func (s *Store) GetAuditEntry(_ context.Context, auditID id.AuditID) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.auditEntries[auditID.String()]
	if !ok {
		return nil, fmt.Errorf("audit entry %s: %w", auditID, bulkhead.ErrNotFound)
	}
	return copyAuditEntry(e), nil
}

func (s *Store) ListAuditEntries(_ context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*audit.Entry
	for _, e := range s.auditEntries {
		if filter != nil {
			if filter.ActorID != "" && e.ActorID != filter.ActorID {
				continue
			}
			if filter.ActiveOrgID != nil && e.ActiveOrgID != *filter.ActiveOrgID {
				continue
			}
			if filter.AttemptedOrgID != nil && e.AttemptedOrgID != *filter.AttemptedOrgID {
				continue
			}
			if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
				continue
			}
			if filter.Outcome != "" && e.Outcome != filter.Outcome {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyAuditEntry(e))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return applyPagination(result, paginationOptsAudit(filter)), nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	f := stripPaginationAudit(filter)
	list, err := s.ListAuditEntries(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for k, e := range s.auditEntries {
		if e.CreatedAt.Before(before) {
			delete(s.auditEntries, k)
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Record Store
// ──────────────────────────────────────────────────

func recordKey(recordType, recordID string) string {
	return recordType + "/" + recordID
}

func (s *Store) InsertRecord(_ context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(r.Type, r.ID)] = copyRecord(r)
	return nil
}

func (s *Store) GetRecord(_ context.Context, recordType, recordID string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey(recordType, recordID)]
	if !ok {
		return nil, fmt.Errorf("record %s/%s: %w", recordType, recordID, bulkhead.ErrNotFound)
	}
	return copyRecord(r), nil
}

func (s *Store) UpdateRecord(_ context.Context, r *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordKey(r.Type, r.ID)]; !ok {
		return fmt.Errorf("record %s/%s: %w", r.Type, r.ID, bulkhead.ErrNotFound)
	}
	s.records[recordKey(r.Type, r.ID)] = copyRecord(r)
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, recordType, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey(recordType, recordID))
	return nil
}

func (s *Store) ListRecordsByOrg(_ context.Context, recordType string, orgID id.OrgID) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*record.Record
	for _, r := range s.records {
		if r.Type == recordType && r.OrgID == orgID {
			result = append(result, copyRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListRecords(_ context.Context, recordType string) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*record.Record
	for _, r := range s.records {
		if r.Type == recordType {
			result = append(result, copyRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyOrganization(o *organization.Organization) *organization.Organization {
	c := *o
	if o.Metadata != nil {
		c.Metadata = make(map[string]any, len(o.Metadata))
		for k, v := range o.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func copyMembership(m *membership.Membership) *membership.Membership {
	c := *m
	return &c
}

func copyAuditEntry(e *audit.Entry) *audit.Entry {
	c := *e
	return &c
}

func copyRecord(r *record.Record) *record.Record {
	c := *r
	if r.Data != nil {
		c.Data = make([]byte, len(r.Data))
		copy(c.Data, r.Data)
	}
	return &c
}

// Pagination helpers for each entity type.
type pagOpts struct{ limit, offset int }

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset >= len(items) && p.offset > 0 {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

func paginationOptsOrg(f *organization.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsMember(f *membership.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsAudit(f *audit.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func stripPaginationOrg(f *organization.ListFilter) *organization.ListFilter {
	if f == nil {
		return nil
	}
	c := *f
	c.Limit, c.Offset = 0, 0
	return &c
}

func stripPaginationAudit(f *audit.QueryFilter) *audit.QueryFilter {
	if f == nil {
		return nil
	}
	c := *f
	c.Limit, c.Offset = 0, 0
	return &c
}
