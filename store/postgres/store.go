// Package postgres provides a PostgreSQL implementation of the Bulkhead
// composite store using grove ORM with Go-based migrations. The
// active-membership invariant lives in the schema: a partial unique
// index allows at most one active membership per (org, user) pair.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/record"
	"github.com/xraph/bulkhead/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Bulkhead store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("bulkhead: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bulkhead: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ──────────────────────────────────────────────────
// Organization operations
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(ctx context.Context, o *organization.Organization) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	m := organizationToModel(o)
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: create organization: %w", err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrgID) (*organization.Organization, error) {
	m := new(organizationModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", orgID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization %s: %w", orgID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get organization: %w", err)
	}
	return organizationFromModel(m), nil
}

func (s *Store) GetOrganizationBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	m := new(organizationModel)
	err := s.pgdb.NewSelect(m).Where("slug = ?", slug).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("organization slug %q: %w", slug, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get organization by slug: %w", err)
	}
	return organizationFromModel(m), nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *organization.Organization) error {
	existing, err := s.GetOrganization(ctx, o.ID)
	if err != nil {
		return err
	}
	o.UpdatedAt = time.Now().UTC()
	m := organizationToModel(o)
	m.Active = existing.Active // active is managed by SetOrganizationActive
	if _, err := s.pgdb.NewUpdate(m).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: update organization: %w", err)
	}
	return nil
}

func (s *Store) SetOrganizationActive(ctx context.Context, orgID id.OrgID, active bool) error {
	o, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	o.Active = active
	o.UpdatedAt = time.Now().UTC()
	if _, err := s.pgdb.NewUpdate(organizationToModel(o)).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: set organization active: %w", err)
	}
	return nil
}

func (s *Store) ListOrganizations(ctx context.Context, filter *organization.ListFilter) ([]*organization.Organization, error) {
	var models []organizationModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(slug) LIKE LOWER(?))",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bulkhead: list organizations: %w", err)
	}
	result := make([]*organization.Organization, len(models))
	for i := range models {
		result[i] = organizationFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountOrganizations(ctx context.Context, filter *organization.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*organizationModel)(nil))
	if filter != nil {
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(slug) LIKE LOWER(?))",
				"%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulkhead: count organizations: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Membership operations
// ──────────────────────────────────────────────────

func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.pgdb.NewInsert(membershipToModel(m)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
		}
		return fmt.Errorf("bulkhead: create membership: %w", err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, memberID id.MembershipID) (*membership.Membership, error) {
	m := new(membershipModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", memberID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("membership %s: %w", memberID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get membership: %w", err)
	}
	return membershipFromModel(m), nil
}

func (s *Store) ListMemberships(ctx context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	var models []membershipModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.OrgID != nil {
			q = q.Where("org_id = ?", filter.OrgID.String())
		}
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", string(filter.Status))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bulkhead: list memberships: %w", err)
	}
	result := make([]*membership.Membership, len(models))
	for i := range models {
		result[i] = membershipFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListActiveOrgsForUser(ctx context.Context, userID string) ([]id.OrgID, error) {
	var models []membershipModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		Where("status = ?", string(membership.StatusActive)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulkhead: list active orgs for user: %w", err)
	}
	result := make([]id.OrgID, 0, len(models))
	for i := range models {
		oid, err := id.ParseOrgID(models[i].OrgID)
		if err != nil {
			continue
		}
		result = append(result, oid)
	}
	return result, nil
}

func (s *Store) UpdateMembershipStatus(ctx context.Context, memberID id.MembershipID, status membership.Status) error {
	m, err := s.GetMembership(ctx, memberID)
	if err != nil {
		return err
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	if _, err := s.pgdb.NewUpdate(membershipToModel(m)).WherePK().Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
		}
		return fmt.Errorf("bulkhead: update membership status: %w", err)
	}
	return nil
}

func (s *Store) DeleteMembership(ctx context.Context, memberID id.MembershipID) error {
	_, err := s.pgdb.NewDelete((*membershipModel)(nil)).
		Where("id = ?", memberID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: delete membership: %w", err)
	}
	return nil
}

func (s *Store) DeleteMembershipsByOrg(ctx context.Context, orgID id.OrgID) error {
	_, err := s.pgdb.NewDelete((*membershipModel)(nil)).
		Where("org_id = ?", orgID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: delete memberships by org: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEntry(ctx context.Context, e *audit.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := s.pgdb.NewInsert(auditEntryToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, auditID id.AuditID) (*audit.Entry, error) {
	m := new(auditEntryModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", auditID.String()).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit entry %s: %w", auditID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get audit entry: %w", err)
	}
	return auditEntryFromModel(m), nil
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditEntryModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC")
	if filter != nil {
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.ActiveOrgID != nil {
			q = q.Where("active_org_id = ?", filter.ActiveOrgID.String())
		}
		if filter.AttemptedOrgID != nil {
			q = q.Where("attempted_org_id = ?", filter.AttemptedOrgID.String())
		}
		if filter.ResourceType != "" {
			q = q.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bulkhead: list audit entries: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditEntryFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditEntries(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	q := s.pgdb.NewSelect((*auditEntryModel)(nil))
	if filter != nil {
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.ActiveOrgID != nil {
			q = q.Where("active_org_id = ?", filter.ActiveOrgID.String())
		}
		if filter.AttemptedOrgID != nil {
			q = q.Where("attempted_org_id = ?", filter.AttemptedOrgID.String())
		}
		if filter.ResourceType != "" {
			q = q.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulkhead: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*auditEntryModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulkhead: purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulkhead: purge audit entries rows: %w", err)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Record operations
// ──────────────────────────────────────────────────

func (s *Store) InsertRecord(ctx context.Context, r *record.Record) error {
	if _, err := s.pgdb.NewInsert(recordToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: insert record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recordType, recordID string) (*record.Record, error) {
	m := new(recordModel)
	err := s.pgdb.NewSelect(m).
		Where("type = ?", recordType).
		Where("id = ?", recordID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s/%s: %w", recordType, recordID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get record: %w", err)
	}
	return recordFromModel(m), nil
}

func (s *Store) UpdateRecord(ctx context.Context, r *record.Record) error {
	if _, err := s.GetRecord(ctx, r.Type, r.ID); err != nil {
		return err
	}
	m := recordToModel(r)
	_, err := s.pgdb.NewUpdate(m).
		Where("type = ?", m.Type).
		Where("id = ?", m.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: update record: %w", err)
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, recordType, recordID string) error {
	_, err := s.pgdb.NewDelete((*recordModel)(nil)).
		Where("type = ?", recordType).
		Where("id = ?", recordID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: delete record: %w", err)
	}
	return nil
}

func (s *Store) ListRecordsByOrg(ctx context.Context, recordType string, orgID id.OrgID) ([]*record.Record, error) {
	var models []recordModel
	err := s.pgdb.NewSelect(&models).
		Where("type = ?", recordType).
		Where("org_id = ?", orgID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulkhead: list records by org: %w", err)
	}
	result := make([]*record.Record, len(models))
	for i := range models {
		result[i] = recordFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRecords(ctx context.Context, recordType string) ([]*record.Record, error) {
	var models []recordModel
	err := s.pgdb.NewSelect(&models).
		Where("type = ?", recordType).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulkhead: list records: %w", err)
	}
	result := make([]*record.Record, len(models))
	for i := range models {
		result[i] = recordFromModel(&models[i])
	}
	return result, nil
}
