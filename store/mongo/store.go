// Package mongo provides a MongoDB implementation of the Bulkhead
// composite store using grove ORM. The active-membership invariant is
// enforced by a partial unique index on (org_id, user_id) filtered to
// active documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/audit"
	"github.com/xraph/bulkhead/id"
	"github.com/xraph/bulkhead/membership"
	"github.com/xraph/bulkhead/organization"
	"github.com/xraph/bulkhead/record"
	"github.com/xraph/bulkhead/store"
)

// Collection name constants.
const (
	colOrganizations = "bulkhead_organizations"
	colMemberships   = "bulkhead_memberships"
	colAuditLog      = "bulkhead_audit_log"
	colRecords       = "bulkhead_records"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Bulkhead store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bulkhead collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("bulkhead/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bulkhead collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colOrganizations: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		colMemberships: {
			{
				Keys: bson.D{{Key: "org_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "active"}),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "org_id", Value: 1}}},
		},
		colAuditLog: {
			{Keys: bson.D{{Key: "actor_id", Value: 1}}},
			{Keys: bson.D{{Key: "attempted_org_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colRecords: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "org_id", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Organization operations
// ──────────────────────────────────────────────────

func (s *Store) CreateOrganization(ctx context.Context, o *organization.Organization) error {
	t := now()
	o.CreatedAt = t
	o.UpdatedAt = t
	if _, err := s.mdb.NewInsert(organizationToModel(o)).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: create organization: %w", err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, orgID id.OrgID) (*organization.Organization, error) {
	var m organizationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("organization %s: %w", orgID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get organization: %w", err)
	}
	return organizationFromModel(&m), nil
}

func (s *Store) GetOrganizationBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	var m organizationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("organization slug %q: %w", slug, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get organization by slug: %w", err)
	}
	return organizationFromModel(&m), nil
}

func (s *Store) UpdateOrganization(ctx context.Context, o *organization.Organization) error {
	existing, err := s.GetOrganization(ctx, o.ID)
	if err != nil {
		return err
	}
	o.UpdatedAt = now()
	m := organizationToModel(o)
	m.Active = existing.Active // active is managed by SetOrganizationActive
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: update organization: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("organization %s: %w", o.ID, bulkhead.ErrNotFound)
	}
	return nil
}

func (s *Store) SetOrganizationActive(ctx context.Context, orgID id.OrgID, active bool) error {
	o, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	o.Active = active
	o.UpdatedAt = now()
	m := organizationToModel(o)
	if _, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: set organization active: %w", err)
	}
	return nil
}

func (s *Store) ListOrganizations(ctx context.Context, filter *organization.ListFilter) ([]*organization.Organization, error) {
	var models []organizationModel
	f := bson.M{}
	if filter != nil {
		if filter.Active != nil {
			f["active"] = *filter.Active
		}
		if filter.Search != "" {
			f["$or"] = bson.A{
				bson.M{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
				bson.M{"slug": bson.M{"$regex": filter.Search, "$options": "i"}},
			}
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	f := bson.M{}
	if filter != nil {
		if filter.Active != nil {
			f["active"] = *filter.Active
		}
		if filter.Search != "" {
			f["$or"] = bson.A{
				bson.M{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
				bson.M{"slug": bson.M{"$regex": filter.Search, "$options": "i"}},
			}
		}
	}
	count, err := s.mdb.NewFind((*organizationModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulkhead: count organizations: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Membership operations
// ──────────────────────────────────────────────────

func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	t := now()
	m.CreatedAt = t
	m.UpdatedAt = t
	if _, err := s.mdb.NewInsert(membershipToModel(m)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
		}
		return fmt.Errorf("bulkhead: create membership: %w", err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, memberID id.MembershipID) (*membership.Membership, error) {
	var m membershipModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": memberID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("membership %s: %w", memberID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get membership: %w", err)
	}
	return membershipFromModel(&m), nil
}

func (s *Store) ListMemberships(ctx context.Context, filter *membership.ListFilter) ([]*membership.Membership, error) {
	var models []membershipModel
	f := bson.M{}
	if filter != nil {
		if filter.OrgID != nil {
			f["org_id"] = filter.OrgID.String()
		}
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.Status != "" {
			f["status"] = string(filter.Status)
		}
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID, "status": string(membership.StatusActive)}).
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
	m.UpdatedAt = now()
	model := membershipToModel(m)
	if _, err := s.mdb.NewUpdate(model).Filter(bson.M{"_id": model.ID}).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s in organization %s: %w", m.UserID, m.OrgID, bulkhead.ErrDuplicateMembership)
		}
		return fmt.Errorf("bulkhead: update membership status: %w", err)
	}
	return nil
}

func (s *Store) DeleteMembership(ctx context.Context, memberID id.MembershipID) error {
	_, err := s.mdb.NewDelete((*membershipModel)(nil)).
		Filter(bson.M{"_id": memberID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: delete membership: %w", err)
	}
	return nil
}

func (s *Store) DeleteMembershipsByOrg(ctx context.Context, orgID id.OrgID) error {
	_, err := s.mdb.NewDelete((*membershipModel)(nil)).
		Many().
		Filter(bson.M{"org_id": orgID.String()}).
		Exec(ctx)
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
		e.CreatedAt = now()
	}
	if _, err := s.mdb.NewInsert(auditEntryToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: create audit entry: %w", err)
	}
	return nil
}

func (s *Store) GetAuditEntry(ctx context.Context, auditID id.AuditID) (*audit.Entry, error) {
	var m auditEntryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": auditID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("audit entry %s: %w", auditID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get audit entry: %w", err)
	}
	return auditEntryFromModel(&m), nil
}

// auditFilter translates a query filter to a bson document.
func auditFilter(filter *audit.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ActorID != "" {
		f["actor_id"] = filter.ActorID
	}
	if filter.ActiveOrgID != nil {
		f["active_org_id"] = filter.ActiveOrgID.String()
	}
	if filter.AttemptedOrgID != nil {
		f["attempted_org_id"] = filter.AttemptedOrgID.String()
	}
	if filter.ResourceType != "" {
		f["resource_type"] = filter.ResourceType
	}
	if filter.Outcome != "" {
		f["outcome"] = string(filter.Outcome)
	}
	created := bson.M{}
	if filter.After != nil {
		created["$gte"] = *filter.After
	}
	if filter.Before != nil {
		created["$lte"] = *filter.Before
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	return f
}

func (s *Store) ListAuditEntries(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditEntryModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*auditEntryModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulkhead: count audit entries: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditEntryModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
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
	if _, err := s.mdb.NewInsert(recordToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bulkhead: insert record: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, recordType, recordID string) (*record.Record, error) {
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": recordKey(recordType, recordID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("record %s/%s: %w", recordType, recordID, bulkhead.ErrNotFound)
		}
		return nil, fmt.Errorf("bulkhead: get record: %w", err)
	}
	return recordFromModel(&m), nil
}

func (s *Store) UpdateRecord(ctx context.Context, r *record.Record) error {
	m := recordToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Key}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: update record: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("record %s/%s: %w", r.Type, r.ID, bulkhead.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, recordType, recordID string) error {
	_, err := s.mdb.NewDelete((*recordModel)(nil)).
		Filter(bson.M{"_id": recordKey(recordType, recordID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bulkhead: delete record: %w", err)
	}
	return nil
}

func (s *Store) ListRecordsByOrg(ctx context.Context, recordType string, orgID id.OrgID) ([]*record.Record, error) {
	var models []recordModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"type": recordType, "org_id": orgID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"type": recordType}).
		Sort(bson.D{{Key: "created_at", Value: 1}}).
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
