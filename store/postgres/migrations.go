package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bulkhead store
// (PostgreSQL).
var Migrations = migrate.NewGroup("bulkhead")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_organizations",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bulkhead_organizations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    slug            TEXT NOT NULL,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    UNIQUE(slug)
);

CREATE INDEX IF NOT EXISTS idx_bulkhead_orgs_active ON bulkhead_organizations (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bulkhead_organizations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_memberships",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bulkhead_memberships (
    id              TEXT PRIMARY KEY,
    org_id          TEXT NOT NULL REFERENCES bulkhead_organizations(id) ON DELETE CASCADE,
    user_id         TEXT NOT NULL,
    status          TEXT NOT NULL,
    role            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bulkhead_memberships_active_pair
    ON bulkhead_memberships (org_id, user_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_bulkhead_memberships_user ON bulkhead_memberships (user_id, status);
CREATE INDEX IF NOT EXISTS idx_bulkhead_memberships_org ON bulkhead_memberships (org_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bulkhead_memberships`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_log",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bulkhead_audit_log (
    id               TEXT PRIMARY KEY,
    actor_kind       TEXT NOT NULL,
    actor_id         TEXT NOT NULL,
    active_org_id    TEXT NOT NULL DEFAULT '',
    attempted_org_id TEXT NOT NULL DEFAULT '',
    resource_type    TEXT NOT NULL DEFAULT '',
    resource_id      TEXT NOT NULL DEFAULT '',
    outcome          TEXT NOT NULL,
    reason           TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bulkhead_audit_actor ON bulkhead_audit_log (actor_id);
CREATE INDEX IF NOT EXISTS idx_bulkhead_audit_attempted ON bulkhead_audit_log (attempted_org_id);
CREATE INDEX IF NOT EXISTS idx_bulkhead_audit_created ON bulkhead_audit_log (created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bulkhead_audit_log`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_records",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bulkhead_records (
    type            TEXT NOT NULL,
    id              TEXT NOT NULL,
    org_id          TEXT NOT NULL REFERENCES bulkhead_organizations(id),
    data            JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    PRIMARY KEY (type, id)
);

CREATE INDEX IF NOT EXISTS idx_bulkhead_records_org ON bulkhead_records (type, org_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bulkhead_records`)
				return err
			},
		},
	)
}
