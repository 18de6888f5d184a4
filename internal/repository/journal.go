package repository

import (
	"context"
	"fmt"

	"storefront/categorizer/internal/domain/event"

	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the journal tables when missing.
const Schema = `
CREATE TABLE IF NOT EXISTS category_creations (
	event_id           TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	category_id        TEXT NOT NULL,
	name               TEXT NOT NULL,
	google_category_id TEXT NOT NULL,
	taxonomy_path      TEXT[] NOT NULL,
	occurred_at        TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS category_assignments (
	event_id           TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	tenant_id          TEXT NOT NULL,
	item_id            TEXT NOT NULL,
	category_id        TEXT NOT NULL,
	google_category_id TEXT,
	created            BOOLEAN NOT NULL,
	occurred_at        TIMESTAMPTZ NOT NULL
);`

// Execer is the subset of *pgxpool.Pool the journal needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type AssignmentJournal interface {
	Migrate(ctx context.Context) error
	SaveCategoryCreated(ctx context.Context, e *event.CategoryCreated) error
	SaveCategoryAssigned(ctx context.Context, e *event.CategoryAssigned) error
}

type assignmentJournal struct {
	db Execer
}

func NewAssignmentJournal(db Execer) AssignmentJournal {
	return &assignmentJournal{
		db: db,
	}
}

func (r *assignmentJournal) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create journal tables: %w", err)
	}
	return nil
}

// Saves are idempotent on the event id, redelivered messages are no-ops.
func (r *assignmentJournal) SaveCategoryCreated(ctx context.Context, e *event.CategoryCreated) error {
	query := `
	INSERT INTO category_creations (event_id, tenant_id, category_id, name, google_category_id, taxonomy_path, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (event_id) DO NOTHING`
	// A nil slice is encoded as NULL
	path := e.TaxonomyPath
	if path == nil {
		path = []string{}
	}
	_, err := r.db.Exec(ctx, query, e.ID, e.TenantID, e.CategoryID, e.Name, e.GoogleCategoryID, path, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save category creation %s: %w", e.ID, err)
	}

	return nil
}

func (r *assignmentJournal) SaveCategoryAssigned(ctx context.Context, e *event.CategoryAssigned) error {
	var googleID *string
	if e.GoogleCategoryID != "" {
		googleID = &e.GoogleCategoryID
	}

	query := `
	INSERT INTO category_assignments (event_id, session_id, tenant_id, item_id, category_id, google_category_id, created, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (event_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, e.ID, e.SessionID, e.TenantID, e.ItemID, e.CategoryID, googleID, e.Created, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to save category assignment %s: %w", e.ID, err)
	}

	return nil
}
