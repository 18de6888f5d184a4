package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/categorizer/internal/domain/event"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: arguments})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestSaveCategoryAssigned(t *testing.T) {
	db := &fakeExecer{}
	journal := NewAssignmentJournal(db)
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	err := journal.SaveCategoryAssigned(context.Background(), &event.CategoryAssigned{
		ID: "e-1", SessionID: "s-1", TenantID: "t-1", ItemID: "i-1", CategoryID: "cat-9", OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "INSERT INTO category_assignments")
	assert.Contains(t, db.calls[0].sql, "ON CONFLICT (event_id) DO NOTHING")

	args := db.calls[0].args
	require.Len(t, args, 8)
	assert.Equal(t, "e-1", args[0])
	assert.Nil(t, args[5].(*string), "unset taxonomy id is stored as NULL")
	assert.Equal(t, false, args[6])
	assert.Equal(t, at, args[7])
}

func TestSaveCategoryCreated(t *testing.T) {
	db := &fakeExecer{}
	journal := NewAssignmentJournal(db)

	err := journal.SaveCategoryCreated(context.Background(), &event.CategoryCreated{
		ID: "e-2", TenantID: "t-1", CategoryID: "cat-1", Name: "Electronics", GoogleCategoryID: "222",
		TaxonomyPath: []string{"Electronics"},
	})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "INSERT INTO category_creations")
	assert.Equal(t, []string{"Electronics"}, db.calls[0].args[5])
}

func TestSaveCategoryCreatedWithoutPath(t *testing.T) {
	db := &fakeExecer{}
	journal := NewAssignmentJournal(db)

	err := journal.SaveCategoryCreated(context.Background(), &event.CategoryCreated{ID: "e-4", CategoryID: "cat-1"})
	require.NoError(t, err)
	require.Len(t, db.calls, 1)
	assert.Equal(t, []string{}, db.calls[0].args[5])
}

func TestSaveWrapsDatabaseErrors(t *testing.T) {
	dbErr := errors.New("connection refused")
	journal := NewAssignmentJournal(&fakeExecer{err: dbErr})

	err := journal.SaveCategoryAssigned(context.Background(), &event.CategoryAssigned{ID: "e-3"})
	require.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "e-3")

	require.ErrorIs(t, journal.Migrate(context.Background()), dbErr)
}
