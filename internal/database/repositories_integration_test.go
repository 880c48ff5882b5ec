package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests against a live Postgres instance. Set GUESTWATCH_TEST_DSN
// to a database that has had the migrations applied, e.g.
//
//	GUESTWATCH_TEST_DSN="host=localhost user=postgres password=postgres dbname=guestwatch_test sslmode=disable"

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("GUESTWATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("GUESTWATCH_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAlertResolveIsIdempotent(t *testing.T) {
	db := testDB(t)
	repo := NewAlertRepository(db, discardLogger())
	ctx := context.Background()

	alert := &Alert{
		GuestID:       uuid.NewString(),
		GuestName:     "John Doe",
		Reason:        "Watchlist match on ID number: fraud suspect",
		CreatedByID:   "officer-9",
		CreatedByRole: IdentityPolice,
	}
	require.NoError(t, repo.Create(ctx, alert))
	assert.Equal(t, AlertStatusOpen, alert.Status)

	resolved, err := repo.Resolve(ctx, alert.ID, "admin-1", IdentityRegionalAdmin)
	require.NoError(t, err)
	assert.Equal(t, AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedByID)
	assert.Equal(t, "admin-1", *resolved.ResolvedByID)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolvedAt := *resolved.ResolvedAt

	// A second resolve, by someone else, must succeed without changing the record.
	again, err := repo.Resolve(ctx, alert.ID, "admin-2", IdentityRegionalAdmin)
	require.NoError(t, err)
	assert.Equal(t, AlertStatusResolved, again.Status)
	require.NotNil(t, again.ResolvedByID)
	assert.Equal(t, "admin-1", *again.ResolvedByID)
	require.NotNil(t, again.ResolvedAt)
	assert.WithinDuration(t, firstResolvedAt, *again.ResolvedAt, time.Millisecond)
}

func TestAlertResolveMissingAlert(t *testing.T) {
	db := testDB(t)
	repo := NewAlertRepository(db, discardLogger())

	_, err := repo.Resolve(context.Background(), uuid.NewString(), "admin-1", IdentityRegionalAdmin)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestWatchlistLookupIsDeterministic(t *testing.T) {
	db := testDB(t)
	repo := NewWatchlistRepository(db, discardLogger())
	ctx := context.Background()

	idValue := "IT-" + uuid.NewString()
	phoneValue := "IT-" + uuid.NewString()

	older := &WatchlistEntry{
		Value:       idValue,
		Kind:        ValueKindIDNumber,
		Reason:      "fraud suspect",
		AddedByID:   "officer-9",
		AddedByRole: IdentityPolice,
	}
	require.NoError(t, repo.Create(ctx, older))
	t.Cleanup(func() { repo.Delete(ctx, older.ID) })

	newer := &WatchlistEntry{
		Value:       phoneValue,
		Kind:        ValueKindPhone,
		Reason:      "harassment complaint",
		AddedByID:   "admin-1",
		AddedByRole: IdentityRegionalAdmin,
	}
	require.NoError(t, repo.Create(ctx, newer))
	t.Cleanup(func() { repo.Delete(ctx, newer.ID) })

	// Both values match; the earliest entry wins regardless of candidate order.
	entry, err := repo.Lookup(ctx, []string{phoneValue, idValue})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, older.ID, entry.ID)

	// No candidate matches.
	entry, err = repo.Lookup(ctx, []string{"IT-" + uuid.NewString()})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestWatchlistCreateRejectsDuplicateValue(t *testing.T) {
	db := testDB(t)
	repo := NewWatchlistRepository(db, discardLogger())
	ctx := context.Background()

	value := "IT-" + uuid.NewString()
	entry := &WatchlistEntry{
		Value:       value,
		Kind:        ValueKindIDNumber,
		Reason:      "fraud suspect",
		AddedByID:   "officer-9",
		AddedByRole: IdentityPolice,
	}
	require.NoError(t, repo.Create(ctx, entry))
	t.Cleanup(func() { repo.Delete(ctx, entry.ID) })

	duplicate := &WatchlistEntry{
		Value:       value,
		Kind:        ValueKindIDNumber,
		Reason:      "different reason",
		AddedByID:   "admin-1",
		AddedByRole: IdentityRegionalAdmin,
	}
	assert.ErrorIs(t, repo.Create(ctx, duplicate), ErrDuplicateValue)
}

func TestNotificationBatchCreate(t *testing.T) {
	db := testDB(t)
	alertRepo := NewAlertRepository(db, discardLogger())
	notificationRepo := NewNotificationRepository(db, discardLogger())
	ctx := context.Background()

	alert := &Alert{
		GuestID:       uuid.NewString(),
		GuestName:     "Jane Roe",
		Reason:        "Watchlist match on phone number: harassment complaint",
		CreatedByID:   "admin-1",
		CreatedByRole: IdentityRegionalAdmin,
	}
	require.NoError(t, alertRepo.Create(ctx, alert))
	t.Cleanup(func() {
		db.Exec(`DELETE FROM alerts WHERE id = $1`, alert.ID)
	})

	station := seedStation(t, db)

	drafts := []*Notification{
		{AlertID: alert.ID, RecipientID: "o1", RecipientKind: IdentityPolice, StationID: &station, Message: "m"},
		{AlertID: alert.ID, RecipientID: "o2", RecipientKind: IdentityPolice, StationID: &station, Message: "m"},
		{AlertID: alert.ID, RecipientID: "a1", RecipientKind: IdentityRegionalAdmin, Message: "m"},
	}

	count, err := notificationRepo.BatchCreate(ctx, drafts)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stored, err := notificationRepo.ListByAlert(ctx, alert.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

// seedStation inserts a throwaway station row and returns its ID
func seedStation(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO stations (id, name, city, jurisdiction_codes) VALUES ($1, $2, $3, $4)`,
		id, "Test Station", "Test City", "{999999}",
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM stations WHERE id = $1`, id)
	})
	return id
}
