package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicateValue is returned when a watchlist value is already flagged
var ErrDuplicateValue = errors.New("watchlist value already exists")

// WatchlistRepository handles watchlist entry data operations
type WatchlistRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *sqlx.DB, logger *slog.Logger) *WatchlistRepository {
	return &WatchlistRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create creates a new watchlist entry
func (r *WatchlistRepository) Create(ctx context.Context, entry *WatchlistEntry) error {
	query := `
		INSERT INTO watchlist_entries (
			id, value, kind, reason, added_by_id, added_by_role, created_at
		) VALUES (
			:id, :value, :kind, :reason, :added_by_id, :added_by_role, :created_at
		)`

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now()

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateValue
		}
		r.logger.Error("Failed to create watchlist entry", "value", entry.Value, "error", err)
		return fmt.Errorf("failed to create watchlist entry: %w", err)
	}

	r.logger.Info("Watchlist entry created",
		"entry_id", entry.ID,
		"kind", entry.Kind,
		"added_by_role", entry.AddedByRole)
	return nil
}

// Lookup returns the first entry whose value equals any of the candidate values.
// Candidates are matched exactly and case-sensitively. A miss returns (nil, nil).
// When several entries match different candidates the oldest entry wins, which
// keeps the result deterministic across calls.
func (r *WatchlistRepository) Lookup(ctx context.Context, candidates []string) (*WatchlistEntry, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	query := `
		SELECT * FROM watchlist_entries
		WHERE value = ANY($1)
		ORDER BY created_at ASC, id ASC
		LIMIT 1`

	var entry WatchlistEntry
	err := r.db.GetContext(ctx, &entry, query, pq.Array(candidates))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to look up watchlist entries", "error", err)
		return nil, fmt.Errorf("failed to look up watchlist entries: %w", err)
	}

	return &entry, nil
}

// List retrieves all watchlist entries, newest first
func (r *WatchlistRepository) List(ctx context.Context, limit, offset int) ([]*WatchlistEntry, error) {
	query := `
		SELECT * FROM watchlist_entries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	var entries []*WatchlistEntry
	err := r.db.SelectContext(ctx, &entries, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list watchlist entries", "error", err)
		return nil, fmt.Errorf("failed to list watchlist entries: %w", err)
	}

	return entries, nil
}

// Delete removes a watchlist entry
func (r *WatchlistRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM watchlist_entries WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete watchlist entry", "entry_id", id, "error", err)
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("watchlist entry not found: %s", id)
	}

	r.logger.Info("Watchlist entry deleted", "entry_id", id)
	return nil
}
