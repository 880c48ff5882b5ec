package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// DirectoryRepository lists notification recipients: officers by station
// and active regional administrators.
type DirectoryRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sqlx.DB, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// OfficersAt retrieves the active officers assigned to a station.
// An empty result is a valid outcome, not an error.
func (r *DirectoryRepository) OfficersAt(ctx context.Context, stationID string) ([]*Officer, error) {
	query := `
		SELECT * FROM officers
		WHERE station_id = $1 AND active = TRUE
		ORDER BY name ASC`

	var officers []*Officer
	err := r.db.SelectContext(ctx, &officers, query, stationID)
	if err != nil {
		r.logger.Error("Failed to list officers at station", "station_id", stationID, "error", err)
		return nil, fmt.Errorf("failed to list officers at station: %w", err)
	}

	return officers, nil
}

// ActiveAdmins retrieves all active regional administrators
func (r *DirectoryRepository) ActiveAdmins(ctx context.Context) ([]*Admin, error) {
	query := `
		SELECT * FROM admins
		WHERE active = TRUE
		ORDER BY name ASC`

	var admins []*Admin
	err := r.db.SelectContext(ctx, &admins, query)
	if err != nil {
		r.logger.Error("Failed to list active admins", "error", err)
		return nil, fmt.Errorf("failed to list active admins: %w", err)
	}

	return admins, nil
}
