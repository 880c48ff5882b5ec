package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
)

// StationRepository resolves postal codes to the responsible station.
// Station records are static reference data, so resolutions are served
// through a small in-process cache.
type StationRepository struct {
	BaseRepository
	logger *slog.Logger
	cache  *gocache.Cache
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *sqlx.DB, logger *slog.Logger, cacheTTL, cacheSweep time.Duration) *StationRepository {
	return &StationRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
		cache:          gocache.New(cacheTTL, cacheSweep),
	}
}

// ResolveByPinCode returns the station whose jurisdiction covers the given
// postal code, or (nil, nil) when no station covers it. Matching is exact;
// there is no prefix or fuzzy matching.
func (r *StationRepository) ResolveByPinCode(ctx context.Context, pinCode string) (*Station, error) {
	if cached, ok := r.cache.Get(pinCode); ok {
		if cached == nil {
			return nil, nil
		}
		return cached.(*Station), nil
	}

	query := `
		SELECT * FROM stations
		WHERE $1 = ANY(jurisdiction_codes)
		LIMIT 1`

	var station Station
	err := r.db.GetContext(ctx, &station, query, pinCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Misses are cached too: uncovered pin codes are queried on
			// every registration from that area.
			r.cache.Set(pinCode, nil, gocache.DefaultExpiration)
			return nil, nil
		}
		r.logger.Error("Failed to resolve station by pin code", "pin_code", pinCode, "error", err)
		return nil, fmt.Errorf("failed to resolve station by pin code: %w", err)
	}

	r.cache.Set(pinCode, &station, gocache.DefaultExpiration)
	return &station, nil
}

// GetByID retrieves a station by ID
func (r *StationRepository) GetByID(ctx context.Context, id string) (*Station, error) {
	query := `SELECT * FROM stations WHERE id = $1`

	var station Station
	err := r.db.GetContext(ctx, &station, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("station not found: %s", id)
		}
		r.logger.Error("Failed to get station by ID", "station_id", id, "error", err)
		return nil, fmt.Errorf("failed to get station by ID: %w", err)
	}

	return &station, nil
}
