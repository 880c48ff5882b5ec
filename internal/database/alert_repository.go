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
)

// ErrAlertNotFound is returned when an alert does not exist
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository handles alert data operations
type AlertRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *sqlx.DB, logger *slog.Logger) *AlertRepository {
	return &AlertRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// Create creates a new alert with an assigned ID and open status
func (r *AlertRepository) Create(ctx context.Context, alert *Alert) error {
	query := `
		INSERT INTO alerts (
			id, guest_id, guest_name, reason, status,
			created_by_id, created_by_role, created_at, updated_at
		) VALUES (
			:id, :guest_id, :guest_name, :reason, :status,
			:created_by_id, :created_by_role, :created_at, :updated_at
		)`

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.Status = AlertStatusOpen
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()

	_, err := r.db.NamedExecContext(ctx, query, alert)
	if err != nil {
		r.logger.Error("Failed to create alert", "alert_id", alert.ID, "guest_id", alert.GuestID, "error", err)
		return fmt.Errorf("failed to create alert: %w", err)
	}

	r.logger.Info("Alert created",
		"alert_id", alert.ID,
		"guest_id", alert.GuestID,
		"created_by_role", alert.CreatedByRole)
	return nil
}

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*Alert, error) {
	query := `SELECT * FROM alerts WHERE id = $1`

	var alert Alert
	err := r.db.GetContext(ctx, &alert, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		r.logger.Error("Failed to get alert by ID", "alert_id", id, "error", err)
		return nil, fmt.Errorf("failed to get alert by ID: %w", err)
	}

	return &alert, nil
}

// Resolve transitions an alert from open to resolved. Resolving an alert that
// is already resolved is a no-op success so duplicate requests stay harmless.
func (r *AlertRepository) Resolve(ctx context.Context, alertID, resolvedByID string, resolvedByRole IdentityKind) (*Alert, error) {
	query := `
		UPDATE alerts SET
			status = $2,
			resolved_at = NOW(),
			resolved_by_id = $3,
			resolved_by_role = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, alertID, AlertStatusResolved, resolvedByID, resolvedByRole, AlertStatusOpen)
	if err != nil {
		r.logger.Error("Failed to resolve alert", "alert_id", alertID, "error", err)
		return nil, fmt.Errorf("failed to resolve alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	alert, err := r.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		// Already resolved by an earlier request
		r.logger.Debug("Alert already resolved", "alert_id", alertID)
		return alert, nil
	}

	r.logger.Info("Alert resolved", "alert_id", alertID, "resolved_by_id", resolvedByID)
	return alert, nil
}

// ListByStatus retrieves alerts by status, newest first
func (r *AlertRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*Alert, error) {
	query := `
		SELECT * FROM alerts
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var alerts []*Alert
	err := r.db.SelectContext(ctx, &alerts, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list alerts by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list alerts by status: %w", err)
	}

	return alerts, nil
}

// Cleanup deletes resolved alerts beyond the retention period
func (r *AlertRepository) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM alerts
		WHERE status = $1
		AND resolved_at < NOW() - INTERVAL '%d days'`, retentionDays)

	result, err := r.db.ExecContext(ctx, query, AlertStatusResolved)
	if err != nil {
		r.logger.Error("Failed to cleanup alerts", "error", err)
		return 0, fmt.Errorf("failed to cleanup alerts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Alerts cleaned up", "deleted_count", rowsAffected)
	return int(rowsAffected), nil
}
