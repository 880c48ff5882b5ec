package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NotificationRepository handles notification data operations
type NotificationRepository struct {
	BaseRepository
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlx.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		BaseRepository: BaseRepository{db: db},
		logger:         logger,
	}
}

// BatchCreate inserts a batch of notifications in a single statement and
// returns the number inserted. The batch may mix station-targeted officer
// rows and station-less admin rows. Partial failure fails the whole batch.
func (r *NotificationRepository) BatchCreate(ctx context.Context, notifications []*Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	now := time.Now()
	for _, n := range notifications {
		if err := n.Validate(); err != nil {
			return 0, fmt.Errorf("invalid notification in batch: %w", err)
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		n.CreatedAt = now
	}

	query := `
		INSERT INTO notifications (
			id, alert_id, recipient_id, recipient_kind, station_id,
			message, is_read, created_at
		) VALUES (
			:id, :alert_id, :recipient_id, :recipient_kind, :station_id,
			:message, :is_read, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, notifications)
	if err != nil {
		r.logger.Error("Failed to batch create notifications", "count", len(notifications), "error", err)
		return 0, fmt.Errorf("failed to batch create notifications: %w", err)
	}

	r.logger.Info("Notifications created", "count", len(notifications))
	return len(notifications), nil
}

// ListByRecipient retrieves notifications for one recipient, newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, kind IdentityKind, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE recipient_id = $1 AND recipient_kind = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	var notifications []*Notification
	err := r.db.SelectContext(ctx, &notifications, query, recipientID, kind, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list notifications by recipient", "recipient_id", recipientID, "error", err)
		return nil, fmt.Errorf("failed to list notifications by recipient: %w", err)
	}

	return notifications, nil
}

// ListByAlert retrieves all notifications created for an alert
func (r *NotificationRepository) ListByAlert(ctx context.Context, alertID string) ([]*Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE alert_id = $1
		ORDER BY created_at DESC`

	var notifications []*Notification
	err := r.db.SelectContext(ctx, &notifications, query, alertID)
	if err != nil {
		r.logger.Error("Failed to list notifications by alert", "alert_id", alertID, "error", err)
		return nil, fmt.Errorf("failed to list notifications by alert: %w", err)
	}

	return notifications, nil
}

// MarkRead flags a notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark notification read", "notification_id", id, "error", err)
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("notification not found: %s", id)
	}

	return nil
}

// Cleanup deletes read notifications beyond the retention period
func (r *NotificationRepository) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	query := fmt.Sprintf(`
		DELETE FROM notifications
		WHERE is_read = TRUE
		AND created_at < NOW() - INTERVAL '%d days'`, retentionDays)

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to cleanup notifications", "error", err)
		return 0, fmt.Errorf("failed to cleanup notifications: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("Notifications cleaned up", "deleted_count", rowsAffected)
	return int(rowsAffected), nil
}
