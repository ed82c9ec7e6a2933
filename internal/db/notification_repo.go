package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"gardenwatch/internal/types"
)

// NotificationRepository provides data access for the notifications table:
// the batch write at the end of a fan-out and the per-user inbox queries.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// SaveBatch inserts the records in one round trip via a pgx batch and returns
// the number of rows written. An empty slice writes nothing.
func (r *NotificationRepository) SaveBatch(ctx context.Context, records []types.NotificationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO notifications (user_id, title, body, type, data)
			 VALUES ($1, $2, $3, $4, $5)`,
			rec.UserID, rec.Title, rec.Body, rec.Type, rec.Data,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	saved := 0
	for range records {
		if _, err := results.Exec(); err != nil {
			return saved, types.NewAppError(types.ErrCodeInternalDB, "failed to save notification batch", err)
		}
		saved++
	}

	return saved, nil
}

// List returns a page of the user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID int64, limit, offset int) ([]types.NotificationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, body, type, data, is_read, created_at, read_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query notifications", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// ListUnread returns all of the user's unread notifications, newest first.
func (r *NotificationRepository) ListUnread(ctx context.Context, userID int64) ([]types.NotificationRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, body, type, data, is_read, created_at, read_at
		 FROM notifications
		 WHERE user_id = $1 AND is_read = FALSE
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query unread notifications", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// UnreadCount returns the user's number of unread notifications.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count unread notifications", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read. Returns a not-found
// error when the notification does not exist or belongs to another user.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW()
		 WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read and returns
// how many were affected.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW()
		 WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark notifications read", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one of the user's notifications. Returns a not-found error
// when the notification does not exist or belongs to another user.
func (r *NotificationRepository) Delete(ctx context.Context, userID, notificationID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

func scanNotifications(rows pgx.Rows) ([]types.NotificationRecord, error) {
	var records []types.NotificationRecord
	for rows.Next() {
		var rec types.NotificationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.Body, &rec.Type, &rec.Data, &rec.IsRead, &rec.CreatedAt, &rec.ReadAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read notification rows", err)
	}
	return records, nil
}
