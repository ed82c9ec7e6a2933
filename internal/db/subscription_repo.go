package db

import (
	"context"

	"gardenwatch/internal/types"
)

// SubscriptionRepository provides data access for the user_push_subscriptions
// table.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a repository backed by the given database
// connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Save upserts a push subscription keyed by (user, endpoint). A browser
// re-subscribing from a new location keeps one row per endpoint with the
// coordinates refreshed.
func (r *SubscriptionRepository) Save(ctx context.Context, userID int64, endpoint, descriptor string, lat, lon float64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_push_subscriptions
		 (user_id, endpoint, subscription, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET
		   subscription = EXCLUDED.subscription,
		   latitude     = EXCLUDED.latitude,
		   longitude    = EXCLUDED.longitude,
		   updated_at   = NOW()`,
		userID, endpoint, descriptor, lat, lon,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save push subscription", err)
	}
	return nil
}

// FindByBoundingBox returns the subscriptions inside the coordinate box.
// Rows without a stored subscription document are excluded; the fan-out has
// nothing to deliver to them.
func (r *SubscriptionRepository) FindByBoundingBox(ctx context.Context, minLat, maxLat, minLon, maxLon float64) ([]types.Subscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, endpoint, subscription, latitude, longitude
		 FROM user_push_subscriptions
		 WHERE latitude BETWEEN $1 AND $2
		   AND longitude BETWEEN $3 AND $4
		   AND subscription IS NOT NULL`,
		minLat, maxLat, minLon, maxLon,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query subscriptions by area", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var sub types.Subscription
		if err := rows.Scan(&sub.UserID, &sub.Endpoint, &sub.Descriptor, &sub.Latitude, &sub.Longitude); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription row", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read subscription rows", err)
	}

	return subs, nil
}

// ListByUser returns all of a user's stored subscriptions.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID int64) ([]types.Subscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, endpoint, subscription, latitude, longitude
		 FROM user_push_subscriptions
		 WHERE user_id = $1 AND subscription IS NOT NULL
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user subscriptions", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var sub types.Subscription
		if err := rows.Scan(&sub.UserID, &sub.Endpoint, &sub.Descriptor, &sub.Latitude, &sub.Longitude); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription row", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read subscription rows", err)
	}

	return subs, nil
}

// Delete removes every subscription row for an endpoint, regardless of user.
// Used by the fan-out to prune endpoints the push service reports as gone.
func (r *SubscriptionRepository) Delete(ctx context.Context, endpoint string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_push_subscriptions WHERE endpoint = $1`,
		endpoint,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete subscription", err)
	}
	return nil
}

// DeleteForUser removes one user's subscription for an endpoint. Returns a
// not-found error when the user has no such subscription.
func (r *SubscriptionRepository) DeleteForUser(ctx context.Context, userID int64, endpoint string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM user_push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	return nil
}
