package port

import "context"

type CacheRepository interface {
	// MarkNotified records that a subscriber was told about an item's current
	// availability window, returns false if the record already existed.
	MarkNotified(ctx context.Context, slackID string, itemID int64) (bool, error)

	// ClearNotified drops the delivery records for an item, re-arming
	// notifications for its next availability window.
	ClearNotified(ctx context.Context, itemID int64) error
}
