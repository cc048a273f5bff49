package port

import (
	"context"

	"github.com/tholander/bagwatch/internal/core/domain"
)

type ItemRepository interface {
	// GetItems returns every known item keyed by id.
	GetItems(ctx context.Context) (map[int64]domain.Item, error)

	// GetItem returns a single item, or nil if the id is unknown.
	GetItem(ctx context.Context, id int64) (*domain.Item, error)

	// UpsertItems persists the given records in a single transaction,
	// all-or-nothing.
	UpsertItems(ctx context.Context, items []domain.Item) error

	// SearchItems returns items whose display name matches the query.
	SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error)
}

type SubscriptionRepository interface {
	// GetOrCreateUser resolves a chat-platform user id to a User row,
	// creating it on first sight.
	GetOrCreateUser(ctx context.Context, slackID string) (domain.User, error)

	// Subscribe records a (user, item) subscription. Creates a placeholder
	// item row if the id has never been fetched. Idempotent.
	Subscribe(ctx context.Context, userID, itemID int64) error

	// Unsubscribe removes a subscription, reporting whether it existed.
	Unsubscribe(ctx context.Context, userID, itemID int64) (bool, error)

	// ListSubscriptions returns the items a user is subscribed to.
	ListSubscriptions(ctx context.Context, userID int64) ([]domain.Item, error)

	// SubscribersFor returns every user subscribed to an item.
	SubscribersFor(ctx context.Context, itemID int64) ([]domain.User, error)
}

type CredentialRepository interface {
	// GetCredentials returns the stored credential bundle, or nil when the
	// marketplace account is logged out.
	GetCredentials(ctx context.Context) (*domain.Credentials, error)

	// SaveCredentials replaces the singleton credential bundle.
	SaveCredentials(ctx context.Context, creds domain.Credentials) error

	// ClearCredentials drops the stored bundle.
	ClearCredentials(ctx context.Context) error
}

type DatabaseRepository interface {
	ItemRepository
	SubscriptionRepository
	CredentialRepository
}
