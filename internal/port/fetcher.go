package port

import (
	"context"
	"errors"

	"github.com/tholander/bagwatch/internal/core/domain"
)

var (
	// ErrAuthRequired means the marketplace rejected the stored credentials.
	ErrAuthRequired = errors.New("marketplace authentication required")

	// ErrNoCredentials means no credential bundle is stored at all.
	ErrNoCredentials = errors.New("no marketplace credentials stored")
)

type Fetcher interface {
	// Fetch returns the currently offered listings. Any error other than
	// ErrAuthRequired/ErrNoCredentials is transient (network, rate limit).
	Fetch(ctx context.Context) ([]domain.FetchedItem, error)
}

type NotificationSink interface {
	// Send delivers one message to a Slack user or channel id.
	// Fire-and-forget: callers log failures and move on.
	Send(ctx context.Context, recipient, text string) error
}
