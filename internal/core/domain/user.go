package domain

import "time"

// User is created lazily on the first subscribe action and never deleted.
type User struct {
	ID        int64
	SlackID   string
	CreatedAt time.Time
}

// Subscription joins a user to an item, unique per pair.
type Subscription struct {
	UserID int64
	ItemID int64
}

// Credentials is the opaque token bundle required to authenticate marketplace
// fetches. At most one live bundle exists at a time.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Cookie       string
	UpdatedAt    time.Time
}
