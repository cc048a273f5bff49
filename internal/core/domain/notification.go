package domain

import (
	"fmt"
	"time"
)

// NotificationRequest is one pending announcement that an item a user
// subscribes to became available again.
type NotificationRequest struct {
	ID          string
	UserID      int64
	SlackID     string
	ItemID      int64
	DisplayName string
	Quantity    int
	CreatedAt   time.Time
}

// Message renders the notification text sent to the subscriber.
func (n NotificationRequest) Message() string {
	noun := "bags"
	if n.Quantity == 1 {
		noun = "bag"
	}
	return fmt.Sprintf("%s has %d %s available", n.DisplayName, n.Quantity, noun)
}

// Price renders the item's price for user-facing replies.
func (i Item) Price() string {
	if i.PriceMinorUnits <= 0 || i.PriceDecimals <= 0 {
		return "unknown price"
	}
	div := 1
	for d := 0; d < i.PriceDecimals; d++ {
		div *= 10
	}
	return fmt.Sprintf("$%d.%0*d", i.PriceMinorUnits/div, i.PriceDecimals, i.PriceMinorUnits%div)
}
