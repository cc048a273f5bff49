package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/port"
)

// Notifier fans transitioned items out to their subscribers. Requests are
// queued and delivered by sender workers so one slow or failing send never
// blocks the poll loop or other subscribers.
type Notifier struct {
	subs  port.SubscriptionRepository
	cache port.CacheRepository
	queue chan domain.NotificationRequest
}

func NewNotifier(subs port.SubscriptionRepository, cache port.CacheRepository, queueSize int) *Notifier {
	return &Notifier{
		subs:  subs,
		cache: cache,
		queue: make(chan domain.NotificationRequest, queueSize),
	}
}

// Notify enqueues one request per (subscriber, transitioned item) pair and
// returns the number enqueued. Failures are isolated per item: a subscriber
// lookup error skips that item only.
func (n *Notifier) Notify(ctx context.Context, transitioned []int64, items map[int64]domain.Item) int {
	enqueued := 0

	for _, id := range transitioned {
		item, ok := items[id]
		if !ok {
			log.Printf("notifier: transitioned item %d missing from snapshot, skipping", id)
			continue
		}

		subscribers, err := n.subs.SubscribersFor(ctx, id)
		if err != nil {
			log.Printf("notifier: failed to resolve subscribers for item %d: %v", id, err)
			continue
		}

		for _, u := range subscribers {
			fresh, err := n.cache.MarkNotified(ctx, u.SlackID, id)
			if err != nil {
				// Prefer a duplicate ping over a missed one.
				log.Printf("notifier: delivery dedup check failed for user %s item %d: %v", u.SlackID, id, err)
				fresh = true
			}
			if !fresh {
				log.Printf("notifier: user %s already notified about item %d, skipping", u.SlackID, id)
				continue
			}

			n.queue <- domain.NotificationRequest{
				ID:          uuid.New().String(),
				UserID:      u.ID,
				SlackID:     u.SlackID,
				ItemID:      id,
				DisplayName: item.DisplayName,
				Quantity:    item.Quantity,
				CreatedAt:   time.Now(),
			}
			enqueued++
		}
	}

	return enqueued
}

func (n *Notifier) Queue() <-chan domain.NotificationRequest {
	return n.queue
}

func (n *Notifier) Close() {
	close(n.queue)
}

// SenderLoop drains the queue, delivering each request independently. Run one
// or more as goroutines; they exit when the notifier is closed.
func SenderLoop(id int, queue <-chan domain.NotificationRequest, sink port.NotificationSink) {
	for req := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		if err := sink.Send(ctx, req.SlackID, req.Message()); err != nil {
			log.Printf("sender %d: failed to notify %s about item %d: %v", id, req.SlackID, req.ItemID, err)
		} else {
			log.Printf("sender %d: notified %s that %s has %d bags", id, req.SlackID, req.DisplayName, req.Quantity)
		}

		cancel()
	}
}
