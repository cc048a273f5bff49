// Offline demo: runs the reconciler over the mock marketplace script and
// prints every transition, without MySQL/Redis/Slack.
package main

import (
	"context"
	"log"

	"github.com/tholander/bagwatch/internal/adapter/marketplace"
	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/core/service"
)

const cycles = 6

func main() {
	ctx := context.Background()
	fetcher := marketplace.NewMockAdapter()

	previous := map[int64]domain.Item{}

	for i := 0; i < cycles; i++ {
		fetched, err := fetcher.Fetch(ctx)
		if err != nil {
			log.Fatalf("fetch failed: %v", err)
		}

		res := service.Reconcile(previous, fetched)
		log.Printf("cycle %d: %d items fetched, %d changed", i+1, len(fetched), len(res.Changed))

		for _, id := range res.Transitioned {
			item := res.Items[id]
			log.Printf("cycle %d: TRANSITION %s (#%d) now has %d bags", i+1, item.DisplayName, id, item.Quantity)
		}
		for _, id := range res.Depleted {
			item := res.Items[id]
			log.Printf("cycle %d: depleted %s (#%d)", i+1, item.DisplayName, id)
		}

		previous = res.Items
	}
}
