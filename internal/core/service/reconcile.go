package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/port"
)

// ReconcileResult is the outcome of merging one fetch snapshot against the
// previous cycle's state.
type ReconcileResult struct {
	// Items is the full post-merge state, keyed by id.
	Items map[int64]domain.Item

	// Changed holds the records that differ from the previous cycle and need
	// persisting: every fetched id plus every id newly zeroed out.
	Changed []domain.Item

	// Transitioned lists ids whose quantity moved 0 -> positive, ascending.
	Transitioned []int64

	// Depleted lists ids whose quantity moved positive -> 0, ascending.
	Depleted []int64
}

// Reconcile merges a fetched snapshot against the previous cycle's items.
//
// Ids present before but absent from the snapshot are zeroed out; that is
// never a transition. Ids never seen before are created without a transition,
// so a cold start or cache rebuild cannot cause a notification storm. Only a
// stored quantity of 0 followed by a fetched positive quantity transitions.
// Duplicate ids within one snapshot resolve last-occurrence-wins before any
// comparison against the previous state.
func Reconcile(previous map[int64]domain.Item, fetched []domain.FetchedItem) ReconcileResult {
	now := time.Now()

	// Last occurrence wins on duplicate ids.
	snapshot := make(map[int64]domain.FetchedItem, len(fetched))
	order := make([]int64, 0, len(fetched))
	for _, f := range fetched {
		if _, seen := snapshot[f.ItemID]; !seen {
			order = append(order, f.ItemID)
		}
		snapshot[f.ItemID] = f
	}

	res := ReconcileResult{Items: make(map[int64]domain.Item, len(previous)+len(snapshot))}

	for id, item := range previous {
		if _, offered := snapshot[id]; offered {
			continue
		}
		if item.Quantity > 0 {
			item.Quantity = 0
			item.UpdatedAt = now
			res.Changed = append(res.Changed, item)
			res.Depleted = append(res.Depleted, id)
		}
		res.Items[id] = item
	}

	for _, id := range order {
		f := snapshot[id]
		prev, known := previous[id]

		item := domain.Item{
			ID:              id,
			Quantity:        f.Quantity,
			DisplayName:     f.DisplayName,
			Description:     f.Description,
			PriceMinorUnits: f.PriceMinorUnits,
			PriceDecimals:   f.PriceDecimals,
			LogoURL:         f.LogoURL,
			Branch:          f.Branch,
			Address:         f.Address,
			Latitude:        f.Latitude,
			Longitude:       f.Longitude,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if known {
			item.CreatedAt = prev.CreatedAt
			switch {
			case prev.Quantity == 0 && f.Quantity > 0:
				res.Transitioned = append(res.Transitioned, id)
			case prev.Quantity > 0 && f.Quantity == 0:
				res.Depleted = append(res.Depleted, id)
			}
		}

		res.Items[id] = item
		res.Changed = append(res.Changed, item)
	}

	sort.Slice(res.Transitioned, func(i, j int) bool { return res.Transitioned[i] < res.Transitioned[j] })
	sort.Slice(res.Depleted, func(i, j int) bool { return res.Depleted[i] < res.Depleted[j] })
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].ID < res.Changed[j].ID })

	return res
}

// Reconciler runs the merge against durable state. It is the only writer of
// item quantities.
type Reconciler struct {
	items port.ItemRepository
	cache port.CacheRepository
}

func NewReconciler(items port.ItemRepository, cache port.CacheRepository) *Reconciler {
	return &Reconciler{items: items, cache: cache}
}

// Run loads the previous state, merges the snapshot, and persists the changed
// records atomically. A persistence failure aborts the cycle before anything
// is notified.
func (r *Reconciler) Run(ctx context.Context, fetched []domain.FetchedItem) (ReconcileResult, error) {
	previous, err := r.items.GetItems(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("load items: %w", err)
	}

	res := Reconcile(previous, fetched)

	if len(res.Changed) > 0 {
		if err := r.items.UpsertItems(ctx, res.Changed); err != nil {
			return ReconcileResult{}, fmt.Errorf("persist snapshot: %w", err)
		}
	}

	// Depleted items re-arm their delivery records so the next 0 -> positive
	// move notifies again. Cache failures here cost at most a duplicate
	// suppression, never a missed state update.
	for _, id := range res.Depleted {
		if err := r.cache.ClearNotified(ctx, id); err != nil {
			log.Printf("reconciler: failed to re-arm notifications for item %d: %v", id, err)
		}
	}

	return res, nil
}
