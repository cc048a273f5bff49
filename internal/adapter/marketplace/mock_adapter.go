package marketplace

import (
	"context"
	"sync"

	"github.com/tholander/bagwatch/internal/core/domain"
)

// MockAdapter replays scripted snapshots, repeating the last one once the
// script runs out. Safe for offline demos and tests.
type MockAdapter struct {
	mu        sync.Mutex
	snapshots [][]domain.FetchedItem
	cursor    int
}

func NewMockAdapter(snapshots ...[]domain.FetchedItem) *MockAdapter {
	if len(snapshots) == 0 {
		snapshots = defaultScript()
	}
	return &MockAdapter{snapshots: snapshots}
}

func (m *MockAdapter) Fetch(ctx context.Context) ([]domain.FetchedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshots[m.cursor]
	if m.cursor < len(m.snapshots)-1 {
		m.cursor++
	}

	out := make([]domain.FetchedItem, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

// defaultScript walks two stores through a full availability cycle: first
// sighting, sellout, restock.
func defaultScript() [][]domain.FetchedItem {
	bakery := domain.FetchedItem{
		ItemID:          101,
		DisplayName:     "Corner Bakery",
		Description:     "Surprise bag of pastries",
		PriceMinorUnits: 399,
		PriceDecimals:   2,
	}
	deli := domain.FetchedItem{
		ItemID:          202,
		DisplayName:     "Harbor Deli",
		Description:     "Sandwiches and salads",
		PriceMinorUnits: 550,
		PriceDecimals:   2,
	}

	with := func(f domain.FetchedItem, qty int) domain.FetchedItem {
		f.Quantity = qty
		return f
	}

	return [][]domain.FetchedItem{
		{with(bakery, 3), with(deli, 2)},
		{with(bakery, 0), with(deli, 1)},
		{with(deli, 0)},
		{with(bakery, 5), with(deli, 4)},
		{with(bakery, 5), with(deli, 4)},
	}
}
