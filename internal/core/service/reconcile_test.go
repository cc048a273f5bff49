package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tholander/bagwatch/internal/core/domain"
)

func item(id int64, qty int, name string) domain.Item {
	return domain.Item{ID: id, Quantity: qty, DisplayName: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func fetched(id int64, qty int, name string) domain.FetchedItem {
	return domain.FetchedItem{ItemID: id, Quantity: qty, DisplayName: name}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestReconcile_TransitionZeroToPositive(t *testing.T) {
	previous := map[int64]domain.Item{101: item(101, 0, "Bakery A")}

	res := Reconcile(previous, []domain.FetchedItem{fetched(101, 5, "Bakery A")})

	if got := res.Items[101].Quantity; got != 5 {
		t.Errorf("expected quantity 5, got %d", got)
	}
	if len(res.Transitioned) != 1 || res.Transitioned[0] != 101 {
		t.Errorf("expected transitioned = [101], got %v", res.Transitioned)
	}
}

func TestReconcile_DepletionIsNotATransition(t *testing.T) {
	previous := map[int64]domain.Item{101: item(101, 5, "Bakery A")}

	res := Reconcile(previous, []domain.FetchedItem{fetched(101, 0, "Bakery A")})

	if got := res.Items[101].Quantity; got != 0 {
		t.Errorf("expected quantity 0, got %d", got)
	}
	if len(res.Transitioned) != 0 {
		t.Errorf("expected no transitions, got %v", res.Transitioned)
	}
	if !containsID(res.Depleted, 101) {
		t.Errorf("expected 101 depleted, got %v", res.Depleted)
	}
}

func TestReconcile_ColdStartSuppression(t *testing.T) {
	res := Reconcile(map[int64]domain.Item{}, []domain.FetchedItem{fetched(202, 3, "Deli B")})

	if got := res.Items[202].Quantity; got != 3 {
		t.Errorf("expected quantity 3, got %d", got)
	}
	if res.Items[202].DisplayName != "Deli B" {
		t.Errorf("expected metadata seeded from fetch, got %q", res.Items[202].DisplayName)
	}
	if len(res.Transitioned) != 0 {
		t.Errorf("expected no transitions on first sighting, got %v", res.Transitioned)
	}
}

func TestReconcile_MissingItemsZeroedOut(t *testing.T) {
	previous := map[int64]domain.Item{
		101: item(101, 0, "Bakery A"),
		303: item(303, 2, "Cafe C"),
	}

	res := Reconcile(previous, []domain.FetchedItem{fetched(101, 1, "Bakery A")})

	if got := res.Items[101].Quantity; got != 1 {
		t.Errorf("expected 101 quantity 1, got %d", got)
	}
	if got := res.Items[303].Quantity; got != 0 {
		t.Errorf("expected 303 zeroed out, got %d", got)
	}
	if len(res.Transitioned) != 1 || res.Transitioned[0] != 101 {
		t.Errorf("expected transitioned = [101], got %v", res.Transitioned)
	}
	if !containsID(res.Depleted, 303) {
		t.Errorf("expected 303 depleted, got %v", res.Depleted)
	}
}

func TestReconcile_PositivePreviousNeverTransitions(t *testing.T) {
	previous := map[int64]domain.Item{
		1: item(1, 4, "up"),
		2: item(2, 4, "down"),
		3: item(3, 4, "same"),
	}
	snapshot := []domain.FetchedItem{
		fetched(1, 9, "up"),
		fetched(2, 1, "down"),
		fetched(3, 4, "same"),
	}

	res := Reconcile(previous, snapshot)

	if len(res.Transitioned) != 0 {
		t.Errorf("expected no transitions, got %v", res.Transitioned)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	previous := map[int64]domain.Item{
		101: item(101, 0, "Bakery A"),
		303: item(303, 2, "Cafe C"),
	}
	snapshot := []domain.FetchedItem{fetched(101, 5, "Bakery A")}

	first := Reconcile(previous, snapshot)
	second := Reconcile(first.Items, snapshot)

	if len(second.Transitioned) != 0 {
		t.Errorf("expected second run to transition nothing, got %v", second.Transitioned)
	}
	if len(second.Depleted) != 0 {
		t.Errorf("expected second run to deplete nothing, got %v", second.Depleted)
	}
}

func TestReconcile_DuplicateIDsLastWins(t *testing.T) {
	previous := map[int64]domain.Item{101: item(101, 0, "Bakery A")}

	// Same id twice in one snapshot: the later occurrence is authoritative.
	res := Reconcile(previous, []domain.FetchedItem{
		fetched(101, 5, "Bakery A"),
		fetched(101, 0, "Bakery A"),
	})

	if got := res.Items[101].Quantity; got != 0 {
		t.Errorf("expected last occurrence to win with quantity 0, got %d", got)
	}
	if len(res.Transitioned) != 0 {
		t.Errorf("expected no transition, got %v", res.Transitioned)
	}

	// Reversed order: last occurrence is positive, so the transition fires
	// exactly once.
	res = Reconcile(previous, []domain.FetchedItem{
		fetched(101, 0, "Bakery A"),
		fetched(101, 5, "Bakery A"),
	})

	if got := res.Items[101].Quantity; got != 5 {
		t.Errorf("expected quantity 5, got %d", got)
	}
	if len(res.Transitioned) != 1 || res.Transitioned[0] != 101 {
		t.Errorf("expected transitioned = [101], got %v", res.Transitioned)
	}
}

func TestReconcile_ChangedOmitsUntouchedZeroes(t *testing.T) {
	previous := map[int64]domain.Item{
		1: item(1, 0, "still gone"),
		2: item(2, 3, "newly gone"),
	}

	res := Reconcile(previous, nil)

	if len(res.Changed) != 1 || res.Changed[0].ID != 2 {
		t.Errorf("expected only item 2 in Changed, got %v", res.Changed)
	}
	if got := res.Items[1].Quantity; got != 0 {
		t.Errorf("expected item 1 to stay at 0, got %d", got)
	}
}

func TestReconcile_MetadataRefreshKeepsCreatedAt(t *testing.T) {
	created := time.Now().Add(-48 * time.Hour)
	prev := item(101, 2, "Old Name")
	prev.CreatedAt = created

	res := Reconcile(map[int64]domain.Item{101: prev}, []domain.FetchedItem{fetched(101, 2, "New Name")})

	got := res.Items[101]
	if got.DisplayName != "New Name" {
		t.Errorf("expected metadata refreshed, got %q", got.DisplayName)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt preserved, got %v", got.CreatedAt)
	}
}

// Mock ItemRepository
type mockItemRepo struct {
	mu        sync.Mutex
	items     map[int64]domain.Item
	upsertErr error
	upserts   int
}

func newMockItemRepo(items map[int64]domain.Item) *mockItemRepo {
	if items == nil {
		items = make(map[int64]domain.Item)
	}
	return &mockItemRepo{items: items}
}

func (m *mockItemRepo) GetItems(ctx context.Context) (map[int64]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]domain.Item, len(m.items))
	for id, it := range m.items {
		out[id] = it
	}
	return out, nil
}

func (m *mockItemRepo) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		return &it, nil
	}
	return nil, nil
}

func (m *mockItemRepo) UpsertItems(ctx context.Context, items []domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	for _, it := range items {
		m.items[it.ID] = it
	}
	return nil
}

func (m *mockItemRepo) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	return nil, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu       sync.Mutex
	notified map[string]bool
	markErr  error
	cleared  []int64
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{notified: make(map[string]bool)}
}

func (m *mockCacheRepo) MarkNotified(ctx context.Context, slackID string, itemID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	key := fmt.Sprintf("%s:%d", slackID, itemID)
	if m.notified[key] {
		return false, nil
	}
	m.notified[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearNotified(ctx context.Context, itemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, itemID)
	return nil
}

func TestReconcilerRun_PersistsChangedRecords(t *testing.T) {
	repo := newMockItemRepo(map[int64]domain.Item{101: item(101, 0, "Bakery A")})
	cache := newMockCacheRepo()
	rec := NewReconciler(repo, cache)

	res, err := rec.Run(context.Background(), []domain.FetchedItem{fetched(101, 5, "Bakery A")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Transitioned) != 1 || res.Transitioned[0] != 101 {
		t.Errorf("expected transitioned = [101], got %v", res.Transitioned)
	}
	stored, _ := repo.GetItem(context.Background(), 101)
	if stored.Quantity != 5 {
		t.Errorf("expected persisted quantity 5, got %d", stored.Quantity)
	}
}

func TestReconcilerRun_PersistenceFailureAbortsCycle(t *testing.T) {
	repo := newMockItemRepo(map[int64]domain.Item{101: item(101, 0, "Bakery A")})
	repo.upsertErr = errors.New("disk full")
	rec := NewReconciler(repo, newMockCacheRepo())

	_, err := rec.Run(context.Background(), []domain.FetchedItem{fetched(101, 5, "Bakery A")})
	if err == nil {
		t.Fatal("expected error from failed persistence")
	}

	stored, _ := repo.GetItem(context.Background(), 101)
	if stored.Quantity != 0 {
		t.Errorf("expected stored state untouched, got quantity %d", stored.Quantity)
	}
}

func TestReconcilerRun_DepletionRearmsDeliveryRecords(t *testing.T) {
	repo := newMockItemRepo(map[int64]domain.Item{101: item(101, 5, "Bakery A")})
	cache := newMockCacheRepo()
	rec := NewReconciler(repo, cache)

	_, err := rec.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(cache.cleared) != 1 || cache.cleared[0] != 101 {
		t.Errorf("expected delivery records cleared for 101, got %v", cache.cleared)
	}
}

func TestReconcilerRun_NoChangesSkipsUpsert(t *testing.T) {
	repo := newMockItemRepo(map[int64]domain.Item{101: item(101, 0, "Bakery A")})
	rec := NewReconciler(repo, newMockCacheRepo())

	if _, err := rec.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if repo.upserts != 0 {
		t.Errorf("expected no upsert for an all-quiet cycle, got %d", repo.upserts)
	}
}
