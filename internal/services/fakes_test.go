package services

import (
	"context"
	"errors"
	"sync"

	"bilan/internal/core"
	"bilan/internal/store"
	"bilan/internal/store/memory"
)

var errBackend = errors.New("backend unavailable")

// flakyStore wraps the memory store, hides its batch capability and fails
// the writes it is told to.
type flakyStore struct {
	store.BudgetStore

	mu                sync.Mutex
	calls             int
	failUpdate        map[string]bool
	failDeleteItem    map[string]bool
	failDeleteRevenue map[string]bool
	failCreateMonths  map[int]bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{
		BudgetStore:       memory.New(),
		failUpdate:        map[string]bool{},
		failDeleteItem:    map[string]bool{},
		failDeleteRevenue: map[string]bool{},
		failCreateMonths:  map[int]bool{},
	}
}

func (f *flakyStore) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *flakyStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyStore) ListItems(ctx context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error) {
	f.count()
	return f.BudgetStore.ListItems(ctx, ownerID, p)
}

func (f *flakyStore) ListRevenuesByGroup(ctx context.Context, groupID string) ([]core.Revenue, error) {
	f.count()
	return f.BudgetStore.ListRevenuesByGroup(ctx, groupID)
}

func (f *flakyStore) UpdateItem(ctx context.Context, id string, patch core.ItemPatch) error {
	f.count()
	f.mu.Lock()
	fail := f.failUpdate[id]
	f.mu.Unlock()
	if fail {
		return core.NewStoreError("update item", errBackend)
	}
	return f.BudgetStore.UpdateItem(ctx, id, patch)
}

func (f *flakyStore) DeleteItem(ctx context.Context, id string) error {
	f.count()
	f.mu.Lock()
	fail := f.failDeleteItem[id]
	f.mu.Unlock()
	if fail {
		return core.NewStoreError("delete item", errBackend)
	}
	return f.BudgetStore.DeleteItem(ctx, id)
}

func (f *flakyStore) CreateRevenue(ctx context.Context, r core.Revenue) (string, error) {
	f.count()
	f.mu.Lock()
	fail := f.failCreateMonths[r.Month]
	f.mu.Unlock()
	if fail {
		return "", core.NewStoreError("create revenue", errBackend)
	}
	return f.BudgetStore.CreateRevenue(ctx, r)
}

func (f *flakyStore) DeleteRevenue(ctx context.Context, id string) error {
	f.count()
	f.mu.Lock()
	fail := f.failDeleteRevenue[id]
	f.mu.Unlock()
	if fail {
		return core.NewStoreError("delete revenue", errBackend)
	}
	return f.BudgetStore.DeleteRevenue(ctx, id)
}

type notification struct {
	OwnerID string
	Period  core.Period
	Reason  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) PublishPeriodChanged(_ context.Context, ownerID string, p core.Period, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{ownerID, p, reason})
	return n.err
}

func (n *recordingNotifier) Sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

// interleavingStore runs onList once, after ListItems has read its result
// and before it returns it.
type interleavingStore struct {
	store.BudgetStore

	mu     sync.Mutex
	onList func()
}

func (s *interleavingStore) ListItems(ctx context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error) {
	items, err := s.BudgetStore.ListItems(ctx, ownerID, p)
	s.mu.Lock()
	hook := s.onList
	s.onList = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return items, err
}

func (s *interleavingStore) afterNextList(hook func()) {
	s.mu.Lock()
	s.onList = hook
	s.mu.Unlock()
}
