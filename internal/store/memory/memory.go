package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bilan/internal/core"
	"bilan/internal/store"
)

var (
	_ store.BudgetStore  = (*Store)(nil)
	_ store.BatchUpdater = (*Store)(nil)
)

// Store keeps budget items and revenues in process memory. It is the
// default backend for local runs and the fake used by service tests.
type Store struct {
	mu       sync.Mutex
	items    map[string]core.BudgetItem
	revenues map[string]core.Revenue
	newID    func() string
}

func New() *Store {
	return &Store{
		items:    make(map[string]core.BudgetItem),
		revenues: make(map[string]core.Revenue),
		newID:    uuid.NewString,
	}
}

// ListItems returns the owner's items for the period sorted by kind, parent
// and order, so repeated reads are stable.
func (s *Store) ListItems(_ context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetItem
	for _, it := range s.items {
		if it.OwnerID == ownerID && it.Period() == p {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) CreateItem(_ context.Context, item core.BudgetItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.newID()
	s.items[item.ID] = item
	return item.ID, nil
}

func (s *Store) UpdateItem(_ context.Context, id string, patch core.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return core.NewStoreError("update item", fmt.Errorf("item %s: %w", id, core.ErrNotFound))
	}
	s.items[id] = it.Apply(patch)
	return nil
}

// UpdateItemsBatch applies every order change or, if one id is unknown, none.
func (s *Store) UpdateItemsBatch(_ context.Context, changes []core.OrderChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		if _, ok := s.items[c.ID]; !ok {
			return core.NewStoreError("update items batch", fmt.Errorf("item %s: %w", c.ID, core.ErrNotFound))
		}
	}
	for _, c := range changes {
		it := s.items[c.ID]
		it.Order = c.Order
		s.items[c.ID] = it
	}
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return core.NewStoreError("delete item", fmt.Errorf("item %s: %w", id, core.ErrNotFound))
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListRevenues(_ context.Context, ownerID string, p core.Period) ([]core.Revenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Revenue
	for _, r := range s.revenues {
		if r.OwnerID == ownerID && r.Period() == p {
			out = append(out, r)
		}
	}
	sortRevenues(out)
	return out, nil
}

func (s *Store) ListRevenuesByGroup(_ context.Context, groupID string) ([]core.Revenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Revenue
	if groupID == "" {
		return out, nil
	}
	for _, r := range s.revenues {
		if r.GroupID == groupID {
			out = append(out, r)
		}
	}
	sortRevenues(out)
	return out, nil
}

func (s *Store) CreateRevenue(_ context.Context, r core.Revenue) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.newID()
	s.revenues[r.ID] = r
	return r.ID, nil
}

func (s *Store) DeleteRevenue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revenues[id]; !ok {
		return core.NewStoreError("delete revenue", fmt.Errorf("revenue %s: %w", id, core.ErrNotFound))
	}
	delete(s.revenues, id)
	return nil
}

// Len returns the number of stored items and revenues.
func (s *Store) Len() (items, revenues int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), len(s.revenues)
}

func sortRevenues(revs []core.Revenue) {
	sort.Slice(revs, func(i, j int) bool {
		if c := revs[i].Period().Compare(revs[j].Period()); c != 0 {
			return c < 0
		}
		return revs[i].ID < revs[j].ID
	})
}
