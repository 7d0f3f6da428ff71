package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"bilan/internal/amqp"
	"bilan/internal/core"
	applog "bilan/internal/log"
	"bilan/internal/store"
)

// BudgetService runs the budget tree operations of one owner and period
// against the store. It holds no budget state of its own.
type BudgetService struct {
	store store.BudgetStore
	opts  options
}

func NewBudgetService(st store.BudgetStore, opts ...Option) *BudgetService {
	return &BudgetService{store: st, opts: buildOptions(opts)}
}

// Items returns the owner's items for p as the store holds them.
func (s *BudgetService) Items(ctx context.Context, ownerID string, p core.Period) ([]core.BudgetItem, error) {
	if err := checkScope(ownerID, p); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()
	return s.store.ListItems(ctx, ownerID, p)
}

// Summary aggregates the owner's tree for p, serving it from the cache
// when one is configured.
func (s *BudgetService) Summary(ctx context.Context, ownerID string, p core.Period) (core.Summary, error) {
	key := summaryKey(ownerID, p)
	var epoch uint64
	if s.opts.cache != nil {
		if sum, ok := s.opts.cache.Get(key); ok {
			return sum, nil
		}
		epoch = s.opts.epoch(key)
	}
	items, err := s.Items(ctx, ownerID, p)
	if err != nil {
		return core.Summary{}, err
	}
	sum := core.Aggregate(items)
	if s.opts.cache != nil {
		s.opts.fill(key, epoch, sum)
	}
	return sum, nil
}

// AddItem validates item, checks its parent in the same scope and appends
// it after its highest-ordered sibling. The stored item is returned.
func (s *BudgetService) AddItem(ctx context.Context, item core.BudgetItem) (core.BudgetItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	item.ParentID = strings.TrimSpace(item.ParentID)
	item.Order = 0
	if err := item.Validate(); err != nil {
		return core.BudgetItem{}, err
	}

	p := item.Period()
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	items, err := s.store.ListItems(ctx, item.OwnerID, p)
	if err != nil {
		return core.BudgetItem{}, err
	}
	if want, ok := item.Kind.ParentKind(); ok {
		parent, found := findItem(items, item.ParentID)
		if !found || parent.Kind != want {
			return core.BudgetItem{}, core.Invalid("parentId", core.ErrInvalidParent)
		}
	}
	for _, sib := range core.Siblings(items, item.ParentID, item.Kind) {
		if sib.Order >= item.Order {
			item.Order = sib.Order + 1
		}
	}

	id, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return core.BudgetItem{}, err
	}
	item.ID = id
	s.changed(ctx, item.OwnerID, p)

	slog.InfoContext(ctx, "Budget item created", applog.NewFields().
		WithScope(item.OwnerID, p).WithItem(id, item.Kind).WithOperation(applog.OpCreate).ToSlice()...)
	return item, nil
}

// EditItem applies patch to the item id of the owner's tree for p. Orders
// only change through Reorder.
func (s *BudgetService) EditItem(ctx context.Context, ownerID string, p core.Period, id string, patch core.ItemPatch) (core.BudgetItem, error) {
	if err := checkScope(ownerID, p); err != nil {
		return core.BudgetItem{}, err
	}
	if patch.Order != nil {
		return core.BudgetItem{}, core.Invalid("order", core.ErrInvalidMove)
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	items, err := s.store.ListItems(ctx, ownerID, p)
	if err != nil {
		return core.BudgetItem{}, err
	}
	current, ok := findItem(items, id)
	if !ok {
		return core.BudgetItem{}, notFound("item", id)
	}
	if patch.IsEmpty() {
		return current, nil
	}
	updated := current.Apply(patch)
	if err := updated.Validate(); err != nil {
		return core.BudgetItem{}, err
	}

	if err := s.store.UpdateItem(ctx, id, patch); err != nil {
		return core.BudgetItem{}, err
	}
	s.changed(ctx, ownerID, p)

	slog.InfoContext(ctx, "Budget item updated", applog.NewFields().
		WithScope(ownerID, p).WithItem(id, current.Kind).WithOperation(applog.OpUpdate).ToSlice()...)
	return updated, nil
}

// DeleteItem removes the item id and everything below it, leaves first,
// then closes the gap it left among its siblings. Deletion stops at the
// first failed write and reports what was already removed.
func (s *BudgetService) DeleteItem(ctx context.Context, ownerID string, p core.Period, id string) error {
	if err := checkScope(ownerID, p); err != nil {
		return err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	items, err := s.store.ListItems(ctx, ownerID, p)
	if err != nil {
		return err
	}
	target, ok := findItem(items, id)
	if !ok {
		return notFound("item", id)
	}

	doomed := append(core.Descendants(items, id), target)
	var deleted []string
	for _, it := range doomed {
		if err := s.store.DeleteItem(ctx, it.ID); err != nil {
			if len(deleted) == 0 {
				return err
			}
			s.changed(ctx, ownerID, p)
			return &core.PartialApplicationError{
				Op:        "delete item",
				Succeeded: deleted,
				Failed:    []core.FailedWrite{{ID: it.ID, Err: err}},
			}
		}
		deleted = append(deleted, it.ID)
	}

	remaining := make([]core.BudgetItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			remaining = append(remaining, it)
		}
	}
	siblings := core.Siblings(remaining, target.ParentID, target.Kind)
	changes := core.OrderChanges(siblings, core.Renumber(siblings))
	err = s.persistOrders(ctx, "delete item", changes)
	s.changed(ctx, ownerID, p)

	f := applog.NewFields().WithScope(ownerID, p).WithItem(id, target.Kind).WithOperation(applog.OpDelete)
	f[applog.FieldCount] = len(deleted)
	slog.InfoContext(ctx, "Budget item deleted", f.ToSlice()...)
	if err == nil {
		return nil
	}

	// the deletes stand; only sibling orders are off
	var partial *core.PartialApplicationError
	if errors.As(err, &partial) {
		partial.Succeeded = append(deleted, partial.Succeeded...)
		return partial
	}
	failed := make([]core.FailedWrite, len(changes))
	for i, c := range changes {
		failed[i] = core.FailedWrite{ID: c.ID, Err: err}
	}
	return &core.PartialApplicationError{Op: "delete item", Succeeded: deleted, Failed: failed}
}

// Reorder moves the sibling at from to position to among the children of
// kind under parentID, then persists the orders that changed. It returns
// the siblings in their new order.
func (s *BudgetService) Reorder(ctx context.Context, ownerID string, p core.Period, parentID string, kind core.Kind, from, to int) ([]core.BudgetItem, error) {
	if err := checkScope(ownerID, p); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, core.Invalid("kind", core.ErrInvalidKind)
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	items, err := s.store.ListItems(ctx, ownerID, p)
	if err != nil {
		return nil, err
	}
	siblings := core.Siblings(items, parentID, kind)
	moved, err := core.Move(siblings, from, to)
	if err != nil {
		return nil, err
	}
	changes := core.OrderChanges(siblings, moved)
	if len(changes) == 0 {
		return moved, nil
	}

	if err := s.persistOrders(ctx, "reorder", changes); err != nil {
		if IsPartial(err) {
			s.changed(ctx, ownerID, p)
		}
		return nil, err
	}
	s.changed(ctx, ownerID, p)

	f := applog.NewFields().WithScope(ownerID, p).WithOperation(applog.OpReorder)
	f[applog.FieldKind] = string(kind)
	f[applog.FieldCount] = len(changes)
	slog.InfoContext(ctx, "Budget items reordered", f.ToSlice()...)
	return moved, nil
}

// persistOrders writes changes atomically when the store supports batches,
// otherwise as independent concurrent updates.
func (s *BudgetService) persistOrders(ctx context.Context, op string, changes []core.OrderChange) error {
	if len(changes) == 0 {
		return nil
	}
	if b, ok := s.store.(store.BatchUpdater); ok {
		return b.UpdateItemsBatch(ctx, changes)
	}

	orders := make(map[string]int, len(changes))
	ids := make([]string, len(changes))
	for i, c := range changes {
		orders[c.ID] = c.Order
		ids[i] = c.ID
	}
	succeeded, failed := fanOut(ctx, ids, func(ctx context.Context, id string) error {
		order := orders[id]
		return s.store.UpdateItem(ctx, id, core.ItemPatch{Order: &order})
	})
	if len(failed) == 0 {
		return nil
	}
	if len(succeeded) == 0 {
		return failed[0].Err
	}
	return &core.PartialApplicationError{Op: op, Succeeded: succeeded, Failed: failed}
}

func (s *BudgetService) changed(ctx context.Context, ownerID string, p core.Period) {
	s.opts.invalidate(ownerID, p)
	s.opts.notify(ctx, ownerID, p, amqp.ReasonItems)
}

func checkScope(ownerID string, p core.Period) error {
	if strings.TrimSpace(ownerID) == "" {
		return core.Invalid("ownerId", core.ErrEmptyOwner)
	}
	return p.Validate()
}

func findItem(items []core.BudgetItem, id string) (core.BudgetItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return core.BudgetItem{}, false
}
