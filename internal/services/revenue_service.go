package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bilan/internal/amqp"
	"bilan/internal/core"
	applog "bilan/internal/log"
	"bilan/internal/store"
)

// RevenueRequest is one revenue entry as the user submits it. StartDate is
// only read for regular revenues.
type RevenueRequest struct {
	OwnerID     string
	Period      core.Period
	Description string
	Amount      decimal.Decimal
	Kind        core.RecurrenceKind
	StartDate   time.Time
}

// RevenueList is the revenues of one period with their totals.
type RevenueList struct {
	Period   core.Period        `json:"period"`
	Revenues []core.Revenue     `json:"revenues"`
	Totals   core.RevenueTotals `json:"totals"`
}

type RevenueService struct {
	store    store.BudgetStore
	expander *core.RecurrenceExpander
	opts     options
}

func NewRevenueService(st store.BudgetStore, expander *core.RecurrenceExpander, opts ...Option) *RevenueService {
	if expander == nil {
		expander = core.NewRecurrenceExpander()
	}
	return &RevenueService{store: st, expander: expander, opts: buildOptions(opts)}
}

func (s *RevenueService) List(ctx context.Context, ownerID string, p core.Period) (RevenueList, error) {
	if err := checkScope(ownerID, p); err != nil {
		return RevenueList{}, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	revs, err := s.store.ListRevenues(ctx, ownerID, p)
	if err != nil {
		return RevenueList{}, err
	}
	if revs == nil {
		revs = []core.Revenue{}
	}
	return RevenueList{Period: p, Revenues: revs, Totals: core.SumRevenues(revs)}, nil
}

// Add records an exceptional revenue as a single record and a regular one
// as its expanded series. It returns the stored records.
func (s *RevenueService) Add(ctx context.Context, req RevenueRequest) ([]core.Revenue, error) {
	switch req.Kind {
	case core.Exceptional:
		r, err := s.addExceptional(ctx, req)
		if err != nil {
			return nil, err
		}
		return []core.Revenue{r}, nil
	case core.Regular:
		return s.addRegular(ctx, req)
	default:
		return nil, core.Invalid("recurrenceKind", core.ErrInvalidRecurrence)
	}
}

func (s *RevenueService) addExceptional(ctx context.Context, req RevenueRequest) (core.Revenue, error) {
	r := core.Revenue{
		OwnerID:        req.OwnerID,
		Year:           req.Period.Year,
		Month:          req.Period.Month,
		Description:    strings.TrimSpace(req.Description),
		Amount:         req.Amount,
		RecurrenceKind: core.Exceptional,
	}
	if err := r.Validate(); err != nil {
		return core.Revenue{}, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	id, err := s.store.CreateRevenue(ctx, r)
	if err != nil {
		return core.Revenue{}, err
	}
	r.ID = id
	s.opts.notify(ctx, r.OwnerID, r.Period(), amqp.ReasonRevenues)

	slog.InfoContext(ctx, "Exceptional revenue created", applog.NewFields().
		WithScope(r.OwnerID, r.Period()).WithOperation(applog.OpCreate).ToSlice()...)
	return r, nil
}

// addRegular expands the request and creates every record concurrently.
// If some creates fail, the ones that succeeded are deleted again and a
// PartialApplicationError lists all three outcomes.
func (s *RevenueService) addRegular(ctx context.Context, req RevenueRequest) ([]core.Revenue, error) {
	records, err := s.expander.Expand(core.RecurrenceRequest{
		OwnerID:     req.OwnerID,
		Description: req.Description,
		Amount:      req.Amount,
		StartDate:   req.StartDate,
		Anchor:      req.Period,
	})
	if err != nil {
		return nil, err
	}
	groupID := records[0].GroupID

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	existing, err := s.store.ListRevenuesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("group %s: %w", groupID, core.ErrGroupCollision)
	}

	keys := make([]string, len(records))
	index := make(map[string]int, len(records))
	for i := range records {
		keys[i] = "#" + strconv.Itoa(i)
		index[keys[i]] = i
	}
	ids := make([]string, len(records))
	created, failed := fanOut(ctx, keys, func(ctx context.Context, key string) error {
		i := index[key]
		id, err := s.store.CreateRevenue(ctx, records[i])
		if err != nil {
			return err
		}
		ids[i] = id
		return nil
	})

	if len(failed) > 0 {
		if len(created) == 0 {
			return nil, failed[0].Err
		}
		return nil, s.compensate(ctx, req.OwnerID, groupID, created, failed, ids, index)
	}

	for i := range records {
		records[i].ID = ids[i]
		s.opts.notify(ctx, req.OwnerID, records[i].Period(), amqp.ReasonRevenues)
	}

	f := applog.NewFields().WithScope(req.OwnerID, req.Period).WithGroup(groupID).WithOperation(applog.OpCreate)
	f[applog.FieldCount] = len(records)
	slog.InfoContext(ctx, "Regular revenue created", f.ToSlice()...)
	return records, nil
}

func (s *RevenueService) compensate(ctx context.Context, ownerID, groupID string, created []string, failed []core.FailedWrite, ids []string, index map[string]int) error {
	succeeded := make([]string, len(created))
	for i, key := range created {
		succeeded[i] = ids[index[key]]
	}
	undone, undoFailed := fanOut(ctx, succeeded, func(ctx context.Context, id string) error {
		return s.store.DeleteRevenue(ctx, id)
	})
	for _, u := range undoFailed {
		failed = append(failed, core.FailedWrite{ID: u.ID, Err: fmt.Errorf("compensating delete: %w", u.Err)})
	}

	f := applog.NewFields().WithGroup(groupID).WithOperation(applog.OpCreate).WithErrorType(applog.ErrorTypePartial)
	f[applog.FieldOwner] = ownerID
	f[applog.FieldCount] = len(failed)
	slog.ErrorContext(ctx, "Regular revenue partially created", f.ToSlice()...)

	return &core.PartialApplicationError{
		Op:          "create regular revenue",
		Succeeded:   succeeded,
		Failed:      failed,
		Compensated: undone,
	}
}

// Delete removes the revenue id of the owner's period p. A regular revenue
// takes every later record of its group with it; the group is re-read from
// the store first. The ids actually deleted are returned.
func (s *RevenueService) Delete(ctx context.Context, ownerID string, p core.Period, id string) ([]string, error) {
	if err := checkScope(ownerID, p); err != nil {
		return nil, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	revs, err := s.store.ListRevenues(ctx, ownerID, p)
	if err != nil {
		return nil, err
	}
	var (
		target core.Revenue
		found  bool
	)
	for _, r := range revs {
		if r.ID == id {
			target, found = r, true
			break
		}
	}
	if !found {
		return nil, notFound("revenue", id)
	}

	var group []core.Revenue
	if target.RecurrenceKind == core.Regular && target.GroupID != "" {
		if group, err = s.store.ListRevenuesByGroup(ctx, target.GroupID); err != nil {
			return nil, err
		}
	}

	set := core.CascadeDeleteSet(target, group)
	periods := make(map[string]core.Period, len(set))
	ids := make([]string, 0, len(set))
	for _, r := range set {
		if r.OwnerID != ownerID {
			continue
		}
		ids = append(ids, r.ID)
		periods[r.ID] = r.Period()
	}

	deleted, failed := fanOut(ctx, ids, func(ctx context.Context, id string) error {
		return s.store.DeleteRevenue(ctx, id)
	})
	for _, d := range deleted {
		s.opts.notify(ctx, ownerID, periods[d], amqp.ReasonRevenues)
	}

	f := applog.NewFields().WithScope(ownerID, p).WithGroup(target.GroupID).WithOperation(applog.OpDelete)
	f[applog.FieldRevenueID] = id
	f[applog.FieldCount] = len(deleted)
	if len(failed) == 0 {
		slog.InfoContext(ctx, "Revenue deleted", f.ToSlice()...)
		return deleted, nil
	}
	slog.ErrorContext(ctx, "Revenue delete failed", f.WithError(failed[0].Err).ToSlice()...)
	if len(deleted) == 0 {
		return nil, failed[0].Err
	}
	return deleted, &core.PartialApplicationError{Op: "delete revenue", Succeeded: deleted, Failed: failed}
}

// Balance reads the period's items and revenues concurrently and compares
// income against spending.
func (s *RevenueService) Balance(ctx context.Context, ownerID string, p core.Period) (core.PeriodBalance, error) {
	if err := checkScope(ownerID, p); err != nil {
		return core.PeriodBalance{}, err
	}
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var (
		items []core.BudgetItem
		revs  []core.Revenue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.ListItems(gctx, ownerID, p)
		return err
	})
	g.Go(func() error {
		var err error
		revs, err = s.store.ListRevenues(gctx, ownerID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.PeriodBalance{}, err
	}
	return core.Balance(p, items, revs), nil
}

// IsPartial reports whether err is a composite operation that applied only
// in part.
func IsPartial(err error) bool {
	var partial *core.PartialApplicationError
	return errors.As(err, &partial)
}
