package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilan/internal/core"
	"bilan/internal/store/memory"
)

func fixedGroup(id string) *core.RecurrenceExpander {
	return &core.RecurrenceExpander{NewGroupID: func() string { return id }}
}

func salary(p core.Period, start time.Time) RevenueRequest {
	return RevenueRequest{
		OwnerID:     "u1",
		Period:      p,
		Description: "Salaire",
		Amount:      amount("2500"),
		Kind:        core.Regular,
		StartDate:   start,
	}
}

func TestAddRegularRevenueCreatesTwelveMonths(t *testing.T) {
	mem := memory.New()
	n := &recordingNotifier{}
	svc := NewRevenueService(mem, fixedGroup("g-1"), WithNotifier(n))

	recs, err := svc.Add(context.Background(), salary(core.NewPeriod(2025, 11), time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Len(t, recs, 12)
	assert.Equal(t, core.NewPeriod(2025, 11), recs[0].Period())
	assert.Equal(t, core.NewPeriod(2026, 10), recs[11].Period())
	for _, r := range recs {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "g-1", r.GroupID)
	}
	assert.Len(t, n.Sent(), 12)

	dec2025, err := svc.List(context.Background(), "u1", core.NewPeriod(2025, 12))
	require.NoError(t, err)
	require.Len(t, dec2025.Revenues, 1)
	assert.True(t, dec2025.Totals.Regular.Equal(amount("2500")))
}

func TestAddRegularRevenueFutureStartIsSingle(t *testing.T) {
	svc := NewRevenueService(memory.New(), nil)
	recs, err := svc.Add(context.Background(), salary(core.NewPeriod(2025, 6), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAddRegularRevenueGroupCollision(t *testing.T) {
	mem := memory.New()
	_, err := mem.CreateRevenue(context.Background(), core.Revenue{
		OwnerID: "u2", Year: 2024, Month: 1, Description: "Autre", Amount: amount("1"),
		RecurrenceKind: core.Regular, GroupID: "g-1",
	})
	require.NoError(t, err)

	svc := NewRevenueService(mem, fixedGroup("g-1"))
	_, err = svc.Add(context.Background(), salary(june, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, errors.Is(err, core.ErrGroupCollision))

	_, revs := mem.Len()
	assert.Equal(t, 1, revs)
}

func TestAddRegularRevenueCompensatesPartialFailure(t *testing.T) {
	st := newFlakyStore()
	st.failCreateMonths[8] = true
	svc := NewRevenueService(st, fixedGroup("g-1"))

	_, err := svc.Add(context.Background(), salary(june, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	var partial *core.PartialApplicationError
	require.True(t, errors.As(err, &partial), "got %v", err)
	assert.Len(t, partial.Succeeded, 11)
	assert.Equal(t, []string{"#2"}, partial.FailedIDs())
	assert.ElementsMatch(t, partial.Succeeded, partial.Compensated)
	assert.True(t, errors.Is(err, errBackend))

	left, err := st.ListRevenuesByGroup(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestAddRevenueValidation(t *testing.T) {
	st := newFlakyStore()
	svc := NewRevenueService(st, nil)

	req := salary(june, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	req.Amount = amount("0")
	_, err := svc.Add(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))

	req = salary(june, time.Time{})
	_, err = svc.Add(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrMissingStartDate))

	req = salary(june, time.Now())
	req.Kind = "monthly"
	_, err = svc.Add(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidRecurrence))

	req.Kind = core.Exceptional
	req.Description = "   "
	_, err = svc.Add(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrEmptyDescription))

	assert.Equal(t, 0, st.Calls())
}

func TestDeleteRegularRevenueCascadesForward(t *testing.T) {
	mem := memory.New()
	svc := NewRevenueService(mem, fixedGroup("g-1"))
	_, err := svc.Add(context.Background(), salary(core.NewPeriod(2025, 1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	bonus, err := svc.Add(context.Background(), RevenueRequest{
		OwnerID: "u1", Period: core.NewPeriod(2025, 4), Description: "Prime", Amount: amount("300"), Kind: core.Exceptional,
	})
	require.NoError(t, err)

	april, err := svc.List(context.Background(), "u1", core.NewPeriod(2025, 4))
	require.NoError(t, err)
	var target core.Revenue
	for _, r := range april.Revenues {
		if r.RecurrenceKind == core.Regular {
			target = r
		}
	}
	require.NotEmpty(t, target.ID)

	deleted, err := svc.Delete(context.Background(), "u1", core.NewPeriod(2025, 4), target.ID)
	require.NoError(t, err)
	assert.Len(t, deleted, 9)

	left, _ := mem.ListRevenuesByGroup(context.Background(), "g-1")
	require.Len(t, left, 3)
	assert.Equal(t, core.NewPeriod(2025, 3), left[2].Period())

	april, _ = svc.List(context.Background(), "u1", core.NewPeriod(2025, 4))
	require.Len(t, april.Revenues, 1)
	assert.Equal(t, bonus[0].ID, april.Revenues[0].ID)

	// exceptional revenues go alone
	deleted, err = svc.Delete(context.Background(), "u1", core.NewPeriod(2025, 4), bonus[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bonus[0].ID}, deleted)

	_, err = svc.Delete(context.Background(), "u1", core.NewPeriod(2025, 4), bonus[0].ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestDeleteRevenuePartialFailure(t *testing.T) {
	st := newFlakyStore()
	svc := NewRevenueService(st, fixedGroup("g-1"))
	recs, err := svc.Add(context.Background(), salary(core.NewPeriod(2025, 1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	st.failDeleteRevenue[recs[5].ID] = true

	deleted, err := svc.Delete(context.Background(), "u1", core.NewPeriod(2025, 3), recs[2].ID)
	var partial *core.PartialApplicationError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{recs[5].ID}, partial.FailedIDs())
	assert.Len(t, deleted, 9)
}

func TestBalance(t *testing.T) {
	mem := memory.New()
	budget := NewBudgetService(mem)
	revenues := NewRevenueService(mem, nil)

	cat := add(t, budget, core.KindCategory, "Maison", "", "", "")
	sub := add(t, budget, core.KindSubcategory, "Loyer", cat.ID, "800", "")
	add(t, budget, core.KindTransaction, "Juin", sub.ID, "", "780.40")
	_, err := revenues.Add(context.Background(), RevenueRequest{
		OwnerID: "u1", Period: june, Description: "Prime", Amount: amount("1000"), Kind: core.Exceptional,
	})
	require.NoError(t, err)

	b, err := revenues.Balance(context.Background(), "u1", june)
	require.NoError(t, err)
	assert.True(t, b.Revenues.Equal(amount("1000")))
	assert.True(t, b.Expenses.Equal(amount("780.4")))
	assert.True(t, b.Balance.Equal(amount("219.6")))

	empty, err := revenues.Balance(context.Background(), "u1", core.NewPeriod(2030, 1))
	require.NoError(t, err)
	assert.True(t, empty.Balance.IsZero())
}
