package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilan/internal/amqp"
	"bilan/internal/core"
	"bilan/internal/sheets"
	sheetsmem "bilan/internal/sheets/memory"
	"bilan/internal/store/memory"
)

func seed(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	cat, err := st.CreateItem(ctx, core.BudgetItem{OwnerID: "u1", Kind: core.KindCategory, Name: "Maison", Year: 2025, Month: 6})
	require.NoError(t, err)
	sub, err := st.CreateItem(ctx, core.BudgetItem{OwnerID: "u1", Kind: core.KindSubcategory, Name: "Loyer", ParentID: cat,
		Year: 2025, Month: 6, PlannedAmount: decimal.RequireFromString("800")})
	require.NoError(t, err)
	_, err = st.CreateItem(ctx, core.BudgetItem{OwnerID: "u1", Kind: core.KindTransaction, Name: "Juin", ParentID: sub,
		Year: 2025, Month: 6, ActualAmount: decimal.RequireFromString("780")})
	require.NoError(t, err)
	_, err = st.CreateRevenue(ctx, core.Revenue{OwnerID: "u1", Year: 2025, Month: 6, Description: "Salaire",
		Amount: decimal.RequireFromString("2500"), RecurrenceKind: core.Exceptional})
	require.NoError(t, err)
}

func TestHandlePeriodChangedWritesReport(t *testing.T) {
	st := memory.New()
	seed(t, st)
	out := sheetsmem.New("Bilan")
	w := NewReportWorker(st, out, time.Second)

	msg := amqp.NewPeriodChangedMessage("u1", core.NewPeriod(2025, 6), amqp.ReasonItems)
	require.NoError(t, w.HandlePeriodChanged(context.Background(), msg))

	rows, ok := out.Sheet("Bilan 2025-06 u1")
	require.True(t, ok, "titles: %v", out.Titles())
	assert.Equal(t, sheets.Header, rows[0])
	assert.Equal(t, []any{"category", "Maison", "780.00", "800.00", "-2.5%", "under-or-equal"}, rows[1])
}

func TestBuildReportTotals(t *testing.T) {
	st := memory.New()
	seed(t, st)
	w := NewReportWorker(st, sheetsmem.New(""), 0)

	r, err := w.BuildReport(context.Background(), "u1", core.NewPeriod(2025, 6))
	require.NoError(t, err)
	assert.True(t, r.Summary.GrandRealized.Equal(decimal.RequireFromString("780")))
	assert.True(t, r.Revenues.Total.Equal(decimal.RequireFromString("2500")))
	assert.True(t, r.Balance.Balance.Equal(decimal.RequireFromString("1720")))

	empty, err := w.BuildReport(context.Background(), "u1", core.NewPeriod(2025, 7))
	require.NoError(t, err)
	assert.Empty(t, empty.Summary.Categories)

	_, err = w.BuildReport(context.Background(), "", core.NewPeriod(2025, 7))
	assert.True(t, errors.Is(err, core.ErrEmptyOwner))
	_, err = w.BuildReport(context.Background(), "u1", core.NewPeriod(2025, 0))
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))
}

type failingWriter struct{}

func (failingWriter) WriteReport(context.Context, sheets.PeriodReport) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandlePeriodChangedWriterError(t *testing.T) {
	w := NewReportWorker(memory.New(), failingWriter{}, time.Second)
	err := w.HandlePeriodChanged(context.Background(),
		amqp.NewPeriodChangedMessage("u1", core.NewPeriod(2025, 6), amqp.ReasonRevenues))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
