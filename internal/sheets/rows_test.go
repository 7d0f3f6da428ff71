package sheets

import (
	"testing"

	"github.com/shopspring/decimal"

	"bilan/internal/core"
)

func TestSheetTitle(t *testing.T) {
	p := core.NewPeriod(2025, 3)
	if got := SheetTitle("Budget", "u1", p); got != "Budget 2025-03 u1" {
		t.Errorf("SheetTitle = %q", got)
	}
	if got := SheetTitle("  ", "u1", p); got != "Bilan 2025-03 u1" {
		t.Errorf("SheetTitle default = %q", got)
	}
}

func TestRows(t *testing.T) {
	items := []core.BudgetItem{
		{ID: "c", Kind: core.KindCategory, Name: "Maison"},
		{ID: "s", Kind: core.KindSubcategory, Name: "Loyer", ParentID: "c", PlannedAmount: decimal.NewFromInt(800)},
		{ID: "t", Kind: core.KindTransaction, Name: "Juin", ParentID: "s", ActualAmount: decimal.NewFromInt(1000)},
	}
	revs := []core.Revenue{{Amount: decimal.NewFromInt(2500), RecurrenceKind: core.Regular}}
	p := core.NewPeriod(2025, 6)

	rows := Rows(PeriodReport{
		OwnerID:  "u1",
		Period:   p,
		Summary:  core.Aggregate(items),
		Revenues: core.SumRevenues(revs),
		Balance:  core.Balance(p, items, revs),
	})

	if len(rows) != 1+2+1+1+5 {
		t.Fatalf("unexpected row count %d: %v", len(rows), rows)
	}
	cat := rows[1]
	if cat[0] != "category" || cat[1] != "Maison" || cat[2] != "1000.00" || cat[3] != "800.00" || cat[4] != "+25.0%" || cat[5] != "over" {
		t.Errorf("category row = %v", cat)
	}
	last := rows[len(rows)-1]
	if last[1] != "Balance" || last[2] != "1500.00" {
		t.Errorf("balance row = %v", last)
	}
}
