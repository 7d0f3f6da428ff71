package sheets

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bilan/internal/core"
)

// Header is the first row of every exported report.
var Header = []any{"Level", "Name", "Realized", "Planned", "Variance", "Status"}

// SheetTitle names the tab holding one owner's report for p.
func SheetTitle(base, ownerID string, p core.Period) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "Bilan"
	}
	return fmt.Sprintf("%s %s %s", base, p.String(), ownerID)
}

// Rows lays a report out as spreadsheet rows: the budget tree first, then
// the revenue and balance lines. Amounts are written as plain decimal
// strings so the sheet locale decides their display.
func Rows(r PeriodReport) [][]any {
	rows := [][]any{Header}
	for _, c := range r.Summary.Categories {
		rows = append(rows, totalsRow("category", c.Name, c.Totals))
		for _, s := range c.Subcategories {
			rows = append(rows, totalsRow("subcategory", s.Name, s.Totals))
		}
	}
	rows = append(rows,
		[]any{"total", "Budget", amount(r.Summary.GrandRealized), amount(r.Summary.GrandPlanned),
			r.Summary.GrandVariancePct, string(r.Summary.GrandStatus)},
		[]any{},
		[]any{"revenues", "Regular", amount(r.Revenues.Regular)},
		[]any{"revenues", "Exceptional", amount(r.Revenues.Exceptional)},
		[]any{"revenues", "Total", amount(r.Revenues.Total)},
		[]any{"balance", "Expenses", amount(r.Balance.Expenses)},
		[]any{"balance", "Balance", amount(r.Balance.Balance)},
	)
	return rows
}

func totalsRow(level, name string, t core.Totals) []any {
	return []any{level, name, amount(t.Realized), amount(t.Planned), t.VariancePct, string(t.Status)}
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
