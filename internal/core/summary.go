package core

import "github.com/shopspring/decimal"

// RevenueTotals splits a period's income by recurrence kind.
type RevenueTotals struct {
	Total       decimal.Decimal `json:"total"`
	Regular     decimal.Decimal `json:"regular"`
	Exceptional decimal.Decimal `json:"exceptional"`
}

// PeriodBalance is a compact income/spending summary for a specific
// year+month.
type PeriodBalance struct {
	Period   Period          `json:"period"`
	Revenues decimal.Decimal `json:"revenues"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

func SumRevenues(revs []Revenue) RevenueTotals {
	t := RevenueTotals{Total: decimal.Zero, Regular: decimal.Zero, Exceptional: decimal.Zero}
	for _, r := range revs {
		t.Total = t.Total.Add(r.Amount)
		switch r.RecurrenceKind {
		case Regular:
			t.Regular = t.Regular.Add(r.Amount)
		case Exceptional:
			t.Exceptional = t.Exceptional.Add(r.Amount)
		}
	}
	return t
}

// Balance compares income against spending for one period. Spending counts
// every transaction of the period, including ones the tree would drop as
// orphans.
func Balance(p Period, items []BudgetItem, revs []Revenue) PeriodBalance {
	expenses := decimal.Zero
	for _, it := range items {
		if it.Kind == KindTransaction {
			expenses = expenses.Add(it.ActualAmount)
		}
	}
	revenues := SumRevenues(revs).Total
	return PeriodBalance{
		Period:   p,
		Revenues: revenues,
		Expenses: expenses,
		Balance:  revenues.Sub(expenses),
	}
}
