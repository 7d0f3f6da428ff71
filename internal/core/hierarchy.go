package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// VarianceOver means the realized amount exceeds the plan, which is
	// unfavorable for an expense budget.
	VarianceOver VarianceStatus = "over"
	// VarianceWithin covers realized amounts under or equal to the plan.
	VarianceWithin VarianceStatus = "under-or-equal"
)

var hundred = decimal.NewFromInt(100)

type (
	VarianceStatus string

	// Totals is a (realized, planned) pair with its variance.
	Totals struct {
		Realized    decimal.Decimal `json:"realized"`
		Planned     decimal.Decimal `json:"planned"`
		VariancePct string          `json:"variancePct"`
		Status      VarianceStatus  `json:"status"`
	}

	SubcategorySummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Totals
	}

	CategorySummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Totals
		Subcategories []SubcategorySummary `json:"subcategories"`
	}

	// Summary is the folded view of one (owner, period) budget.
	Summary struct {
		GrandRealized    decimal.Decimal   `json:"grandRealized"`
		GrandPlanned     decimal.Decimal   `json:"grandPlanned"`
		GrandVariancePct string            `json:"grandVariancePct"`
		GrandStatus      VarianceStatus    `json:"grandStatus"`
		Categories       []CategorySummary `json:"categories"`
	}
)

// Aggregate folds a flat list of budget items, already scoped to one owner
// and period, into per-subcategory, per-category and grand totals.
//
// Items whose parent is missing from the list, or is of the wrong kind, are
// left out of every total. Children of a left-out item are left out too.
func Aggregate(items []BudgetItem) Summary {
	children := indexChildren(items)

	var categories []BudgetItem
	for _, it := range items {
		if it.Kind == KindCategory {
			categories = append(categories, it)
		}
	}
	sortSiblings(categories)

	sum := Summary{
		GrandRealized: decimal.Zero,
		GrandPlanned:  decimal.Zero,
		Categories:    make([]CategorySummary, 0, len(categories)),
	}

	for _, c := range categories {
		cs := CategorySummary{ID: c.ID, Name: c.Name, Subcategories: []SubcategorySummary{}}
		realized, planned := decimal.Zero, decimal.Zero

		for _, s := range childrenOfKind(children, c.ID, KindSubcategory) {
			subRealized := decimal.Zero
			for _, t := range childrenOfKind(children, s.ID, KindTransaction) {
				subRealized = subRealized.Add(t.ActualAmount)
			}
			cs.Subcategories = append(cs.Subcategories, SubcategorySummary{
				ID:     s.ID,
				Name:   s.Name,
				Totals: NewTotals(subRealized, s.PlannedAmount),
			})
			realized = realized.Add(subRealized)
			planned = planned.Add(s.PlannedAmount)
		}

		cs.Totals = NewTotals(realized, planned)
		sum.Categories = append(sum.Categories, cs)
		sum.GrandRealized = sum.GrandRealized.Add(realized)
		sum.GrandPlanned = sum.GrandPlanned.Add(planned)
	}

	sum.GrandVariancePct = Variance(sum.GrandRealized, sum.GrandPlanned)
	sum.GrandStatus = Status(sum.GrandRealized, sum.GrandPlanned)
	return sum
}

// NewTotals computes the variance fields for a (realized, planned) pair.
func NewTotals(realized, planned decimal.Decimal) Totals {
	return Totals{
		Realized:    realized,
		Planned:     planned,
		VariancePct: Variance(realized, planned),
		Status:      Status(realized, planned),
	}
}

// VarianceRatio returns ((realized - planned) / planned) * 100, or zero when
// nothing was planned.
func VarianceRatio(realized, planned decimal.Decimal) decimal.Decimal {
	if planned.IsZero() {
		return decimal.Zero
	}
	return realized.Sub(planned).Div(planned).Mul(hundred)
}

// Variance formats the deviation of realized from planned as a percentage
// with one decimal: "+25.0%", "-20.0%". Nothing planned yields "0%".
func Variance(realized, planned decimal.Decimal) string {
	if planned.IsZero() {
		return "0%"
	}
	v := VarianceRatio(realized, planned).Round(1)
	s := v.StringFixed(1) + "%"
	if v.IsPositive() {
		return "+" + s
	}
	return s
}

func Status(realized, planned decimal.Decimal) VarianceStatus {
	if VarianceRatio(realized, planned).IsPositive() {
		return VarianceOver
	}
	return VarianceWithin
}

// indexChildren maps every parent id to the items that reference it.
func indexChildren(items []BudgetItem) map[string][]BudgetItem {
	idx := make(map[string][]BudgetItem)
	for _, it := range items {
		if it.ParentID == "" {
			continue
		}
		idx[it.ParentID] = append(idx[it.ParentID], it)
	}
	return idx
}

func childrenOfKind(idx map[string][]BudgetItem, parentID string, kind Kind) []BudgetItem {
	var out []BudgetItem
	for _, it := range idx[parentID] {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	sortSiblings(out)
	return out
}

// sortSiblings orders items by display order, ties broken by id.
func sortSiblings(items []BudgetItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
}

// Siblings returns the items of kind sharing parentID, in display order.
// Categories are siblings of each other under the empty parent.
func Siblings(items []BudgetItem, parentID string, kind Kind) []BudgetItem {
	var out []BudgetItem
	for _, it := range items {
		if it.Kind == kind && it.ParentID == parentID {
			out = append(out, it)
		}
	}
	sortSiblings(out)
	return out
}

// Descendants returns every item below id, deepest first.
func Descendants(items []BudgetItem, id string) []BudgetItem {
	idx := indexChildren(items)
	seen := map[string]bool{id: true}
	var out []BudgetItem
	var walk func(string)
	walk = func(parent string) {
		for _, c := range idx[parent] {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			walk(c.ID)
			out = append(out, c)
		}
	}
	walk(id)
	return out
}
