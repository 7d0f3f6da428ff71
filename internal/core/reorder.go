package core

// Move relocates the sibling at from to position to and renumbers every
// sibling so that orders run 0..n-1 without gaps.
//
// siblings must already be scoped to one parent and period and sorted by
// order. The input slice is never modified; when from == to it is returned
// as is.
func Move(siblings []BudgetItem, from, to int) ([]BudgetItem, error) {
	n := len(siblings)
	if from < 0 || from >= n {
		return nil, Invalid("fromIndex", ErrInvalidMove)
	}
	if to < 0 || to >= n {
		return nil, Invalid("toIndex", ErrInvalidMove)
	}
	if from == to {
		return siblings, nil
	}

	out := make([]BudgetItem, 0, n)
	moved := siblings[from]
	for i, it := range siblings {
		if i != from {
			out = append(out, it)
		}
	}
	out = append(out[:to], append([]BudgetItem{moved}, out[to:]...)...)

	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

// OrderChanges lists the items of after whose order differs from the one
// they had in before. Items absent from before are always listed.
func OrderChanges(before, after []BudgetItem) []OrderChange {
	prev := make(map[string]int, len(before))
	for _, it := range before {
		prev[it.ID] = it.Order
	}
	var changes []OrderChange
	for _, it := range after {
		if o, ok := prev[it.ID]; ok && o == it.Order {
			continue
		}
		changes = append(changes, OrderChange{ID: it.ID, Order: it.Order})
	}
	return changes
}

// Renumber assigns contiguous orders to siblings already in display order.
func Renumber(siblings []BudgetItem) []BudgetItem {
	out := make([]BudgetItem, len(siblings))
	copy(out, siblings)
	for i := range out {
		out[i].Order = i
	}
	return out
}
