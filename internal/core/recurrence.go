package core

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecurringMonths is how many monthly occurrences a regular revenue spans,
// the anchor included.
const RecurringMonths = 12

// RecurrenceRequest describes one regular revenue creation.
type RecurrenceRequest struct {
	OwnerID     string
	Description string
	Amount      decimal.Decimal
	StartDate   time.Time
	Anchor      Period
}

func (r RecurrenceRequest) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return Invalid("ownerId", ErrEmptyOwner)
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	if r.StartDate.IsZero() {
		return Invalid("startDate", ErrMissingStartDate)
	}
	return r.Anchor.Validate()
}

// RecurrenceExpander derives the records to persist for a regular revenue.
type RecurrenceExpander struct {
	// NewGroupID returns a fresh group identifier. Defaults to a random UUID.
	NewGroupID func() string
}

func NewRecurrenceExpander() *RecurrenceExpander {
	return &RecurrenceExpander{NewGroupID: uuid.NewString}
}

// Expand returns the anchor record followed, when the start date is on or
// before the first day of the anchor period, by the 11 following months.
// A start date after the anchor period yields the anchor record alone.
func (e *RecurrenceExpander) Expand(req RecurrenceRequest) ([]Revenue, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	newID := e.NewGroupID
	if newID == nil {
		newID = uuid.NewString
	}
	groupID := newID()
	start := req.StartDate

	anchor := Revenue{
		OwnerID:        req.OwnerID,
		Year:           req.Anchor.Year,
		Month:          req.Anchor.Month,
		Description:    strings.TrimSpace(req.Description),
		Amount:         req.Amount,
		RecurrenceKind: Regular,
		GroupID:        groupID,
		StartDate:      &start,
	}
	out := []Revenue{anchor}

	if dateOnly(start).After(req.Anchor.FirstDay()) {
		return out, nil
	}
	for i := 1; i < RecurringMonths; i++ {
		next := anchor
		p := req.Anchor.AddMonths(i)
		next.Year, next.Month = p.Year, p.Month
		s := start
		next.StartDate = &s
		out = append(out, next)
	}
	return out, nil
}

// CascadeDeleteSet returns the records to delete when target is deleted:
// target itself and, for a regular revenue, every member of its group in the
// same period or later. group must be freshly read from the store.
func CascadeDeleteSet(target Revenue, group []Revenue) []Revenue {
	out := []Revenue{target}
	if target.RecurrenceKind != Regular || target.GroupID == "" {
		return out
	}
	seen := map[string]bool{target.ID: true}
	from := target.Period()
	for _, r := range group {
		if r.GroupID != target.GroupID || seen[r.ID] {
			continue
		}
		if r.Period().Compare(from) >= 0 {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Period().Compare(out[j].Period()) < 0
	})
	return out
}

// dateOnly drops the clock so that a start date is compared by calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
