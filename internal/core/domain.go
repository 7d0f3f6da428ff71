package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindCategory    Kind = "category"
	KindSubcategory Kind = "subcategory"
	KindTransaction Kind = "transaction"

	Regular     RecurrenceKind = "regular"
	Exceptional RecurrenceKind = "exceptional"
)

// MaxDescriptionLength bounds names and descriptions entered by users.
const MaxDescriptionLength = 200

type (
	// Kind discriminates the three levels of the budget tree.
	Kind string

	RecurrenceKind string

	// Period is the (year, month) scope every query and mutation runs in.
	Period struct {
		Year  int `json:"year"`
		Month int `json:"month"` // 1-12
	}

	BudgetItem struct {
		ID            string          `json:"id"`
		Kind          Kind            `json:"kind"`
		Name          string          `json:"name"`
		Year          int             `json:"year"`
		Month         int             `json:"month"`
		ParentID      string          `json:"parentId,omitempty"`
		PlannedAmount decimal.Decimal `json:"plannedAmount"`
		ActualAmount  decimal.Decimal `json:"actualAmount"`
		Order         int             `json:"order"`
		OwnerID       string          `json:"ownerId"`
	}

	Revenue struct {
		ID             string          `json:"id"`
		OwnerID        string          `json:"ownerId"`
		Year           int             `json:"year"`
		Month          int             `json:"month"`
		Description    string          `json:"description"`
		Amount         decimal.Decimal `json:"amount"`
		RecurrenceKind RecurrenceKind  `json:"recurrenceKind"`
		GroupID        string          `json:"groupId,omitempty"`
		StartDate      *time.Time      `json:"startDate,omitempty"`
	}

	// ItemPatch carries the fields of an edit; nil fields are left untouched.
	ItemPatch struct {
		Name          *string          `json:"name,omitempty"`
		PlannedAmount *decimal.Decimal `json:"plannedAmount,omitempty"`
		ActualAmount  *decimal.Decimal `json:"actualAmount,omitempty"`
		Order         *int             `json:"order,omitempty"`
	}

	// OrderChange is one (id, order) pair to persist after a reorder.
	OrderChange struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
)

var (
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount cannot be negative")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyOwner         = errors.New("empty owner")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidParent      = errors.New("invalid parent")
	ErrInvalidOrder       = errors.New("order cannot be negative")
	ErrMisplacedAmount    = errors.New("amount not allowed for this kind")
	ErrInvalidRecurrence  = errors.New("invalid recurrence kind")
	ErrMissingStartDate   = errors.New("start date required for regular revenue")
	ErrMissingGroup       = errors.New("group id required for regular revenue")
	ErrInvalidMove        = errors.New("invalid move")
	ErrNotFound           = errors.New("not found")
	ErrGroupCollision     = errors.New("group id already in use")
)

func (k Kind) IsValid() bool {
	switch k {
	case KindCategory, KindSubcategory, KindTransaction:
		return true
	default:
		return false
	}
}

// ParentKind returns the kind an item of kind k must hang under.
func (k Kind) ParentKind() (Kind, bool) {
	switch k {
	case KindSubcategory:
		return KindCategory, true
	case KindTransaction:
		return KindSubcategory, true
	default:
		return "", false
	}
}

func (r RecurrenceKind) IsValid() bool {
	return r == Regular || r == Exceptional
}

func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriod accepts the "YYYY-MM" form produced by String.
func ParsePeriod(s string) (Period, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, Invalid("period", ErrInvalidMonth)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return Period{}, Invalid("period", ErrInvalidYear)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return Period{}, Invalid("period", ErrInvalidMonth)
	}
	p := Period{Year: year, Month: month}
	return p, p.Validate()
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return Invalid("month", ErrInvalidMonth)
	}
	if p.Year < 1 || p.Year > 9999 {
		return Invalid("year", ErrInvalidYear)
	}
	return nil
}

// AddMonths moves the period n months forward (or backward when n < 0),
// rolling the year over at the December/January boundary.
func (p Period) AddMonths(n int) Period {
	idx := p.Year*12 + (p.Month - 1) + n
	return Period{Year: idx / 12, Month: idx%12 + 1}
}

// FirstDay returns midnight UTC on the first day of the period.
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 depending on whether p is before, equal to or
// after o.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year, p.Year == o.Year && p.Month < o.Month:
		return -1
	case p == o:
		return 0
	default:
		return 1
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (i BudgetItem) Period() Period {
	return Period{Year: i.Year, Month: i.Month}
}

func (i BudgetItem) Validate() error {
	if !i.Kind.IsValid() {
		return Invalid("kind", ErrInvalidKind)
	}
	if strings.TrimSpace(i.OwnerID) == "" {
		return Invalid("ownerId", ErrEmptyOwner)
	}
	if err := i.Period().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Name) == "" {
		return Invalid("name", ErrEmptyName)
	}
	if len(i.Name) > MaxDescriptionLength {
		return Invalid("name", ErrDescriptionTooLong)
	}
	if i.Order < 0 {
		return Invalid("order", ErrInvalidOrder)
	}

	switch i.Kind {
	case KindCategory:
		if i.ParentID != "" {
			return Invalid("parentId", ErrInvalidParent)
		}
	default:
		if strings.TrimSpace(i.ParentID) == "" {
			return Invalid("parentId", ErrInvalidParent)
		}
	}

	if i.PlannedAmount.IsNegative() {
		return Invalid("plannedAmount", ErrNegativeAmount)
	}
	if i.ActualAmount.IsNegative() {
		return Invalid("actualAmount", ErrNegativeAmount)
	}
	if i.Kind != KindSubcategory && !i.PlannedAmount.IsZero() {
		return Invalid("plannedAmount", ErrMisplacedAmount)
	}
	if i.Kind != KindTransaction && !i.ActualAmount.IsZero() {
		return Invalid("actualAmount", ErrMisplacedAmount)
	}
	return nil
}

// Apply returns a copy of i with the patch fields set.
func (i BudgetItem) Apply(p ItemPatch) BudgetItem {
	if p.Name != nil {
		i.Name = strings.TrimSpace(*p.Name)
	}
	if p.PlannedAmount != nil {
		i.PlannedAmount = *p.PlannedAmount
	}
	if p.ActualAmount != nil {
		i.ActualAmount = *p.ActualAmount
	}
	if p.Order != nil {
		i.Order = *p.Order
	}
	return i
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.PlannedAmount == nil && p.ActualAmount == nil && p.Order == nil
}

func (r Revenue) Period() Period {
	return Period{Year: r.Year, Month: r.Month}
}

func (r Revenue) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return Invalid("ownerId", ErrEmptyOwner)
	}
	if err := r.Period().Validate(); err != nil {
		return err
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}

	switch r.RecurrenceKind {
	case Regular:
		if r.GroupID == "" {
			return Invalid("groupId", ErrMissingGroup)
		}
		if r.StartDate == nil || r.StartDate.IsZero() {
			return Invalid("startDate", ErrMissingStartDate)
		}
	case Exceptional:
		// one-off records carry neither group nor start date
	default:
		return Invalid("recurrenceKind", ErrInvalidRecurrence)
	}
	return nil
}

func validateDescription(s string) error {
	if strings.TrimSpace(s) == "" {
		return Invalid("description", ErrEmptyDescription)
	}
	if len(s) > MaxDescriptionLength {
		return Invalid("description", ErrDescriptionTooLong)
	}
	return nil
}
