package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilan/internal/core"
)

// UserHeader carries the caller identity set by the auth proxy in front of
// the service.
const UserHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

var errMissingUser = errors.New("missing " + UserHeader + " header")

// ownerID returns the authenticated owner of the request.
func ownerID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		return "", errMissingUser
	}
	return id, nil
}

// ParsePeriodParams reads year and month from the query, defaulting each
// missing one to the current period. Present but malformed values are a
// validation error.
func ParsePeriodParams(query url.Values, now time.Time) (core.Period, error) {
	p := core.PeriodOf(now)
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, core.Invalid("year", core.ErrInvalidYear)
		}
		p.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, core.Invalid("month", core.ErrInvalidMonth)
		}
		p.Month = m
	}
	return p, p.Validate()
}

// badRequest marks a body that could not be decoded at all.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &badRequest{err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &badRequest{err: errors.New("body must hold a single JSON object")}
	}
	return nil
}

// optionalAmount parses an amount field that may be absent.
func optionalAmount(field string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := core.ParseAmount(*s)
	if err != nil {
		return nil, core.Invalid(field, err)
	}
	return &d, nil
}

func amountOrZero(field string, s *string) (decimal.Decimal, error) {
	d, err := optionalAmount(field, s)
	if err != nil || d == nil {
		return decimal.Zero, err
	}
	return *d, nil
}

type itemRequest struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	Kind          string  `json:"kind"`
	Name          string  `json:"name"`
	ParentID      string  `json:"parentId"`
	PlannedAmount *string `json:"plannedAmount"`
	ActualAmount  *string `json:"actualAmount"`
}

func (req itemRequest) toItem(owner string) (core.BudgetItem, error) {
	planned, err := amountOrZero("plannedAmount", req.PlannedAmount)
	if err != nil {
		return core.BudgetItem{}, err
	}
	actual, err := amountOrZero("actualAmount", req.ActualAmount)
	if err != nil {
		return core.BudgetItem{}, err
	}
	return core.BudgetItem{
		OwnerID:       owner,
		Kind:          core.Kind(req.Kind),
		Name:          req.Name,
		Year:          req.Year,
		Month:         req.Month,
		ParentID:      req.ParentID,
		PlannedAmount: planned,
		ActualAmount:  actual,
	}, nil
}

type itemPatchRequest struct {
	Name          *string `json:"name"`
	PlannedAmount *string `json:"plannedAmount"`
	ActualAmount  *string `json:"actualAmount"`
	Order         *int    `json:"order"`
}

func (req itemPatchRequest) toPatch() (core.ItemPatch, error) {
	planned, err := optionalAmount("plannedAmount", req.PlannedAmount)
	if err != nil {
		return core.ItemPatch{}, err
	}
	actual, err := optionalAmount("actualAmount", req.ActualAmount)
	if err != nil {
		return core.ItemPatch{}, err
	}
	return core.ItemPatch{Name: req.Name, PlannedAmount: planned, ActualAmount: actual, Order: req.Order}, nil
}

type reorderRequest struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	ParentID string `json:"parentId"`
	Kind     string `json:"kind"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type revenueRequest struct {
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	Description    string `json:"description"`
	Amount         string `json:"amount"`
	RecurrenceKind string `json:"recurrenceKind"`
	StartDate      string `json:"startDate"`
}

func (req revenueRequest) startDate() (time.Time, error) {
	s := strings.TrimSpace(req.StartDate)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, core.Invalid("startDate", fmt.Errorf("%w: want YYYY-MM-DD", core.ErrMissingStartDate))
	}
	return t, nil
}
