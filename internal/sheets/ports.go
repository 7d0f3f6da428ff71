package sheets

import (
	"context"

	"bilan/internal/core"
)

// PeriodReport is everything exported for one owner and period.
type PeriodReport struct {
	OwnerID  string
	Period   core.Period
	Summary  core.Summary
	Revenues core.RevenueTotals
	Balance  core.PeriodBalance
}

// Ports for outbound adapters.
type (
	ReportWriter interface {
		// WriteReport replaces the report of r's owner and period and
		// returns a reference to where it was written.
		WriteReport(ctx context.Context, r PeriodReport) (ref string, err error)
	}
)
