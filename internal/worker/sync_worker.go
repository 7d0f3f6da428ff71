package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bilan/internal/amqp"
	"bilan/internal/core"
	applog "bilan/internal/log"
	"bilan/internal/sheets"
	"bilan/internal/store"
)

// ReportWorker rebuilds the report of a period whenever it changes and
// hands it to the configured writer.
type ReportWorker struct {
	store   store.BudgetStore
	writer  sheets.ReportWriter
	timeout time.Duration
}

func NewReportWorker(st store.BudgetStore, w sheets.ReportWriter, timeout time.Duration) *ReportWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReportWorker{store: st, writer: w, timeout: timeout}
}

// HandlePeriodChanged processes one period-changed message from AMQP.
func (w *ReportWorker) HandlePeriodChanged(ctx context.Context, msg *amqp.PeriodChangedMessage) error {
	slog.InfoContext(ctx, "Processing period change",
		applog.NewFields().WithScope(msg.OwnerID, msg.Period()).WithOperation(applog.OpExport).
			With("reason", msg.Reason).ToSlice()...)

	if _, err := w.ExportPeriod(ctx, msg.OwnerID, msg.Period()); err != nil {
		return fmt.Errorf("export period %s: %w", msg.Period(), err)
	}
	return nil
}

// ExportPeriod loads the owner's items and revenues for p, builds the
// report and writes it. The writer's reference is returned.
func (w *ReportWorker) ExportPeriod(ctx context.Context, ownerID string, p core.Period) (string, error) {
	report, err := w.BuildReport(ctx, ownerID, p)
	if err != nil {
		return "", err
	}

	ref, err := w.writer.WriteReport(ctx, report)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to write report",
			applog.NewFields().WithScope(ownerID, p).WithError(err).ToSlice()...)
		return "", fmt.Errorf("write report: %w", err)
	}

	slog.InfoContext(ctx, "Report exported",
		applog.NewFields().WithScope(ownerID, p).With("sheets_ref", ref).ToSlice()...)
	return ref, nil
}

// BuildReport reads the period's data concurrently and aggregates it.
func (w *ReportWorker) BuildReport(ctx context.Context, ownerID string, p core.Period) (sheets.PeriodReport, error) {
	if ownerID == "" {
		return sheets.PeriodReport{}, core.Invalid("ownerId", core.ErrEmptyOwner)
	}
	if err := p.Validate(); err != nil {
		return sheets.PeriodReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var (
		items []core.BudgetItem
		revs  []core.Revenue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = w.store.ListItems(gctx, ownerID, p)
		return err
	})
	g.Go(func() error {
		var err error
		revs, err = w.store.ListRevenues(gctx, ownerID, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return sheets.PeriodReport{}, fmt.Errorf("load period: %w", err)
	}

	return sheets.PeriodReport{
		OwnerID:  ownerID,
		Period:   p,
		Summary:  core.Aggregate(items),
		Revenues: core.SumRevenues(revs),
		Balance:  core.Balance(p, items, revs),
	}, nil
}
