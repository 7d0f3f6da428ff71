package memory

import (
	"context"
	"sort"
	"sync"

	"bilan/internal/sheets"
)

var _ sheets.ReportWriter = (*Writer)(nil)

// Writer keeps exported reports in memory, keyed by sheet title. It stands
// in for the spreadsheet when none is configured.
type Writer struct {
	mu     sync.Mutex
	base   string
	sheets map[string][][]any
}

func New(base string) *Writer {
	return &Writer{base: base, sheets: make(map[string][][]any)}
}

func (w *Writer) WriteReport(_ context.Context, r sheets.PeriodReport) (string, error) {
	title := sheets.SheetTitle(w.base, r.OwnerID, r.Period)
	rows := sheets.Rows(r)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sheets[title] = rows
	return "mem:" + title, nil
}

// Sheet returns the rows last written under title.
func (w *Writer) Sheet(title string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.sheets[title]
	return rows, ok
}

// Titles lists the written sheets in name order.
func (w *Writer) Titles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.sheets))
	for t := range w.sheets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
