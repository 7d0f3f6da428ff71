//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"bilan/internal/core"
	"bilan/internal/sheets"
)

// Integration tests need real credentials and a scratch spreadsheet.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_WriteReport(t *testing.T) {
	id := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if id == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := New(ctx, id, "Bilan Test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := c.WriteReport(ctx, sheets.PeriodReport{
		OwnerID: "integration",
		Period:  core.PeriodOf(time.Now()),
		Summary: core.Aggregate(nil),
	})
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	t.Logf("wrote %s", ref)
}
