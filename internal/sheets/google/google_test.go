package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"bilan/internal/core"
	"bilan/internal/sheets"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Bilan")
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "Bilan")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuoteTitle(t *testing.T) {
	if got := quoteTitle("Bilan 2025-06 o'neil"); got != "'Bilan 2025-06 o''neil'" {
		t.Errorf("quoteTitle = %s", got)
	}
}

// fakeSheets records the API calls the client makes.
type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	calls   []string
	written [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		var sheetsJSON []map[string]any
		for _, t := range f.titles {
			sheetsJSON = append(sheetsJSON, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheetsJSON})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct{ Title string } `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
		}
		_, _ = io.WriteString(w, `{}`)
	case strings.HasSuffix(r.URL.Path, ":clear"):
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		_, _ = io.WriteString(w, `{}`)
	default:
		http.NotFound(w, r)
	}
}

func TestWriteReportCreatesSheetOnce(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c, err := NewWithOptions(context.Background(), "sheet-id", "Bilan",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}

	report := sheets.PeriodReport{OwnerID: "u1", Period: core.NewPeriod(2025, 6), Summary: core.Aggregate(nil)}
	ref, err := c.WriteReport(context.Background(), report)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.HasPrefix(ref, "'Bilan 2025-06 u1'!A1:F") {
		t.Errorf("ref = %s", ref)
	}
	if _, err := c.WriteReport(context.Background(), report); err != nil {
		t.Fatalf("second WriteReport: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.titles) != 1 || fake.titles[0] != "Bilan 2025-06 u1" {
		t.Errorf("sheets = %v", fake.titles)
	}
	if len(fake.written) != len(sheets.Rows(report)) || fake.written[0][0] != "Level" {
		t.Errorf("written = %v", fake.written)
	}
	batch := 0
	for _, c := range fake.calls {
		if strings.HasSuffix(c, ":batchUpdate") {
			batch++
		}
	}
	if batch != 1 {
		t.Errorf("expected one addSheet call, got %d in %v", batch, fake.calls)
	}
}
