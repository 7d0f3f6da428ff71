package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"bilan/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithScope("u1", core.NewPeriod(2025, 6)).
		WithItem("i1", core.KindCategory).
		WithGroup("").
		WithError(errors.New("boom")).
		WithOperation(OpDelete)

	assert.Equal(t, "u1", f[FieldOwner])
	assert.Equal(t, 6, f[FieldMonth])
	assert.Equal(t, "category", f[FieldKind])
	assert.Equal(t, "boom", f[FieldError])
	_, hasGroup := f[FieldGroupID]
	assert.False(t, hasGroup)
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestMiddlewareCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentHTTP})

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
			LogHTTPEnd(r.Context(), r, http.StatusBadGateway, 3, "127.0.0.1")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/budget?year=2025&month=6", nil))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"component":"http"`)
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}
