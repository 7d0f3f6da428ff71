package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"bilan/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"closed sentinel", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "bilan", queueName: "bilan_periods"}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("a failure while half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should reset the breaker")
	}
}

func TestPublishPeriodChanged_Guards(t *testing.T) {
	client := &Client{exchangeName: "bilan", queueName: "bilan_periods"}
	p := core.NewPeriod(2025, 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishPeriodChanged(ctx, "u1", p, ReasonItems); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.PublishPeriodChanged(context.Background(), "u1", p, ReasonItems)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected circuit open error, got %v", err)
	}
}

func TestPeriodChangedMessage_JSON(t *testing.T) {
	msg := NewPeriodChangedMessage("u1", core.NewPeriod(2025, 12), ReasonRevenues)
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"ownerId":"u1"`) {
		t.Errorf("unexpected body %s", data)
	}

	parsed, err := PeriodChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("PeriodChangedMessageFromJSON() error = %v", err)
	}
	if parsed.Period() != core.NewPeriod(2025, 12) || parsed.Reason != ReasonRevenues {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestPeriodChangedMessage_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"ownerId": 12`,
		"missing owner": `{"year": 2025, "month": 6}`,
		"bad month":     `{"ownerId": "u1", "year": 2025, "month": 13}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := PeriodChangedMessageFromJSON([]byte(body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
