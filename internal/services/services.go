package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bilan/internal/cache"
	"bilan/internal/core"
	applog "bilan/internal/log"
)

const (
	DefaultStoreTimeout = 15 * time.Second
	// maxConcurrentWrites bounds the goroutines of one fan-out.
	maxConcurrentWrites = 12
)

// Notifier is told about every period whose data changed. The AMQP client
// implements it; nil disables notifications.
type Notifier interface {
	PublishPeriodChanged(ctx context.Context, ownerID string, p core.Period, reason string) error
}

// Option configures the budget and revenue services.
type Option func(*options)

type options struct {
	timeout  time.Duration
	notifier Notifier
	cache    cache.Cache[core.Summary]
	epochs   *epochs
}

// epochs counts invalidations per summary key. A summary computed from a
// read that started before an invalidation must not be cached.
type epochs struct {
	mu sync.Mutex
	n  map[string]uint64
}

func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSummaryCache keeps computed summaries keyed by owner and period.
func WithSummaryCache(c cache.Cache[core.Summary]) Option {
	return func(o *options) { o.cache = c }
}

func buildOptions(opts []Option) options {
	o := options{timeout: DefaultStoreTimeout, epochs: &epochs{n: map[string]uint64{}}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}

func summaryKey(ownerID string, p core.Period) string {
	return ownerID + "|" + p.String()
}

func (o options) epoch(key string) uint64 {
	o.epochs.mu.Lock()
	defer o.epochs.mu.Unlock()
	return o.epochs.n[key]
}

// fill caches sum unless key was invalidated since epoch was read.
func (o options) fill(key string, epoch uint64, sum core.Summary) {
	o.epochs.mu.Lock()
	defer o.epochs.mu.Unlock()
	if o.epochs.n[key] == epoch {
		o.cache.Set(key, sum)
	}
}

func (o options) invalidate(ownerID string, p core.Period) {
	if o.cache == nil {
		return
	}
	key := summaryKey(ownerID, p)
	o.epochs.mu.Lock()
	defer o.epochs.mu.Unlock()
	o.epochs.n[key]++
	o.cache.Delete(key)
}

func (o options) notify(ctx context.Context, ownerID string, p core.Period, reason string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.PublishPeriodChanged(ctx, ownerID, p, reason); err != nil {
		slog.WarnContext(ctx, "Failed to publish period changed",
			applog.NewFields().WithScope(ownerID, p).WithError(err).ToSlice()...)
	}
}

// fanOut runs write for every key concurrently and collects each outcome.
// A failed write does not cancel the others.
func fanOut(ctx context.Context, keys []string, write func(ctx context.Context, key string) error) (succeeded []string, failed []core.FailedWrite) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(maxConcurrentWrites)
	for _, k := range keys {
		g.Go(func() error {
			err := write(ctx, k)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, core.FailedWrite{ID: k, Err: err})
			} else {
				succeeded = append(succeeded, k)
			}
			return nil
		})
	}
	_ = g.Wait()

	// completion order is random; report in input order
	pos := make(map[string]int, len(keys))
	for i, k := range keys {
		pos[k] = i
	}
	sort.Slice(succeeded, func(i, j int) bool { return pos[succeeded[i]] < pos[succeeded[j]] })
	sort.Slice(failed, func(i, j int) bool { return pos[failed[i].ID] < pos[failed[j].ID] })
	return succeeded, failed
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
}
