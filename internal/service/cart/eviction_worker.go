package cart

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultEvictionInterval  = 1 * time.Hour
	defaultEvictionBatchSize = 500
)

var (
	cartEvictionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shop_cart_eviction_runs_total",
		Help: "Total number of cart eviction runs grouped by result.",
	}, []string{"result"})
	cartEvictionDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shop_cart_eviction_deleted_total",
		Help: "Total number of evicted expired cart entries.",
	})
	cartEvictionLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shop_cart_eviction_last_deleted",
		Help: "Number of evicted entries during the last eviction run.",
	})
)

// ExpiringCache — кеш, умеющий удалять просроченные записи порциями.
type ExpiringCache interface {
	DeleteExpired(before time.Time, limit int) (int, error)
}

// EvictionOptions задаёт параметры воркера выселения корзин.
type EvictionOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
}

// EvictionOption настраивает EvictionWorker.
type EvictionOption func(*EvictionOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) EvictionOption {
	return func(opts *EvictionOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами выселения.
func WithInterval(interval time.Duration) EvictionOption {
	return func(opts *EvictionOptions) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт размер порции для одного удаления.
func WithBatchSize(batchSize int) EvictionOption {
	return func(opts *EvictionOptions) {
		opts.BatchSize = batchSize
	}
}

// EvictionWorker периодически выселяет корзины, чей TTL истёк.
type EvictionWorker struct {
	cache     ExpiringCache
	logger    *log.Entry
	interval  time.Duration
	batchSize int
}

// NewEvictionWorker создаёт воркер выселения просроченных корзин.
func NewEvictionWorker(cache ExpiringCache, options ...EvictionOption) *EvictionWorker {
	opts := EvictionOptions{
		Interval:  defaultEvictionInterval,
		BatchSize: defaultEvictionBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-eviction-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultEvictionInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEvictionBatchSize
	}

	return &EvictionWorker{
		cache:     cache,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run запускает периодическое выселение до отмены ctx.
func (w *EvictionWorker) Run(ctx context.Context) {
	if w.cache == nil {
		w.logger.Warn("cart eviction worker is disabled: cache is nil")
		return
	}

	w.evict(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.evict(ctx, time.Now().UTC())
		}
	}
}

func (w *EvictionWorker) evict(ctx context.Context, before time.Time) {
	deleted, err := w.DeleteExpired(ctx, before)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cartEvictionRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("cart eviction run failed")
		return
	}

	cartEvictionRunsTotal.WithLabelValues("ok").Inc()
	cartEvictionLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("cart eviction completed")
	}
}

// DeleteExpired удаляет все записи с истёкшим TTL порциями batchSize.
func (w *EvictionWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		deleted, err := w.cache.DeleteExpired(before, w.batchSize)
		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted > 0 {
			cartEvictionDeletedTotal.Add(float64(deleted))
		}

		if deleted < w.batchSize {
			break
		}
	}

	return totalDeleted, nil
}
