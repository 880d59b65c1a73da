package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/metrics"
)

const (
	defaultBatchSize      = 100
	defaultMaxParallelOps = 8
	defaultRefundTimeout  = 10 * time.Second
)

// ItemResult — исход обработки одного заказа в рекондициляции.
type ItemResult struct {
	OrderID     string
	OrderNo     string
	AmountMinor int64
	Reason      string
}

// Report — итог одного прохода рекондициляции.
type Report struct {
	Refunded []ItemResult
	Failed   []ItemResult
}

// Job — пакетная рекондициляция неудачных акций: оплаченные невозвращённые
// заказы с failed-акцией получают возврат исходным путём. Повторный запуск
// трогает только оставшиеся невозвращёнными заказы.
type Job struct {
	orders         domain.OrderRepository
	gateway        domain.PaymentGateway
	logger         *log.Entry
	metrics        *metrics.SettlementMetrics
	batchSize      int
	maxParallelOps int
	refundTimeout  time.Duration
}

// Option настраивает Job.
type Option func(*Job)

// WithBatchSize задаёт размер выборки за один проход.
func WithBatchSize(batchSize int) Option {
	return func(j *Job) {
		if batchSize > 0 {
			j.batchSize = batchSize
		}
	}
}

// WithMaxParallel задаёт потолок параллельных обращений к шлюзу.
func WithMaxParallel(limit int) Option {
	return func(j *Job) {
		if limit > 0 {
			j.maxParallelOps = limit
		}
	}
}

// WithRefundTimeout задаёт таймаут одного возврата.
func WithRefundTimeout(timeout time.Duration) Option {
	return func(j *Job) {
		if timeout > 0 {
			j.refundTimeout = timeout
		}
	}
}

// WithMetrics задаёт общий бандл метрик; nil отключает метрики.
func WithMetrics(m *metrics.SettlementMetrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// NewJob создаёт задание рекондициляции.
func NewJob(orders domain.OrderRepository, gateway domain.PaymentGateway, logger *log.Entry, options ...Option) *Job {
	if logger == nil {
		logger = log.WithField("component", "reconcile")
	}
	j := &Job{
		orders:         orders,
		gateway:        gateway,
		logger:         logger,
		batchSize:      defaultBatchSize,
		maxParallelOps: defaultMaxParallelOps,
		refundTimeout:  defaultRefundTimeout,
	}
	for _, option := range options {
		option(j)
	}
	return j
}

// Run выполняет один проход: выбирает пакет заказов и возвращает средства.
// Отказ одного возврата не прерывает остальные; причина записывается в отчёт.
func (j *Job) Run(ctx context.Context, batchSize int) (Report, error) {
	if batchSize <= 0 {
		batchSize = j.batchSize
	}

	orders, err := j.orders.ListFailedCampaignOrders(batchSize)
	if err != nil {
		return Report{}, err
	}
	if len(orders) == 0 {
		return Report{}, nil
	}

	j.logger.WithField("batch_size", len(orders)).Info("reconcile pass started")

	var (
		mu     sync.Mutex
		report Report
	)
	j.processInParallel(len(orders), func(index int) {
		item := j.refundOne(ctx, orders[index])
		mu.Lock()
		defer mu.Unlock()
		if item.Reason == "" {
			report.Refunded = append(report.Refunded, item)
		} else {
			report.Failed = append(report.Failed, item)
		}
	})

	j.logger.WithFields(log.Fields{
		"refunded": len(report.Refunded),
		"failed":   len(report.Failed),
	}).Info("reconcile pass finished")

	return report, nil
}

func (j *Job) refundOne(ctx context.Context, order domain.Order) ItemResult {
	item := ItemResult{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		AmountMinor: order.PayPriceMinor,
	}

	refundCtx, cancel := context.WithTimeout(ctx, j.refundTimeout)
	defer cancel()

	if err := j.gateway.Refund(refundCtx, order.TransactionID, order.PayPriceMinor, "campaign failed"); err != nil {
		// Таймаут или отказ шлюза: заказ не трогаем, повторит следующий проход.
		item.Reason = err.Error()
		if j.metrics != nil {
			j.metrics.RecordReconcileRefund("gateway_error")
		}
		j.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("refund failed")
		return item
	}

	if err := j.orders.MarkRefunded(order.ID); err != nil {
		if errors.Is(err, domain.ErrAlreadyRefunded) {
			// Параллельный путь возврата успел раньше; деньги ушли один раз,
			// так как флаг проверяется атомарно.
			if j.metrics != nil {
				j.metrics.RecordReconcileRefund("already_refunded")
			}
			return item
		}
		item.Reason = err.Error()
		if j.metrics != nil {
			j.metrics.RecordReconcileRefund("persist_error")
		}
		j.logger.WithError(err).WithField("order_no", order.OrderNo).Error("mark refunded failed")
		return item
	}

	if j.metrics != nil {
		j.metrics.RecordReconcileRefund("ok")
	}
	return item
}

// processInParallel обрабатывает элементы с ограничением параллелизма.
func (j *Job) processInParallel(size int, processFn func(index int)) {
	if size == 0 {
		return
	}

	limit := j.maxParallelOps
	if limit <= 0 {
		limit = 1
	}
	if limit > size {
		limit = size
	}

	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for idx := 0; idx < size; idx++ {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			processFn(index)
		}(idx)
	}

	wg.Wait()
}
