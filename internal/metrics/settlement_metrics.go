package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics содержит метрики расчёта платежей и групповых акций.
type SettlementMetrics struct {
	// Счётчики исходов расчёта
	settlementStarted    prometheus.Counter
	settlementCompleted  prometheus.Counter
	settlementDuplicate  prometheus.Counter
	settlementNoStock    prometheus.Counter
	settlementFailed     prometheus.Counter

	// Гистограмма времени расчёта
	settlementDuration prometheus.Histogram

	// Счётчики переходов акций
	campaignCreated   prometheus.Counter
	campaignSucceeded prometheus.Counter

	// Счётчики возвратов рекондициляции по результату
	reconcileRefunds *prometheus.CounterVec
}

// NewSettlementMetrics создаёт метрики расчёта на default-регистраторе.
func NewSettlementMetrics() *SettlementMetrics {
	return newSettlementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSettlementMetricsWithRegisterer(registerer prometheus.Registerer) *SettlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SettlementMetrics{
		settlementStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_settlement_started_total",
			Help: "Total number of payment settlements started",
		}),
		settlementCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_settlement_completed_total",
			Help: "Total number of payment settlements committed",
		}),
		settlementDuplicate: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_settlement_duplicate_total",
			Help: "Total number of duplicate gateway confirmations detected",
		}),
		settlementNoStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_settlement_insufficient_stock_total",
			Help: "Total number of settlements rejected due to insufficient stock",
		}),
		settlementFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_settlement_failed_total",
			Help: "Total number of settlements rolled back with an error",
		}),
		settlementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_settlement_duration_seconds",
			Help:    "Duration of payment settlements in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		campaignCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_campaign_created_total",
			Help: "Total number of group-buy campaigns opened",
		}),
		campaignSucceeded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_campaign_succeeded_total",
			Help: "Total number of group-buy campaigns that reached their member target",
		}),
		reconcileRefunds: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_reconcile_refunds_total",
			Help: "Total number of reconciliation refund attempts grouped by result",
		}, []string{"result"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordSettlementStarted увеличивает счётчик запущенных расчётов.
func (m *SettlementMetrics) RecordSettlementStarted() {
	m.settlementStarted.Inc()
}

// RecordSettlementCompleted увеличивает счётчик зафиксированных расчётов.
func (m *SettlementMetrics) RecordSettlementCompleted() {
	m.settlementCompleted.Inc()
}

// RecordSettlementDuplicate увеличивает счётчик повторных подтверждений.
func (m *SettlementMetrics) RecordSettlementDuplicate() {
	m.settlementDuplicate.Inc()
}

// RecordSettlementNoStock увеличивает счётчик отказов по остатку.
func (m *SettlementMetrics) RecordSettlementNoStock() {
	m.settlementNoStock.Inc()
}

// RecordSettlementFailed увеличивает счётчик откатов.
func (m *SettlementMetrics) RecordSettlementFailed() {
	m.settlementFailed.Inc()
}

// RecordSettlementDuration записывает время расчёта.
func (m *SettlementMetrics) RecordSettlementDuration(duration time.Duration) {
	m.settlementDuration.Observe(duration.Seconds())
}

// RecordCampaignCreated увеличивает счётчик открытых акций.
func (m *SettlementMetrics) RecordCampaignCreated() {
	m.campaignCreated.Inc()
}

// RecordCampaignSucceeded увеличивает счётчик успешных акций.
func (m *SettlementMetrics) RecordCampaignSucceeded() {
	m.campaignSucceeded.Inc()
}

// RecordReconcileRefund увеличивает счётчик возвратов с меткой результата.
func (m *SettlementMetrics) RecordReconcileRefund(result string) {
	m.reconcileRefunds.WithLabelValues(result).Inc()
}
