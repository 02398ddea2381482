package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts checkout outcomes.
	OrdersCreatedTotal *prometheus.CounterVec
	// PromotionsAppliedTotal counts promotion applications by type.
	PromotionsAppliedTotal *prometheus.CounterVec
	// InboxNotificationsTotal counts inbound payment notifications by provider and outcome.
	InboxNotificationsTotal *prometheus.CounterVec
	// MatcherRunsTotal counts reconciliation run outcomes.
	MatcherRunsTotal *prometheus.CounterVec
	// MatcherSettleLatency records the time from notification receipt to settlement.
	MatcherSettleLatency prometheus.Histogram
	// BatchOrdersShippedTotal counts orders shipped through production batches.
	BatchOrdersShippedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of checkout outcomes.",
		}, []string{"result"})
		PromotionsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_applied_total",
			Help:      "Count of promotion applications by promotion type.",
		}, []string{"type"})
		InboxNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_notifications_total",
			Help:      "Count of inbound payment notifications by provider and outcome.",
		}, []string{"provider", "result"})
		MatcherRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matcher_runs_total",
			Help:      "Count of payment reconciliation run outcomes.",
		}, []string{"result"})
		MatcherSettleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matcher_settle_duration_seconds",
			Help:      "Time from notification receipt to order settlement.",
			Buckets:   []float64{1, 5, 30, 60, 300, 900, 3600, 14400},
		})
		BatchOrdersShippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_orders_shipped_total",
			Help:      "Number of orders shipped through production batches.",
		})

		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, PromotionsAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromotionsAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, InboxNotificationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InboxNotificationsTotal = v
			}
		})
		mustRegisterCollector(reg, MatcherRunsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MatcherRunsTotal = v
			}
		})
		mustRegisterCollector(reg, MatcherSettleLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				MatcherSettleLatency = v
			}
		})
		mustRegisterCollector(reg, BatchOrdersShippedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BatchOrdersShippedTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
