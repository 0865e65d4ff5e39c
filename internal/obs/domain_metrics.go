package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutCreatedTotal counts checkout creation attempts by outcome.
	CheckoutCreatedTotal *prometheus.CounterVec
	// PaymentVerifyTotal counts gateway verify calls by outcome.
	PaymentVerifyTotal *prometheus.CounterVec
	// OrdersConfirmedTotal counts orders transitioned to confirmed.
	OrdersConfirmedTotal prometheus.Counter
	// StockShortfallTotal counts confirmed lines the stock could not cover.
	StockShortfallTotal prometheus.Counter
	// BasketMergeTotal counts basket merge operations.
	BasketMergeTotal prometheus.Counter
	// OrdersExpiredTotal counts unpaid orders swept into expired state.
	OrdersExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers the storefront's
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_created_total",
			Help:      "Count of checkout creation attempts by outcome.",
		}, []string{"result"})
		PaymentVerifyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verify_total",
			Help:      "Count of gateway verify calls by outcome.",
		}, []string{"result"})
		OrdersConfirmedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Number of orders confirmed after successful verification.",
		})
		StockShortfallTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_shortfall_total",
			Help:      "Number of confirmed order lines the stock could not cover.",
		})
		BasketMergeTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "basket_merge_total",
			Help:      "Number of basket merge operations performed.",
		})
		OrdersExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Number of unpaid orders swept into expired state.",
		})

		mustRegisterCollector(reg, CheckoutCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentVerifyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentVerifyTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersConfirmedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersConfirmedTotal = v
			}
		})
		mustRegisterCollector(reg, StockShortfallTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockShortfallTotal = v
			}
		})
		mustRegisterCollector(reg, BasketMergeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				BasketMergeTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersExpiredTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersExpiredTotal = v
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
