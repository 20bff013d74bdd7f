package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersPlacedTotal counts checkout outcomes by channel and result.
	OrdersPlacedTotal *prometheus.CounterVec
	// CouponValidationTotal counts coupon validation outcomes.
	CouponValidationTotal *prometheus.CounterVec
	// SlotReservationTotal counts delivery slot reservation outcomes.
	SlotReservationTotal *prometheus.CounterVec
	// OTPIssuedTotal counts one-time code issuance outcomes.
	OTPIssuedTotal *prometheus.CounterVec
	// SMSDeliveriesTotal tracks SMS dispatch outcomes.
	SMSDeliveriesTotal *prometheus.CounterVec
	// SMSAttemptLatency records gateway attempt latency in milliseconds.
	SMSAttemptLatency *prometheus.HistogramVec
	// SMSDispatchDLQ counts messages moved to the dead-letter queue.
	SMSDispatchDLQ prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of checkout outcomes by channel.",
		}, []string{"channel", "result"})
		CouponValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validation_total",
			Help:      "Count of coupon validation outcomes.",
		}, []string{"result"})
		SlotReservationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_reservation_total",
			Help:      "Count of delivery slot reservation outcomes.",
		}, []string{"result"})
		OTPIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "Count of one-time code issuance outcomes.",
		}, []string{"result"})
		SMSDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_deliveries_total",
			Help:      "Count of SMS delivery outcomes.",
		}, []string{"result"})
		SMSAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sms_attempt_duration_ms",
			Help:      "Latency for SMS gateway attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		SMSDispatchDLQ = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_dispatch_dlq_total",
			Help:      "Number of SMS deliveries moved to the dead-letter queue.",
		})

		mustRegisterCollector(reg, OrdersPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, CouponValidationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponValidationTotal = v
			}
		})
		mustRegisterCollector(reg, SlotReservationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SlotReservationTotal = v
			}
		})
		mustRegisterCollector(reg, OTPIssuedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OTPIssuedTotal = v
			}
		})
		mustRegisterCollector(reg, SMSDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SMSDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, SMSAttemptLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SMSAttemptLatency = v
			}
		})
		mustRegisterCollector(reg, SMSDispatchDLQ, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SMSDispatchDLQ = v
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
