// internal/pkg/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "associate_ledger"

var (
	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Associates registered, by placement kind.",
	}, []string{"kind"})

	ordersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Orders placed and settled.",
	})

	bonusRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "referral_bonus_records_total",
		Help:      "Fixed referral bonus records appended, by level.",
	}, []string{"level"})

	bonusAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "referral_bonus_amount_total",
		Help:      "Fixed referral bonus amount credited in minor units, by level.",
	}, []string{"level"})

	payouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payouts_total",
		Help:      "Payout requests by lifecycle outcome.",
	}, []string{"outcome"})

	failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_failures_total",
		Help:      "Failed ledger operations by reason.",
	}, []string{"operation", "reason"})

	duration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Ledger operation latency including commit.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// Registered 记录一次注册
func Registered(kind string) {
	registrations.WithLabelValues(kind).Inc()
}

// OrderPlaced 记录一次下单
func OrderPlaced() {
	ordersPlaced.Inc()
}

// BonusCredited 记录一条固定奖金
func BonusCredited(level int, amount int64) {
	l := strconv.Itoa(level)
	bonusRecords.WithLabelValues(l).Inc()
	bonusAmount.WithLabelValues(l).Add(float64(amount))
}

// Payout 记录提现申请的状态变化: requested / paid / rejected
func Payout(outcome string) {
	payouts.WithLabelValues(outcome).Inc()
}

// Failed 记录一次失败的操作
func Failed(operation, reason string) {
	failures.WithLabelValues(operation, reason).Inc()
}

// ObserveDuration 返回一个在操作结束时调用的计时函数
func ObserveDuration(operation string) func() {
	start := time.Now()
	return func() {
		duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
