package observability

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	promoMetricsOnce sync.Once
	promoRegistry    *PromoMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promo",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promo",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "promo",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promo",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// PromoMetrics tracks the reward ledger's aggregate state and the outcome of
// every ledger operation.
type PromoMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	staked     prometheus.Gauge
	paid       prometheus.Gauge
	compounded prometheus.Gauge
	remaining  prometheus.Gauge
	acc        prometheus.Gauge
	lastTick   prometheus.Gauge
	tick       prometheus.Gauge
}

// Promo returns the singleton reward ledger metrics registry.
func Promo() *PromoMetrics {
	promoMetricsOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "promo",
				Subsystem: "ledger",
				Name:      name,
				Help:      help,
			})
		}
		promoRegistry = &PromoMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "promo",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "promo",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency of ledger operations including the storage commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			staked:     gauge("total_staked", "Principal currently held by the program."),
			paid:       gauge("reward_paid", "Reward transferred out to participants."),
			compounded: gauge("reward_compounded", "Reward folded into participant principal."),
			remaining:  gauge("reward_remaining", "Reward not yet paid or compounded."),
			acc:        gauge("acc_reward_per_share", "Scaled cumulative reward per staked unit."),
			lastTick:   gauge("last_reward_tick", "Tick up to which rewards were integrated."),
			tick:       gauge("current_tick", "Most recently observed tick."),
		}
		prometheus.MustRegister(
			promoRegistry.operations,
			promoRegistry.latency,
			promoRegistry.staked,
			promoRegistry.paid,
			promoRegistry.compounded,
			promoRegistry.remaining,
			promoRegistry.acc,
			promoRegistry.lastTick,
			promoRegistry.tick,
		)
	})
	return promoRegistry
}

// ObserveOperation records the outcome and latency of a ledger operation.
func (m *PromoMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// LedgerSnapshot carries the aggregate values exported as gauges.
type LedgerSnapshot struct {
	TotalStaked       *big.Int
	TotalReward       *big.Int
	RewardPaid        *big.Int
	RewardCompounded  *big.Int
	AccRewardPerShare *big.Int
	LastRewardTick    uint64
	CurrentTick       uint64
}

// RecordLedger updates the ledger gauges from a committed snapshot.
func (m *PromoMetrics) RecordLedger(s LedgerSnapshot) {
	if m == nil {
		return
	}
	m.staked.Set(bigToFloat(s.TotalStaked))
	m.paid.Set(bigToFloat(s.RewardPaid))
	m.compounded.Set(bigToFloat(s.RewardCompounded))
	remaining := new(big.Int)
	if s.TotalReward != nil {
		remaining.Set(s.TotalReward)
		if s.RewardPaid != nil {
			remaining.Sub(remaining, s.RewardPaid)
		}
		if s.RewardCompounded != nil {
			remaining.Sub(remaining, s.RewardCompounded)
		}
	}
	m.remaining.Set(bigToFloat(remaining))
	m.acc.Set(bigToFloat(s.AccRewardPerShare))
	m.lastTick.Set(float64(s.LastRewardTick))
	m.tick.Set(float64(s.CurrentTick))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
