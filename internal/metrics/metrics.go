package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commission outcomes recorded per depth.
const (
	OutcomePaid        = "paid"
	OutcomeDuplicate   = "duplicate"
	OutcomeLevelLocked = "level_locked"
	OutcomeInactive    = "inactive"
	OutcomeZeroAmount  = "zero_amount"
	OutcomeFailed      = "failed"
)

// Metrics bundles the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	commissions      *prometheus.CounterVec
	commissionAmount *prometheus.CounterVec
	signups          *prometheus.CounterVec
	staking          *prometheus.CounterVec
	wallet           *prometheus.CounterVec
	notifyFailures   prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_time_seconds",
				Help:    "Histogram of response times",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		commissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_commissions_total",
				Help: "Commission attempts by depth and outcome",
			},
			[]string{"depth", "outcome"},
		),
		commissionAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_commission_inr_total",
				Help: "Commission paid in INR by depth",
			},
			[]string{"depth"},
		),
		signups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_signups_total",
				Help: "Referral code applications by result",
			},
			[]string{"result"},
		),
		staking: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_operations_total",
				Help: "Staking operations by kind and result",
			},
			[]string{"operation", "result"},
		),
		wallet: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_operations_total",
				Help: "Wallet swaps and referral redemptions by result",
			},
			[]string{"operation", "result"},
		),
		notifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Notifications that could not be stored",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Commission(depth int, outcome string, amountINR float64) {
	if m == nil {
		return
	}
	d := strconv.Itoa(depth)
	m.commissions.WithLabelValues(d, outcome).Inc()
	if outcome == OutcomePaid && amountINR > 0 {
		m.commissionAmount.WithLabelValues(d).Add(amountINR)
	}
}

func (m *Metrics) Signup(result string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(result).Inc()
}

func (m *Metrics) Staking(operation, result string) {
	if m == nil {
		return
	}
	m.staking.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Wallet(operation, result string) {
	if m == nil {
		return
	}
	m.wallet.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
