package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "vipearn"

// Metrics holds the application's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	referralBonuses     *prometheus.CounterVec
	referralBonusAmount *prometheus.CounterVec
	sessionsStarted     *prometheus.CounterVec
	sessionsCompleted   *prometheus.CounterVec
	deposits            *prometheus.CounterVec
	withdrawals         *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	oracleLookups       *prometheus.CounterVec
	ledgerEntries       *prometheus.CounterVec
	workerRuns          *prometheus.CounterVec
	workerRunDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		referralBonuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "referral", Name: "bonuses_total",
			Help: "Referral bonuses credited, by level.",
		}, []string{"level"}),
		referralBonusAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "referral", Name: "bonus_amount_total",
			Help: "Sum of referral bonus amounts credited, by level.",
		}, []string{"level"}),
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "started_total",
			Help: "Earning sessions started, by surface.",
		}, []string{"surface"}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "completed_total",
			Help: "Earning session completions, by trigger and whether a credit was booked.",
		}, []string{"trigger", "credited"}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "deposit", Name: "results_total",
			Help: "Deposit verification outcomes, by status and network.",
		}, []string{"status", "network"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "withdrawal", Name: "results_total",
			Help: "Withdrawal state changes, by status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notification", Name: "sent_total",
			Help: "Notification deliveries, by channel and result.",
		}, []string{"channel", "result"}),
		oracleLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "lookups_total",
			Help: "Block explorer lookups, by network and result.",
		}, []string{"network", "result"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "entries_total",
			Help: "Ledger transactions booked, by type.",
		}, []string{"type"}),
		workerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "runs_total",
			Help: "Background worker ticks, by worker and result.",
		}, []string{"worker", "result"}),
		workerRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "run_duration_seconds",
			Help:    "Background worker tick duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"worker"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.referralBonuses, m.referralBonusAmount,
		m.sessionsStarted, m.sessionsCompleted,
		m.deposits, m.withdrawals,
		m.notifications, m.oracleLookups,
		m.ledgerEntries,
		m.workerRuns, m.workerRunDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ReferralBonus(level string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.referralBonuses.WithLabelValues(level).Inc()
	m.referralBonusAmount.WithLabelValues(level).Add(amount.InexactFloat64())
}

func (m *Metrics) SessionStarted(surface string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(surface).Inc()
}

func (m *Metrics) SessionCompleted(trigger string, credited bool) {
	if m == nil {
		return
	}
	c := "false"
	if credited {
		c = "true"
	}
	m.sessionsCompleted.WithLabelValues(trigger, c).Inc()
}

func (m *Metrics) Deposit(status, network string) {
	if m == nil {
		return
	}
	m.deposits.WithLabelValues(status, network).Inc()
}

func (m *Metrics) Withdrawal(status string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(status).Inc()
}

func (m *Metrics) Notification(channel, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) OracleLookup(network, result string) {
	if m == nil {
		return
	}
	m.oracleLookups.WithLabelValues(network, result).Inc()
}

func (m *Metrics) LedgerEntry(txType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(txType).Inc()
}

// WorkerRun records one tick of a background worker.
func (m *Metrics) WorkerRun(worker string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.workerRuns.WithLabelValues(worker, result).Inc()
	m.workerRunDuration.WithLabelValues(worker).Observe(seconds)
}
