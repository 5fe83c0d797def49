package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loungeclock"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "transitions_total",
			Help:      "Number of timer state transitions.",
		}, []string{"from", "to"},
	)
	expiries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timer",
			Name:      "expiries_total",
			Help:      "Number of automatic pauses caused by exhausted time.",
		},
	)
	actions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "actions_total",
			Help:      "Number of user actions by outcome.",
		}, []string{"action", "result"},
	)
	clients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "panel",
			Name:      "clients",
			Help:      "Current clients per timer state.",
		}, []string{"state"},
	)
	pulls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pulls_total",
			Help:      "Number of registry pulls by result.",
		}, []string{"result"},
	)
	pushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pushes_total",
			Help:      "Number of registry pushes by result.",
		}, []string{"result"},
	)
	passwordChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "password_checks_total",
			Help:      "Number of password validations by outcome.",
		}, []string{"valid"},
	)
	snapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "snapshots_total",
			Help:      "Number of accepted client snapshots.",
		},
	)
	storedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "clients",
			Help:      "Clients in the last accepted snapshot.",
		},
	)
	historyErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "send_errors_total",
			Help:      "Number of failed history sink deliveries.",
		}, []string{"event"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Remote store request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{transitions, expiries, actions, clients, pulls, pushes, passwordChecks, snapshots, storedClients, historyErrors, requestDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func RecordTransition(from, to string) {
	if regOK.Load() {
		transitions.WithLabelValues(from, to).Inc()
	}
}

func IncExpiry() {
	if regOK.Load() {
		expiries.Inc()
	}
}

func IncAction(action, result string) {
	if regOK.Load() {
		actions.WithLabelValues(action, result).Inc()
	}
}

func SetClients(running, stopped int) {
	if regOK.Load() {
		clients.WithLabelValues("running").Set(float64(running))
		clients.WithLabelValues("stopped").Set(float64(stopped))
	}
}

func IncPull(result string) {
	if regOK.Load() {
		pulls.WithLabelValues(result).Inc()
	}
}

func IncPush(result string) {
	if regOK.Load() {
		pushes.WithLabelValues(result).Inc()
	}
}

func IncPasswordCheck(valid bool) {
	if regOK.Load() {
		passwordChecks.WithLabelValues(strconv.FormatBool(valid)).Inc()
	}
}

func RecordSnapshot(n int) {
	if regOK.Load() {
		snapshots.Inc()
		storedClients.Set(float64(n))
	}
}

func IncHistoryError(event string) {
	if regOK.Load() {
		historyErrors.WithLabelValues(event).Inc()
	}
}

func ObserveRequest(route string, code int, seconds float64) {
	if regOK.Load() {
		requestDuration.WithLabelValues(route, strconv.Itoa(code)).Observe(seconds)
	}
}
