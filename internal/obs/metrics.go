package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockex"

// Resolution outcomes.
const (
	ResolveLocal     = "local"
	ResolveForwarded = "forwarded"
	ResolveNotFound  = "not_found"
)

// Notification outcomes.
const (
	NotifyEvicted = "evicted"
	NotifyIgnored = "ignored"
)

// Order routes.
const (
	RouteLocal  = "local"
	RouteRemote = "remote"
	RouteFund   = "fund"
)

// Metrics owns one registry per running instance so several naming nodes and
// exchanges can live in the same process.
type Metrics struct {
	registry *prometheus.Registry

	registrations prometheus.Counter
	resolutions   *prometheus.CounterVec
	failovers     prometheus.Counter
	notifications *prometheus.CounterVec

	orders        *prometheus.CounterVec
	orderLatency  *prometheus.HistogramVec
	compensations *prometheus.CounterVec
	logAppends    *prometheus.CounterVec
	ticks         prometheus.Counter
	notifyDrops   prometheus.Counter
}

// NewMetrics allocates a metrics container labelled with the component kind
// ("naming" or "exchange") and instance name.
func NewMetrics(component, instance string) *Metrics {
	labels := prometheus.Labels{"component": component, "instance": instance}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Name: name, Help: help, ConstLabels: labels}
	}

	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		registrations: prometheus.NewCounter(prometheus.CounterOpts(opts("registrations_total", "Exchange registrations accepted."))),
		resolutions:   prometheus.NewCounterVec(prometheus.CounterOpts(opts("resolutions_total", "Resolve requests by outcome.")), []string{"outcome"}),
		failovers:     prometheus.NewCounter(prometheus.CounterOpts(opts("neighbor_failovers_total", "Neighbors repointed to their backup."))),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts(opts("notifications_total", "Down notifications by outcome.")), []string{"outcome"}),
		orders:        prometheus.NewCounterVec(prometheus.CounterOpts(opts("orders_total", "Orders by route and result.")), []string{"route", "result"}),
		orderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "order_duration_seconds",
			Help:        "Order execution time by route.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"route"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts(opts("compensations_total", "Fund leg compensations by result.")), []string{"result"}),
		logAppends:    prometheus.NewCounterVec(prometheus.CounterOpts(opts("recovery_log_appends_total", "Recovery log appends by result.")), []string{"result"}),
		ticks:         prometheus.NewCounter(prometheus.CounterOpts(opts("ticks_total", "Market ticks applied."))),
		notifyDrops:   prometheus.NewCounter(prometheus.CounterOpts(opts("notify_drops_total", "Down notifications dropped because the queue was full or closed."))),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.registrations,
		m.resolutions,
		m.failovers,
		m.notifications,
		m.orders,
		m.orderLatency,
		m.compensations,
		m.logAppends,
		m.ticks,
		m.notifyDrops,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) IncResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFailover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}

func (m *Metrics) IncNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// ObserveOrder records one finished order.
func (m *Metrics) ObserveOrder(route string, filled bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "rejected"
	if filled {
		result = "filled"
	}
	m.orders.WithLabelValues(route, result).Inc()
	m.orderLatency.WithLabelValues(route).Observe(d.Seconds())
}

// IncCompensation records a compensating leg. A failed one needs manual
// reconciliation.
func (m *Metrics) IncCompensation(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.compensations.WithLabelValues("ok").Inc()
		return
	}
	m.compensations.WithLabelValues("failed").Inc()
}

func (m *Metrics) IncLogAppend(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.logAppends.WithLabelValues("ok").Inc()
		return
	}
	m.logAppends.WithLabelValues("failed").Inc()
}

func (m *Metrics) IncTick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Metrics) IncNotifyDrop() {
	if m == nil {
		return
	}
	m.notifyDrops.Inc()
}
