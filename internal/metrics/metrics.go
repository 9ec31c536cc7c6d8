// Package metrics exposes sync, cache, and HTTP metrics in Prometheus form.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/model"
	"github.com/roach88/liftsync/internal/syncq"
)

// Collector owns a private registry so tests and multiple servers never
// collide on the global one. It implements syncq.Recorder and cache.Observer.
type Collector struct {
	registry *prometheus.Registry

	pendingActions prometheus.Gauge
	syncCycles     *prometheus.CounterVec
	syncRunning    prometheus.Gauge
	lastSuccess    prometheus.Gauge
	actionsTotal   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	cacheSwept     prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		pendingActions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liftsync_pending_actions",
			Help: "Number of actions waiting in the sync queue",
		}),
		syncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftsync_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		}, []string{"status"}),
		syncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liftsync_sync_running",
			Help: "1 while a sync cycle holds the lock",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liftsync_last_sync_success_timestamp_seconds",
			Help: "Unix time of the last fully successful sync cycle",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftsync_actions_dispatched_total",
			Help: "Total number of action dispatches by entity and result",
		}, []string{"entity", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftsync_cache_lookups_total",
			Help: "Total number of cache reads by result",
		}, []string{"result"}),
		cacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liftsync_cache_swept_entries_total",
			Help: "Total number of expired cache entries swept",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liftsync_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liftsync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	c.registry.MustRegister(
		c.pendingActions,
		c.syncCycles,
		c.syncRunning,
		c.lastSuccess,
		c.actionsTotal,
		c.cacheLookups,
		c.cacheSwept,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) PendingAdded(delta int) { c.pendingActions.Add(float64(delta)) }

func (c *Collector) PendingSet(n int) { c.pendingActions.Set(float64(n)) }

func (c *Collector) SyncStarted(time.Time) { c.syncRunning.Set(1) }

func (c *Collector) SyncFinished(at time.Time, err error) {
	c.syncRunning.Set(0)
	if err != nil {
		c.syncCycles.WithLabelValues("error").Inc()
		return
	}
	c.syncCycles.WithLabelValues("ok").Inc()
	c.lastSuccess.Set(float64(at.Unix()))
}

func (c *Collector) ActionDispatched(entity model.EntityKind, result syncq.DispatchResult) {
	c.actionsTotal.WithLabelValues(string(entity), string(result)).Inc()
}

func (c *Collector) CacheLookup(result cache.Lookup) {
	c.cacheLookups.WithLabelValues(string(result)).Inc()
}

func (c *Collector) CacheSwept(n int64) { c.cacheSwept.Add(float64(n)) }

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
