package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer exports upload metrics to Prometheus.
type Observer struct {
	registry        *prometheus.Registry
	storedObjects   *prometheus.CounterVec
	storedBytes     *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	records         *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewObserver(namespace string) (*Observer, error) {
	if namespace == "" {
		namespace = "mediadrop"
	}

	o := &Observer{
		registry: prometheus.NewRegistry(),
		storedObjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objects_stored_total",
			Help:      "Objects written to storage, by upload path.",
		}, []string{"path"}),
		storedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written to storage, by upload path.",
		}, []string{"path"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumable_sessions_total",
			Help:      "Resumable sessions by outcome.",
		}, []string{"outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_records_total",
			Help:      "Media record writes by result.",
		}, []string{"result"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	toRegister := []prometheus.Collector{
		o.storedObjects,
		o.storedBytes,
		o.sessions,
		o.records,
		o.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := o.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return o, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}

func (o *Observer) ObjectStored(path string, size int64) {
	if o == nil {
		return
	}
	o.storedObjects.WithLabelValues(path).Inc()
	o.storedBytes.WithLabelValues(path).Add(float64(size))
}

// SessionFinished counts a resumable session that completed, was terminated
// by its owner, or failed to assemble.
func (o *Observer) SessionFinished(outcome string) {
	if o == nil {
		return
	}
	o.sessions.WithLabelValues(outcome).Inc()
}

func (o *Observer) RecordWritten(err error) {
	if o == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.records.WithLabelValues(result).Inc()
}

func (o *Observer) ObserveRequest(method, route string, status int, d time.Duration) {
	if o == nil {
		return
	}
	o.requestDuration.WithLabelValues(method, route, fmt.Sprint(status)).Observe(d.Seconds())
}
