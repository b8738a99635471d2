// Package metrics holds the server's Prometheus collectors and the small
// operational HTTP listener that exposes them alongside a health check.
package metrics

import (
	"net/http"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filekeeper"

// Upload outcomes.
const (
	UploadCreated      = "created"
	UploadDeduplicated = "deduplicated"
	UploadNewVersion   = "new_version"
	UploadFailed       = "failed"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	uploads       *prometheus.CounterVec
	creditedBytes prometheus.Counter
	debitedBytes  prometheus.Counter
	blobDeletes   *prometheus.CounterVec
	requests      *prometheus.CounterVec
	downloads     prometheus.Counter
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads by outcome.",
		}, []string{"outcome"}),
		creditedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_credited_bytes_total",
			Help:      "Bytes credited to user quotas.",
		}),
		debitedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_debited_bytes_total",
			Help:      "Bytes debited from user quotas.",
		}),
		blobDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blob_deletes_total",
			Help:      "Blob deletions by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled RPCs by method and result kind.",
		}, []string{"method", "kind"}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Completed download authorizations.",
		}),
	}
	m.registry.MustRegister(
		m.uploads, m.creditedBytes, m.debitedBytes, m.blobDeletes, m.requests, m.downloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Upload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Credited(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.creditedBytes.Add(float64(bytes))
}

func (m *Metrics) Debited(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.debitedBytes.Add(float64(bytes))
}

// BlobDeletes records the outcome of a bulk delete.
func (m *Metrics) BlobDeletes(removed, missing, failed int) {
	if m == nil {
		return
	}
	m.blobDeletes.WithLabelValues("removed").Add(float64(removed))
	m.blobDeletes.WithLabelValues("missing").Add(float64(missing))
	m.blobDeletes.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) Download() {
	if m == nil {
		return
	}
	m.downloads.Inc()
}

// Request counts one RPC labelled with common.Kind(err).
func (m *Metrics) Request(method string, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, common.Kind(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
