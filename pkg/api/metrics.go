package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

const metricsNamespace = "rtd"

// metrics holds the server's collectors on a private registry.
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	importedRecords prometheus.Counter
	importFailures  *prometheus.CounterVec
	comparisonRows  *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		importedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "imported_records_total",
				Help:      "Total number of test records persisted by imports",
			},
		),
		importFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "import_failures_total",
				Help:      "Total number of failed imports by error kind",
			},
			[]string{"kind"},
		),
		comparisonRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "comparison_rows_total",
				Help:      "Total number of comparison rows produced by status change",
			},
			[]string{"status_change"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.importedRecords,
		m.importFailures,
		m.comparisonRows,
	)

	return m
}

// handler serves the registry in the Prometheus text format.
func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware counts requests by method and status code.
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// instrumentedService records import and comparison metrics around a
// results.Service.
type instrumentedService struct {
	results.Service
	metrics *metrics
}

func (s *instrumentedService) Import(
	ctx context.Context, buildID uint, filename string, content []byte,
) ([]results.Record, error) {
	persisted, err := s.Service.Import(ctx, buildID, filename, content)

	s.metrics.importedRecords.Add(float64(len(persisted)))

	if err != nil {
		s.metrics.importFailures.WithLabelValues(results.Kind(err)).Inc()
	}

	return persisted, err
}

func (s *instrumentedService) CompareBuilds(
	ctx context.Context, build1, build2 uint,
) ([]results.ComparisonRow, error) {
	rows, err := s.Service.CompareBuilds(ctx, build1, build2)
	if err != nil {
		return nil, err
	}

	for change, n := range results.Summarize(rows) {
		s.metrics.comparisonRows.WithLabelValues(string(change)).Add(float64(n))
	}

	return rows, nil
}
