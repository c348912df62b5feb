package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/labelsift/internal/cache"
	"github.com/KaramelBytes/labelsift/internal/classify"
	"github.com/KaramelBytes/labelsift/internal/dataset"
)

// metrics live in a per-server registry so several servers can coexist in
// one process (tests).
type metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loadsTotal      *prometheus.CounterVec
	loadedRows      prometheus.Histogram
	predictions     *prometheus.CounterVec
}

func newMetrics(store *cache.Store) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelsift_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labelsift_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"route"},
		),
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelsift_dataset_loads_total",
				Help: "Dataset load attempts by result",
			},
			[]string{"result"},
		),
		loadedRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "labelsift_dataset_rows",
				Help:    "Rows per successfully loaded dataset",
				Buckets: prometheus.ExponentialBuckets(10, 10, 6),
			},
		),
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelsift_predictions_total",
				Help: "Classifier runs by kind (batch, single) and result",
			},
			[]string{"kind", "result"},
		),
	}
	cacheGauge := func(name, help string, pick func(cache.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(pick(store.Stats()))
		})
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.loadsTotal,
		m.loadedRows,
		m.predictions,
		cacheGauge("labelsift_cache_datasets", "Parsed datasets held in the cache", func(s cache.Stats) int { return s.Datasets }),
		cacheGauge("labelsift_cache_handles", "Dataset handles issued", func(s cache.Stats) int { return s.Handles }),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeRequest(route string, status int, start time.Time) {
	m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *metrics) observeLoad(ds *dataset.Dataset, err error) {
	m.loadsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		m.loadedRows.Observe(float64(ds.Len()))
	}
}

func (m *metrics) observePrediction(kind string, err error) {
	m.predictions.WithLabelValues(kind, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var (
		perr *dataset.ParseError
		serr *dataset.SchemaError
		merr *classify.ModelLoadError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &perr):
		return "parse_error"
	case errors.As(err, &serr):
		return "schema_error"
	case errors.As(err, &merr):
		return "model_error"
	}
	return "error"
}
