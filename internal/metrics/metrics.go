// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal  *prometheus.CounterVec
	recordsStoredTotal *prometheus.CounterVec
	duplicatesTotal    prometheus.Counter
	parseFailuresTotal *prometheus.CounterVec
	unitsTotal         *prometheus.CounterVec
	activeUnits        prometheus.Gauge
	fetchSeconds       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple
// times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsgrab_pages_fetched_total",
				Help: "Total number of pages fetched, labeled by site and status code.",
			},
			[]string{"site", "status"},
		)

		recordsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsgrab_records_stored_total",
				Help: "Total number of records stored, labeled by parser.",
			},
			[]string{"parser"},
		)

		duplicatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "newsgrab_duplicates_total",
				Help: "Total number of duplicate URLs skipped by the store.",
			},
		)

		parseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsgrab_parse_failures_total",
				Help: "Total number of parse failures, labeled by parser.",
			},
			[]string{"parser"},
		)

		unitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsgrab_units_total",
				Help: "Total number of execution units, labeled by terminal status.",
			},
			[]string{"status"},
		)

		activeUnits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "newsgrab_active_units",
				Help: "Number of execution units currently running.",
			},
		)

		fetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsgrab_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one page fetch.
func ObserveFetch(site string, statusCode int, seconds float64) {
	if pagesFetchedTotal == nil {
		return
	}
	host := SanitizeSite(site)
	pagesFetchedTotal.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	fetchSeconds.WithLabelValues(host).Observe(seconds)
}

// ObserveStored records one stored record.
func ObserveStored(parser string) {
	if recordsStoredTotal == nil {
		return
	}
	recordsStoredTotal.WithLabelValues(parser).Inc()
}

// ObserveDuplicate records one skipped duplicate.
func ObserveDuplicate() {
	if duplicatesTotal == nil {
		return
	}
	duplicatesTotal.Inc()
}

// ObserveParseFailure records one parse failure.
func ObserveParseFailure(parser string) {
	if parseFailuresTotal == nil {
		return
	}
	parseFailuresTotal.WithLabelValues(parser).Inc()
}

// ObserveUnit records one execution unit reaching a terminal status.
func ObserveUnit(status string) {
	if unitsTotal == nil {
		return
	}
	unitsTotal.WithLabelValues(status).Inc()
}

// UnitStarted increments the active unit gauge.
func UnitStarted() {
	if activeUnits == nil {
		return
	}
	activeUnits.Inc()
}

// UnitFinished decrements the active unit gauge.
func UnitFinished() {
	if activeUnits == nil {
		return
	}
	activeUnits.Dec()
}
