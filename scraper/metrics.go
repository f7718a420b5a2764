package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	PagesFetchedTotal prometheus.Counter
	BooksScrapedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pagesFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_fetched_total",
			Help: "Total listing pages fetched successfully.",
		},
	)
	booksScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_books_scraped_total",
			Help: "Total book records accumulated by category walks.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total retry attempts after a failed fetch attempt.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pagesFetched, booksScraped, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		PagesFetchedTotal: pagesFetched,
		BooksScrapedTotal: booksScraped,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the fetched pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
}

// IncBooks adds n to the accumulated books counter.
func (m *Metrics) IncBooks(n int) {
	if m == nil {
		return
	}
	m.BooksScrapedTotal.Add(float64(n))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
