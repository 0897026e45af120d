// Package metrics exposes Prometheus instruments for the analysis pipeline
// and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pharmaguard-mcp-server/internal/domain"
)

const NAMESPACE = "pharmaguard"

// Collector records pipeline and request metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	parses        *prometheus.CounterVec
	parseDuration prometheus.Histogram
	variants      prometheus.Histogram
	drugResults   *prometheus.CounterVec
	explanations  *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// NewCollector registers all instruments on a fresh registry, together with
// the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		parses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "vcf_parses_total",
			Help:      "VCF documents parsed, by outcome.",
		}, []string{"outcome"}),
		parseDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "vcf_parse_duration_seconds",
			Help:      "Time spent parsing VCF documents.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		variants: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "vcf_variants",
			Help:      "Variant records per parsed VCF.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 1000, 10000},
		}),
		drugResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "drug_results_total",
			Help:      "Per-drug analysis results by phenotype and risk label.",
		}, []string{"drug", "phenotype", "risk"}),
		explanations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "explanations_total",
			Help:      "Explanations attached to results, by generator and outcome.",
		}, []string{"generated_by", "outcome"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

func (c *Collector) ObserveParse(success bool, variants int, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "no_data"
	}
	c.parses.WithLabelValues(outcome).Inc()
	c.parseDuration.Observe(elapsed.Seconds())
	c.variants.Observe(float64(variants))
}

func (c *Collector) ObserveDrug(drug string, phenotype domain.Phenotype, risk domain.RiskLabel) {
	c.drugResults.WithLabelValues(drug, string(phenotype), string(risk)).Inc()
}

func (c *Collector) ObserveExplanation(generatedBy string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if generatedBy == "" {
		generatedBy = "none"
	}
	c.explanations.WithLabelValues(generatedBy, outcome).Inc()
}

// ObserveRequest records one HTTP request.
func (c *Collector) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
