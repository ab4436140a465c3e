package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	OverallScore     *prometheus.HistogramVec

	SuggestionsAppliedTotal prometheus.Counter

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	RateLimitHitsTotal *prometheus.CounterVec

	ActiveSessions prometheus.Gauge

	registry *prometheus.Registry
}

// New регистрирует метрики в глобальном реестре prometheus (для main)
func New() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, nil)
}

// NewWithRegistry - отдельный реестр, чтобы тесты не конфликтовали при повторной регистрации
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	return newMetrics(reg, reg)
}

func newMetrics(reg prometheus.Registerer, own *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ba_analyser_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"channel", "operation", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ba_analyser_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"channel", "operation"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ba_analyser_requests_in_flight",
				Help: "Number of requests currently being processed",
			},
		),

		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ba_analyser_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ba_analyser_llm_request_duration_seconds",
				Help:    "LLM request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),

		AnalysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ba_analyser_analyses_total",
				Help: "Total number of artifact analyses",
			},
			[]string{"artifact_type", "status"},
		),
		AnalysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ba_analyser_analysis_duration_seconds",
				Help:    "Full analysis duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"artifact_type"},
		),
		OverallScore: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ba_analyser_overall_score",
				Help:    "Overall quality score of analysed artifacts",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
			[]string{"artifact_type"},
		),

		SuggestionsAppliedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ba_analyser_suggestions_applied_total",
				Help: "Total number of suggestions sent for application",
			},
		),

		CacheHitsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ba_analyser_cache_hits_total",
				Help: "Total number of cache hits",
			},
		),
		CacheMissesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ba_analyser_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		RateLimitHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ba_analyser_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"channel"},
		),

		ActiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "ba_analyser_active_sessions",
				Help: "Number of live iteration sessions",
			},
		),

		registry: own,
	}

	return m
}

// Handler отдает /metrics для того реестра, в котором метрики зарегистрированы
func (m *Metrics) Handler() http.Handler {
	if m.registry != nil {
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func (m *Metrics) RecordRequest(channel, operation, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(channel, operation, status).Inc()
	m.RequestDuration.WithLabelValues(channel, operation).Observe(duration.Seconds())
}

func (m *Metrics) IncInFlight() { m.RequestsInFlight.Inc() }
func (m *Metrics) DecInFlight() { m.RequestsInFlight.Dec() }

func (m *Metrics) RecordLLMRequest(provider, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordAnalysis(artifactType, status string, score float64, duration time.Duration) {
	m.AnalysesTotal.WithLabelValues(artifactType, status).Inc()
	m.AnalysisDuration.WithLabelValues(artifactType).Observe(duration.Seconds())
	if status == "ok" {
		m.OverallScore.WithLabelValues(artifactType).Observe(score)
	}
}

func (m *Metrics) RecordSuggestionsApplied(n int) {
	m.SuggestionsAppliedTotal.Add(float64(n))
}

func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) RecordRateLimitHit(channel string) {
	m.RateLimitHitsTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}
