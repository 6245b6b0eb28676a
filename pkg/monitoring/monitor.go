package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// ExplanationCacheLookups 解释缓存命中情况，result 为 hit / miss
	ExplanationCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explanation_cache_lookups_total",
			Help: "Explanation cache lookups by result",
		},
		[]string{"result"},
	)

	// LLMBackendCalls 模型后端调用情况，backend 为 online / offline，result 为 ok / error
	LLMBackendCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_backend_calls_total",
			Help: "LLM backend call attempts by backend and result",
		},
		[]string{"backend", "result"},
	)

	LLMBackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_backend_duration_seconds",
			Help:    "Duration of LLM backend calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ExplanationCacheLookups)
	prometheus.MustRegister(LLMBackendCalls)
	prometheus.MustRegister(LLMBackendDuration)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
