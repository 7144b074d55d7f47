package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	mailJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "mail",
			Name:      "jobs_total",
			Help:      "Total number of mail jobs processed.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		mailJobs,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// ObserveMailJob records the outcome of one mail job.
func ObserveMailJob(status string) {
	mailJobs.WithLabelValues(status).Inc()
}

// Middleware records request counts and latency per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		method := c.Method()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Response().StatusCode())).Inc()
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}),
	)
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}
