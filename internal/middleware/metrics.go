package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_tools_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observation_tools_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// ObservationsIngested counts multipart batches accepted by the ingest
	// endpoint, by execution: one increment per successful request,
	// regardless of how many observations the batch carries.
	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observation_tools_observations_ingested_total",
			Help: "Total number of observation batches ingested",
		},
		[]string{"execution_id"},
	)

	// BlobBytesStored counts bytes received through the out-of-band blob
	// upload endpoint when the request size is known. Blob-tier payloads
	// that arrive in multipart observation batches are not counted.
	BlobBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "observation_tools_blob_bytes_stored_total",
			Help: "Total bytes stored through the blob upload endpoint",
		},
	)
)

// Metrics records request count and latency per route.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// Use the route pattern, not the raw path, to bound cardinality.
		path := c.Route().Path
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().StatusCode())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}
