// Package telemetry records HTTP server metrics and serves them in the
// Prometheus text exposition format. It has no SDK dependency; histograms
// and gauges are kept in process and rendered on scrape.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/getadoc/getadoc/internal/platform/apperr"
	"github.com/getadoc/getadoc/internal/platform/db"
)

// durationBuckets are upper bounds in seconds.
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type histogram struct {
	mu      sync.Mutex
	buckets []int64 // non-cumulative, one per bound
	count   int64
	sum     float64
}

func newHistogram() *histogram {
	return &histogram{buckets: make([]int64, len(durationBuckets))}
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, bound := range durationBuckets {
		if v <= bound {
			h.buckets[i]++
			return
		}
	}
}

// snapshot returns cumulative bucket counts, the total count and the sum.
func (h *histogram) snapshot() ([]int64, int64, float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.buckets))
	var running int64
	for i, c := range h.buckets {
		running += c
		cum[i] = running
	}
	return cum, h.count, h.sum
}

type seriesKey struct {
	method string
	route  string
	status int
}

// Metrics holds the request series for one server.
type Metrics struct {
	mu     sync.RWMutex
	series map[seriesKey]*histogram
	active int64

	poolStats func() db.PoolStats
}

func NewMetrics() *Metrics {
	return &Metrics{series: make(map[seriesKey]*histogram)}
}

// WithPoolStats adds database pool gauges to the exposition.
func (m *Metrics) WithPoolStats(fn func() db.PoolStats) *Metrics {
	m.poolStats = fn
	return m
}

func (m *Metrics) histogramFor(key seriesKey) *histogram {
	m.mu.RLock()
	h, ok := m.series[key]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.series[key]; !ok {
		h = newHistogram()
		m.series[key] = h
	}
	return h
}

// Middleware times every request. Series are labelled by the matched route
// pattern, never the raw path, so ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.active, 1)
			start := time.Now()

			err := next(c)

			atomic.AddInt64(&m.active, -1)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.Observe(c.Request().Method, route, statusOf(c, err), time.Since(start))
			return err
		}
	}
}

// Observe records one request.
func (m *Metrics) Observe(method, route string, status int, d time.Duration) {
	m.histogramFor(seriesKey{method: method, route: route, status: status}).observe(d.Seconds())
}

// statusOf predicts the status the error handler will write when the
// handler returned an error before committing a response.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.HTTPStatus(apperr.KindOf(err))
}

// Handler serves the exposition.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, m.render())
	}
}

func (m *Metrics) render() string {
	var b strings.Builder

	const name = "http_server_request_duration_seconds"
	fmt.Fprintf(&b, "# HELP %s Duration of HTTP requests in seconds.\n", name)
	fmt.Fprintf(&b, "# TYPE %s histogram\n", name)

	m.mu.RLock()
	keys := make([]seriesKey, 0, len(m.series))
	for k := range m.series {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		if keys[i].method != keys[j].method {
			return keys[i].method < keys[j].method
		}
		return keys[i].status < keys[j].status
	})

	for _, k := range keys {
		cum, count, sum := m.histogramFor(k).snapshot()
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", k.method, k.route, strconv.Itoa(k.status))
		for i, bound := range durationBuckets {
			fmt.Fprintf(&b, "%s_bucket{%s,le=%q} %d\n", name, labels, formatBound(bound), cum[i])
		}
		fmt.Fprintf(&b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, count)
		fmt.Fprintf(&b, "%s_sum{%s} %g\n", name, labels, sum)
		fmt.Fprintf(&b, "%s_count{%s} %d\n", name, labels, count)
	}
	b.WriteByte('\n')

	writeGauge(&b, "http_server_active_requests", "Number of in-flight HTTP requests.",
		atomic.LoadInt64(&m.active))

	if m.poolStats != nil {
		s := m.poolStats()
		writeGauge(&b, "db_pool_total_connections", "Open database connections.", int64(s.TotalConns))
		writeGauge(&b, "db_pool_idle_connections", "Idle database connections.", int64(s.IdleConns))
		writeGauge(&b, "db_pool_acquired_connections", "Database connections in use.", int64(s.AcquiredConns))
		writeGauge(&b, "db_pool_max_connections", "Configured maximum database connections.", int64(s.MaxConns))
	}
	return b.String()
}

func writeGauge(b *strings.Builder, name, help string, v int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %d\n\n", name, v)
}

func formatBound(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
