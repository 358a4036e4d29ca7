// Package metrics provides a lightweight Prometheus-compatible collector
// for the bot engine. It renders text/plain exposition format without
// pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewCollector()

// Engine metrics, registered once at package init.
var (
	MessagesReceived  = Collector.Counter("bot_messages_received_total", "Inbound messages accepted by the pipeline")
	RepliesGenerated  = Collector.Counter("bot_replies_generated_total", "Replies produced by a capability backend")
	FallbacksServed   = Collector.Counter("bot_fallbacks_served_total", "Responses answered with a fallback text")
	DeliveriesFailed  = Collector.Counter("bot_deliveries_failed_total", "Outbound deliveries that errored")
	RateLimitedInputs = Collector.Counter("bot_rate_limited_total", "Inbound messages refused by the tenant rate limit")
	TenantsLoaded     = Collector.Gauge("bot_tenants_loaded", "Tenants currently in the registry")
)

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	gauges    sync.Map // name -> *Gauge
	startTime time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help}
	actual, _ := c.counters.LoadOrStore(name, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	if v, ok := c.gauges.Load(name); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help}
	actual, _ := c.gauges.LoadOrStore(name, g)
	return actual.(*Gauge)
}

// Handler renders all metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP bot_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE bot_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "bot_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		c.counters.Range(func(_, value any) bool {
			ctr := value.(*Counter)
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
			return true
		})

		c.gauges.Range(func(_, value any) bool {
			g := value.(*Gauge)
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
			return true
		})

		w.Write([]byte(sb.String()))
	}
}
