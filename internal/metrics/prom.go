package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// Collector adapts the engine's global counters to a
// prometheus.Collector so the same numbers the CSV export and the
// MCP get_metrics tool read are also scrapeable.
type Collector struct {
	engine *sched.Engine

	enqueued           *prometheus.Desc
	dispatched         *prometheus.Desc
	directDispatched   *prometheus.Desc
	gaming             *prometheus.Desc
	interactive        *prometheus.Desc
	cacheDieMigrations *prometheus.Desc
	dieLocal           *prometheus.Desc
	dieCross           *prometheus.Desc
	smtIdlePicks       *prometheus.Desc
	preemptKicks       *prometheus.Desc
	latencyAvgUs       *prometheus.Desc
	latencyMaxUs       *prometheus.Desc
	gamingLateFrames   *prometheus.Desc
	eventDrops         *prometheus.Desc
	taskCount          *prometheus.Desc
}

// NewCollector builds a Collector over engine. Register it with a
// prometheus.Registry to expose /metrics.
func NewCollector(engine *sched.Engine) *Collector {
	ns := "ghostbrew"
	return &Collector{
		engine:             engine,
		enqueued:           prometheus.NewDesc(ns+"_enqueued_total", "Total tasks enqueued", nil, nil),
		dispatched:         prometheus.NewDesc(ns+"_dispatched_total", "Total tasks dispatched", nil, nil),
		directDispatched:   prometheus.NewDesc(ns+"_direct_dispatched_total", "Total tasks dispatched via the direct-dispatch fast path", nil, nil),
		gaming:             prometheus.NewDesc(ns+"_gaming_total", "Total tasks classified as gaming", nil, nil),
		interactive:        prometheus.NewDesc(ns+"_interactive_total", "Total tasks classified as interactive", nil, nil),
		cacheDieMigrations: prometheus.NewDesc(ns+"_cache_die_migrations_total", "Total cross-die migrations onto the cache-rich die", nil, nil),
		dieLocal:           prometheus.NewDesc(ns+"_die_local_total", "Total dispatches kept on the task's preferred die", nil, nil),
		dieCross:           prometheus.NewDesc(ns+"_die_cross_total", "Total dispatches that crossed dies", nil, nil),
		smtIdlePicks:       prometheus.NewDesc(ns+"_smt_idle_picks_total", "Total selections of an idle SMT sibling", nil, nil),
		preemptKicks:       prometheus.NewDesc(ns+"_preempt_kicks_total", "Total preemption kicks issued", nil, nil),
		latencyAvgUs:       prometheus.NewDesc(ns+"_latency_avg_us", "Average scheduling latency in microseconds", nil, nil),
		latencyMaxUs:       prometheus.NewDesc(ns+"_latency_max_us", "Maximum observed scheduling latency in microseconds", nil, nil),
		gamingLateFrames:   prometheus.NewDesc(ns+"_gaming_late_frames_total", "Total gaming-class dispatches exceeding the late-frame threshold", nil, nil),
		eventDrops:         prometheus.NewDesc(ns+"_event_drops_total", "Total events dropped by the fixed-size event ring", nil, nil),
		taskCount:          prometheus.NewDesc(ns+"_task_count", "Live task contexts currently tracked", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.enqueued
	ch <- c.dispatched
	ch <- c.directDispatched
	ch <- c.gaming
	ch <- c.interactive
	ch <- c.cacheDieMigrations
	ch <- c.dieLocal
	ch <- c.dieCross
	ch <- c.smtIdlePicks
	ch <- c.preemptKicks
	ch <- c.latencyAvgUs
	ch <- c.latencyMaxUs
	ch <- c.gamingLateFrames
	ch <- c.eventDrops
	ch <- c.taskCount
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	g := c.engine.Global()

	ch <- prometheus.MustNewConstMetric(c.enqueued, prometheus.CounterValue, float64(g.Enqueued))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(g.Dispatched))
	ch <- prometheus.MustNewConstMetric(c.directDispatched, prometheus.CounterValue, float64(g.DirectDispatched))
	ch <- prometheus.MustNewConstMetric(c.gaming, prometheus.CounterValue, float64(g.Gaming))
	ch <- prometheus.MustNewConstMetric(c.interactive, prometheus.CounterValue, float64(g.Interactive))
	ch <- prometheus.MustNewConstMetric(c.cacheDieMigrations, prometheus.CounterValue, float64(g.CacheDieMigrations))
	ch <- prometheus.MustNewConstMetric(c.dieLocal, prometheus.CounterValue, float64(g.DieLocal))
	ch <- prometheus.MustNewConstMetric(c.dieCross, prometheus.CounterValue, float64(g.DieCross))
	ch <- prometheus.MustNewConstMetric(c.smtIdlePicks, prometheus.CounterValue, float64(g.SMTIdlePicks))
	ch <- prometheus.MustNewConstMetric(c.preemptKicks, prometheus.CounterValue, float64(g.PreemptKicks))
	ch <- prometheus.MustNewConstMetric(c.latencyAvgUs, prometheus.GaugeValue, avgUs(g.LatencySumNs, g.LatencyCountN))
	ch <- prometheus.MustNewConstMetric(c.latencyMaxUs, prometheus.GaugeValue, nsToUs(g.LatencyMaxNs))
	ch <- prometheus.MustNewConstMetric(c.gamingLateFrames, prometheus.CounterValue, float64(g.LateFrames))
	ch <- prometheus.MustNewConstMetric(c.eventDrops, prometheus.CounterValue, float64(c.engine.EventDrops()))
	ch <- prometheus.MustNewConstMetric(c.taskCount, prometheus.GaugeValue, float64(c.engine.TaskCount()))
}
