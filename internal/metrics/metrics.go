// Package metrics aggregates the scheduling engine's global counters
// on a configurable cadence (teacher idiom: a ticker-driven loop, the
// same shape as the orchestrator's own scanner tickers) and exposes
// them two ways: a frame-time-compatible CSV export for offline
// analysis, and a prometheus.Collector for live scraping.
package metrics

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// Row is one aggregated sample, matching spec.md's exact CSV schema.
type Row struct {
	TimestampMs        int64
	Enqueued           int64
	Dispatched         int64
	Gaming             int64
	Interactive        int64
	CacheDieMigrations int64
	DieLocal           int64
	DieCross           int64
	SMTIdlePicks       int64
	PreemptKicks       int64
	LatencyAvgUs       float64
	LatencyMaxUs       float64
	GamingLatencyAvgUs float64
	GamingLateFrames   int64
}

// Header is the CSV row schema from spec.md §6, in column order.
var Header = []string{
	"timestamp_ms", "enqueued", "dispatched", "gaming", "interactive",
	"cache_die_migrations", "die_local", "die_cross", "smt_idle_picks",
	"preempt_kicks", "latency_avg_us", "latency_max_us",
	"gaming_latency_avg_us", "gaming_late_frames",
}

// RowFromGlobal converts a live GlobalStats snapshot into one Row,
// deriving the averages the raw sum/count fields don't carry
// directly.
func RowFromGlobal(g sched.GlobalStats, timestampMs int64) Row {
	return Row{
		TimestampMs:        timestampMs,
		Enqueued:           g.Enqueued,
		Dispatched:         g.Dispatched,
		Gaming:             g.Gaming,
		Interactive:        g.Interactive,
		CacheDieMigrations: g.CacheDieMigrations,
		DieLocal:           g.DieLocal,
		DieCross:           g.DieCross,
		SMTIdlePicks:       g.SMTIdlePicks,
		PreemptKicks:       g.PreemptKicks,
		LatencyAvgUs:       avgUs(g.LatencySumNs, g.LatencyCountN),
		LatencyMaxUs:       nsToUs(g.LatencyMaxNs),
		GamingLatencyAvgUs: avgUs(g.GamingLatencySumNs, g.GamingLatencyCount),
		GamingLateFrames:   g.LateFrames,
	}
}

func avgUs(sumNs, count int64) float64 {
	if count == 0 {
		return 0
	}
	return nsToUs(sumNs / count)
}

func nsToUs(ns int64) float64 { return float64(ns) / 1000.0 }

// WriteCSV writes Header followed by one line per row, in column
// order, to w.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.TimestampMs, 10),
			strconv.FormatInt(r.Enqueued, 10),
			strconv.FormatInt(r.Dispatched, 10),
			strconv.FormatInt(r.Gaming, 10),
			strconv.FormatInt(r.Interactive, 10),
			strconv.FormatInt(r.CacheDieMigrations, 10),
			strconv.FormatInt(r.DieLocal, 10),
			strconv.FormatInt(r.DieCross, 10),
			strconv.FormatInt(r.SMTIdlePicks, 10),
			strconv.FormatInt(r.PreemptKicks, 10),
			strconv.FormatFloat(r.LatencyAvgUs, 'f', 3, 64),
			strconv.FormatFloat(r.LatencyMaxUs, 'f', 3, 64),
			strconv.FormatFloat(r.GamingLatencyAvgUs, 'f', 3, 64),
			strconv.FormatInt(r.GamingLateFrames, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Aggregator samples the engine on a ticker and accumulates rows for
// later export, bounded by maxRows so a long --benchmark run can't
// grow without limit (oldest rows are dropped first).
type Aggregator struct {
	engine  *sched.Engine
	rows    []Row
	maxRows int
	now     func() time.Time
}

// NewAggregator builds an Aggregator over engine, keeping at most
// maxRows samples.
func NewAggregator(engine *sched.Engine, maxRows int) *Aggregator {
	if maxRows <= 0 {
		maxRows = 3600 // one hour at 1s cadence
	}
	return &Aggregator{engine: engine, maxRows: maxRows, now: time.Now}
}

// Rows returns a copy of the accumulated samples.
func (a *Aggregator) Rows() []Row {
	out := make([]Row, len(a.rows))
	copy(out, a.rows)
	return out
}

// SampleOnce takes one sample immediately.
func (a *Aggregator) SampleOnce() {
	row := RowFromGlobal(a.engine.Global(), a.now().UnixMilli())
	a.rows = append(a.rows, row)
	if len(a.rows) > a.maxRows {
		a.rows = a.rows[len(a.rows)-a.maxRows:]
	}
}

// Run samples on the given interval until ctx is canceled.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SampleOnce()
		}
	}
}
