package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

func TestCollector_DescribeEmitsOneDescPerMetric(t *testing.T) {
	e := newTestEngine(t)
	c := NewCollector(e)

	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	count := 0
	for range ch {
		count++
	}
	if count != 15 {
		t.Fatalf("Describe emitted %d descs, want 15", count)
	}
}

func TestCollector_CollectReflectsEngineState(t *testing.T) {
	e := newTestEngine(t)
	tc := e.TaskFor(1)
	e.Classify(tc, sched.TaskInfo{PID: 1, Comm: "bash"})
	e.Enqueue(tc, 1, sched.NoCPU)

	c := NewCollector(e)
	ch := make(chan prometheus.Metric, 32)
	c.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}
	if len(metrics) != 15 {
		t.Fatalf("Collect emitted %d metrics, want 15", len(metrics))
	}
}
