package sched

import "testing"

func TestAtomicMaxInt64_OnlyRaises(t *testing.T) {
	var v int64 = 10
	atomicMaxInt64(&v, 5)
	if v != 10 {
		t.Fatalf("v = %d after a lower candidate, want 10", v)
	}
	atomicMaxInt64(&v, 20)
	if v != 20 {
		t.Fatalf("v = %d after a higher candidate, want 20", v)
	}
}

func TestAtomicMinInt64_TreatsZeroAsUnset(t *testing.T) {
	var v int64
	atomicMinInt64(&v, 100)
	if v != 100 {
		t.Fatalf("v = %d, want 100 (zero is unset, first sample always wins)", v)
	}
	atomicMinInt64(&v, 50)
	if v != 50 {
		t.Fatalf("v = %d, want 50 (a lower sample should win)", v)
	}
	atomicMinInt64(&v, 200)
	if v != 50 {
		t.Fatalf("v = %d, want 50 (a higher sample must not raise the minimum)", v)
	}
}

func TestCreditLatency_TracksGamingSeparately(t *testing.T) {
	var g GlobalStats
	g.creditLatency(1000, false)
	g.creditLatency(2000, true)

	if g.LatencyCountN != 2 {
		t.Fatalf("LatencyCountN = %d, want 2", g.LatencyCountN)
	}
	if g.GamingLatencyCount != 1 {
		t.Fatalf("GamingLatencyCount = %d, want 1", g.GamingLatencyCount)
	}
	if g.GamingLatencySumNs != 2000 {
		t.Fatalf("GamingLatencySumNs = %d, want 2000", g.GamingLatencySumNs)
	}
}

func TestCreditLatency_CountsLateFrames(t *testing.T) {
	var g GlobalStats
	g.creditLatency(500_000, false)   // under 1ms
	g.creditLatency(1_500_000, false) // over 1ms

	if g.LateFrames != 1 {
		t.Fatalf("LateFrames = %d, want 1", g.LateFrames)
	}
}

func TestGamingPids_UpsertLookupDelete(t *testing.T) {
	p := newGamingPids()
	p.Upsert(1, ClassGaming, true)

	class, compat, ok := p.Lookup(1)
	if !ok || class != ClassGaming || !compat {
		t.Fatalf("Lookup(1) = (%v, %v, %v), want (Gaming, true, true)", class, compat, ok)
	}
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}

	p.Delete(1)
	if _, _, ok := p.Lookup(1); ok {
		t.Fatalf("Lookup(1) found an entry after Delete")
	}
	if p.Len() != 0 {
		t.Fatalf("Len() = %d after Delete, want 0", p.Len())
	}
}

func TestVmVcpuPids_UpsertLookupDelete(t *testing.T) {
	v := newVmVcpuPids()
	v.Upsert(5, ClassVmGaming)

	if class, ok := v.Lookup(5); !ok || class != ClassVmGaming {
		t.Fatalf("Lookup(5) = (%v, %v), want (VmGaming, true)", class, ok)
	}
	v.Delete(5)
	if _, ok := v.Lookup(5); ok {
		t.Fatalf("Lookup(5) found an entry after Delete")
	}
}

func TestContainerPids_UpsertLookupDelete(t *testing.T) {
	c := newContainerPids()
	c.Upsert(9, ClassContainer)

	if class, ok := c.Lookup(9); !ok || class != ClassContainer {
		t.Fatalf("Lookup(9) = (%v, %v), want (Container, true)", class, ok)
	}
	c.Delete(9)
	if _, ok := c.Lookup(9); ok {
		t.Fatalf("Lookup(9) found an entry after Delete")
	}
}

func TestCgroupClasses_UpsertLookupDelete(t *testing.T) {
	c := newCgroupClasses()
	c.Upsert(123, ClassBatch)

	if class, ok := c.Lookup(123); !ok || class != ClassBatch {
		t.Fatalf("Lookup(123) = (%v, %v), want (Batch, true)", class, ok)
	}
	c.Delete(123)
	if _, ok := c.Lookup(123); ok {
		t.Fatalf("Lookup(123) found an entry after Delete")
	}
}

func TestClass_PriorityOrdering(t *testing.T) {
	if ClassGaming.Priority() >= ClassInteractive.Priority() {
		t.Fatalf("gaming must outrank interactive")
	}
	if ClassInteractive.Priority() >= ClassBatch.Priority() {
		t.Fatalf("interactive must outrank batch")
	}
	if ClassVmGaming.Priority() != ClassGaming.Priority() {
		t.Fatalf("vm-gaming must share gaming's priority tier")
	}
}

func TestDefaultTunables_MatchesDocumentedDefaults(t *testing.T) {
	tun := DefaultTunables()
	if tun.burstThreshold() != 3_000_000 {
		t.Fatalf("default burst threshold = %d, want 3ms", tun.burstThreshold())
	}
	if tun.slice() != 5_000_000 {
		t.Fatalf("default slice = %d, want 5ms", tun.slice())
	}
	if tun.gamingMode() || tun.workMode() {
		t.Fatalf("gaming_mode/work_mode should default to false")
	}
}
