package sched

import "testing"

func markRunning(e *Engine, cpu int, class Class, pid int32) {
	e.runState[cpu].set(class, pid, 0)
	e.idle.SetIdle(cpu, false)
}

func TestFindVictim_PicksLowestPriorityBelowThreshold(t *testing.T) {
	now := int64(1)
	e := buildSymmetricEngine(8, fakeClock(&now))

	markRunning(e, 1, ClassInteractive, 10)
	markRunning(e, 2, ClassBatch, 11)
	markRunning(e, 3, ClassBatch, 12)

	cpu, class, ok := e.FindVictim(0, ClassGaming.Priority())
	if !ok {
		t.Fatalf("expected a victim on die 0")
	}
	if class != ClassBatch {
		t.Fatalf("victim class = %v, want ClassBatch (lowest priority)", class)
	}
	if cpu != 2 {
		t.Fatalf("victim CPU = %d, want 2 (lowest CPU number among equal-priority occupiers)", cpu)
	}
}

func TestFindVictim_NoneBelowThreshold(t *testing.T) {
	now := int64(1)
	e := buildSymmetricEngine(8, fakeClock(&now))
	markRunning(e, 1, ClassGaming, 10)

	_, _, ok := e.FindVictim(0, ClassGaming.Priority())
	if ok {
		t.Fatalf("a gaming occupier is not strictly below gaming priority; FindVictim should fail")
	}
}

// Scenario 5: preempt kick. All cache-die (die 0) CPUs run batch
// tasks; die-1 CPUs are all busy too. A gaming task wanting the cache
// die causes exactly one kick to a cache-die CPU running Batch.
func TestMaybePreempt_ExactlyOneKick(t *testing.T) {
	now := int64(1)
	e := buildSymmetricEngine(8, fakeClock(&now))
	kicker := &recordingKicker{}
	e.kicker = kicker

	for cpu := 0; cpu < 16; cpu++ {
		class := ClassBatch
		markRunning(e, cpu, class, int32(100+cpu))
	}

	ok := e.MaybePreempt(999, now)
	if !ok {
		t.Fatalf("MaybePreempt returned false, want true")
	}
	if len(kicker.kicks) != 1 {
		t.Fatalf("kicks = %d, want exactly 1", len(kicker.kicks))
	}
	if kicker.kicks[0] < 0 || kicker.kicks[0] > 7 {
		t.Fatalf("kicked CPU %d is not on the cache-rich die (0-7)", kicker.kicks[0])
	}
	if got := e.Global().PreemptKicks; got != 1 {
		t.Fatalf("PreemptKicks = %d, want 1", got)
	}
	if got := e.Global().GamingPreemptions; got != 1 {
		t.Fatalf("GamingPreemptions = %d, want 1", got)
	}
}

func TestMaybePreempt_NoCacheRichDie_NeverKicks(t *testing.T) {
	now := int64(1)
	cpus := []CpuCtx{{CPU: 0, Die: 0, SMTSibling: NoCPU}}
	e := NewEngine()
	e.Init(InitConfig{CPUs: cpus, NrDies: 1, CacheRichDie: NoCPU, Clock: fakeClock(&now)})

	if e.MaybePreempt(1, now) {
		t.Fatalf("MaybePreempt should be a no-op on a symmetric platform")
	}
}

// Enqueue only calls MaybePreempt for a gaming task that wants the
// cache die; it must never send more than one kick per call.
func TestEnqueue_GamingWantsCacheDie_TriggersAtMostOneKick(t *testing.T) {
	now := int64(1)
	e := buildSymmetricEngine(8, fakeClock(&now))
	kicker := &recordingKicker{}
	e.kicker = kicker

	for cpu := 0; cpu < 8; cpu++ {
		markRunning(e, cpu, ClassBatch, int32(100+cpu))
	}

	tc := newTaskCtx()
	e.Classify(tc, TaskInfo{PID: 900, Comm: "proton"})
	e.UpdateInteractivity(tc)

	e.Enqueue(tc, 900, 0)

	if len(kicker.kicks) != 1 {
		t.Fatalf("kicks = %d, want exactly 1", len(kicker.kicks))
	}
}
