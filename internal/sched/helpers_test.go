package sched

// buildSymmetricEngine constructs a 2-die, cpusPerDie-CPUs-per-die
// platform with die 0 cache-rich, matching the scenarios in the
// design notes (cache-die preference, compaction, preempt kick).
func buildSymmetricEngine(cpusPerDie int, clock func() int64) *Engine {
	cpus := make([]CpuCtx, 0, cpusPerDie*2)
	for d := 0; d < 2; d++ {
		for i := 0; i < cpusPerDie; i++ {
			cpu := d*cpusPerDie + i
			cpus = append(cpus, CpuCtx{CPU: cpu, Die: d, SMTSibling: NoCPU, IsCacheRich: d == 0})
		}
	}
	e := NewEngine()
	e.Init(InitConfig{
		CPUs:         cpus,
		NrDies:       2,
		CacheRichDie: 0,
		FreqDie:      NoCPU,
		Clock:        clock,
	})
	return e
}

// buildHybridEngine constructs a single-die hybrid platform with
// nPCores P-CPUs (indices 0..nPCores-1) followed by nECores E-CPUs.
func buildHybridEngine(nPCores, nECores int, offload ECoreOffload, clock func() int64) *Engine {
	cpus := make([]CpuCtx, 0, nPCores+nECores)
	for i := 0; i < nPCores; i++ {
		cpus = append(cpus, CpuCtx{CPU: i, Die: 0, SMTSibling: NoCPU, IsPerformanceCore: true, IsTurboRanked: true})
	}
	for i := 0; i < nECores; i++ {
		cpu := nPCores + i
		cpus = append(cpus, CpuCtx{CPU: cpu, Die: 0, SMTSibling: NoCPU})
	}
	e := NewEngine()
	e.Init(InitConfig{
		CPUs:         cpus,
		NrDies:       1,
		CacheRichDie: NoCPU,
		FreqDie:      NoCPU,
		IsHybrid:     true,
		ECoreOffload: offload,
		Clock:        clock,
	})
	return e
}

// fakeClock returns a closure usable as InitConfig.Clock, advancing
// only when set, so tests control time deterministically.
func fakeClock(nowNs *int64) func() int64 {
	return func() int64 { return *nowNs }
}

// recordingKicker records every Kick call for assertions.
type recordingKicker struct {
	kicks []int
}

func (k *recordingKicker) Kick(cpu int) { k.kicks = append(k.kicks, cpu) }
