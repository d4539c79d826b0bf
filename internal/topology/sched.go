package topology

import "github.com/ghostkellz/ghostbrew/internal/sched"

// ToSchedConfig converts an enumerated Snapshot into the engine's static
// init facts. Tunables, Kicker, EventCapacity, and Clock are left to the
// orchestrator to fill in before calling Engine.Init.
func (s *Snapshot) ToSchedConfig() sched.InitConfig {
	cpus := make([]sched.CpuCtx, len(s.CPUs))
	for i, c := range s.CPUs {
		cpus[i] = sched.CpuCtx{
			CPU:               c.ID,
			Die:               c.Die,
			Cluster:           c.Cluster,
			NUMANode:          c.NUMANode,
			SMTSibling:        smtOrNoCPU(c.SMTSibling),
			IsCacheRich:       s.CacheRichDie != sched.NoCPU && c.Die == s.CacheRichDie,
			IsPerformanceCore: c.IsPerformanceCore,
			IsTurboRanked:     c.IsTurboRanked,
		}
	}

	return sched.InitConfig{
		CPUs:         cpus,
		NrDies:       s.NrDies,
		CacheRichDie: dieOrNoCPU(s.CacheRichDie),
		FreqDie:      dieOrNoCPU(s.FreqDie),
		IsHybrid:     s.IsHybrid,
	}
}

func smtOrNoCPU(v int) int {
	if v < 0 {
		return sched.NoCPU
	}
	return v
}

func dieOrNoCPU(v int) int {
	if v < 0 {
		return sched.NoCPU
	}
	return v
}
