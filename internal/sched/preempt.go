package sched

import "sync/atomic"

// PreemptKicker sends a cross-CPU signal that causes the target CPU to
// re-run the scheduler. A real native attach maps this onto the
// kernel's preemption kick primitive; shadow mode records the kick for
// tests and metrics without an actual interrupt.
type PreemptKicker interface {
	Kick(cpu int)
}

// NopKicker discards kicks; used when no native kick is wired.
type NopKicker struct{}

func (NopKicker) Kick(int) {}

// FindVictim scans the CPUs on die d, reading CpuRunState, and returns
// the CPU running the lowest-priority class strictly below minPriority
// (spec §4.7). Ties are broken by lowest CPU number. Returns NoCPU when
// no victim qualifies. The scan never visits more than nrCPUs CPUs.
func (e *Engine) FindVictim(d int, minPriority int) (cpu int, class Class, found bool) {
	best := NoCPU
	bestPriority := -1
	var bestClass Class
	for c := 0; c < e.nrCPUs; c++ {
		if e.cpuCtx[c].Die != d {
			continue
		}
		valid, class, _, _ := e.runState[c].Snapshot()
		if !valid {
			continue
		}
		p := class.Priority()
		if p <= minPriority {
			continue
		}
		if p > bestPriority || (p == bestPriority && c < best) {
			best = c
			bestPriority = p
			bestClass = class
		}
	}
	if best == NoCPU {
		return NoCPU, ClassUnknown, false
	}
	return best, bestClass, true
}

// MaybePreempt is called from Enqueue for a gaming task that wants the
// cache die but could not be direct-dispatched. It sends at most one
// kick per enqueue, targeting the lowest-priority occupier of the cache
// die strictly below the gaming priority (spec §4.6, §8).
func (e *Engine) MaybePreempt(pid int32, nowNs int64) bool {
	if e.cacheRichDie == NoCPU {
		return false
	}
	victimCPU, victimClass, ok := e.FindVictim(e.cacheRichDie, ClassGaming.Priority())
	if !ok {
		return false
	}
	e.kicker.Kick(victimCPU)
	atomic.AddInt64(&e.global.PreemptKicks, 1)
	atomic.AddInt64(&e.global.GamingPreemptions, 1)
	e.pushEvent(Event{
		TimestampNs: uint64(nowNs),
		Type:        EventPreemptKick,
		PID:         uint32(pid),
		CPU:         uint32(victimCPU),
		Die:         uint32(e.cacheRichDie),
		V1:          uint64(victimClass),
	})
	return true
}
