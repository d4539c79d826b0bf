package sched

import (
	"sort"
	"sync/atomic"
)

// ECoreOffload controls whether Batch/Container work may be steered to
// an idle efficiency core on a hybrid platform (spec §6, §8).
type ECoreOffload int

const (
	ECoreOffloadDisabled ECoreOffload = iota
	ECoreOffloadConservative
	ECoreOffloadAggressive
)

// SelectResult is the outcome of a CPU selection decision.
type SelectResult struct {
	CPU             int
	DirectDispatch  bool
	CacheDieMigrate bool
	Compacted       bool
	PcorePlacement  bool
	EcoreOffload    bool
}

// SelectCPU implements the CPU selector (spec §4.5). It refreshes
// classification and interactivity, then walks the documented policy
// chain in order, claiming the first CPU it finds idle via an atomic
// test-and-clear. It never scans more than nr_cpus candidates.
func (e *Engine) SelectCPU(tc *TaskCtx, prevCPU int, info TaskInfo) SelectResult {
	e.Classify(tc, info)
	e.UpdateInteractivity(tc)

	tc.mu.Lock()
	wantsCacheDie := tc.WantsCacheDie
	class := tc.Class
	tc.mu.Unlock()

	prevDie := e.dieOf(prevCPU)

	// Hybrid P/E policy.
	if e.isHybrid {
		if wantsCacheDie {
			if cpu, ok := e.pickIdlePCore(true); ok {
				return e.claim(cpu, prevDie, false)
			}
			if cpu, ok := e.pickIdlePCore(false); ok {
				return e.claim(cpu, prevDie, false)
			}
		} else if class == ClassBatch || class == ClassContainer {
			if cpu, ok := e.tryECoreOffload(); ok {
				r := e.claim(cpu, prevDie, false)
				r.EcoreOffload = true
				atomic.AddInt64(&e.global.EcoreOffloads, 1)
				return r
			}
		}
	}

	// Work-mode override.
	if e.tunables.workMode() && e.freqDie != NoCPU {
		if cpu, ok := e.pickIdleOnDie(e.freqDie, false); ok {
			return e.claim(cpu, prevDie, false)
		}
	}

	// Cache-die preference.
	if wantsCacheDie && !e.tunables.workMode() && e.cacheRichDie != NoCPU {
		if cpu, ok := e.pickIdleOnDie(e.cacheRichDie, true); ok {
			migrated := prevDie != NoCPU && prevDie != e.cacheRichDie
			return e.claim(cpu, prevDie, migrated)
		}
		if cpu, ok := e.pickIdleOnDie(e.cacheRichDie, false); ok {
			migrated := prevDie != NoCPU && prevDie != e.cacheRichDie
			return e.claim(cpu, prevDie, migrated)
		}
	}

	// Compaction: vacate the cache die of non-cache-wanting load when it
	// already carries gaming load.
	if !wantsCacheDie && e.cacheRichDie != NoCPU && prevDie == e.cacheRichDie {
		if e.dieLoad[e.cacheRichDie].ActiveGamingTasks > 0 {
			if cpu, ok := e.pickIdleOnAnyOtherDie(e.cacheRichDie); ok {
				r := e.claim(cpu, prevDie, false)
				r.Compacted = true
				atomic.AddInt64(&e.global.CompactionOverflows, 1)
				return r
			}
		}
	}

	// Asymmetric-boost steering: batch that doesn't want the cache die
	// goes to the higher-boosting non-cache die, when one is declared.
	if class == ClassBatch && !wantsCacheDie && e.freqDie != NoCPU && e.freqDie != e.cacheRichDie {
		if cpu, ok := e.pickIdleOnDie(e.freqDie, false); ok {
			return e.claim(cpu, prevDie, false)
		}
	}

	// Locality: previous die, then any other die, then kernel-default.
	if prevDie != NoCPU {
		if cpu, ok := e.pickIdleOnDie(prevDie, false); ok {
			r := e.claim(cpu, prevDie, false)
			atomic.AddInt64(&e.global.DieLocal, 1)
			if e.isHybrid && e.cpuCtx[cpu].IsPerformanceCore && tc.IsInteractive {
				r.PcorePlacement = true
				atomic.AddInt64(&e.global.PcorePlacements, 1)
			}
			return r
		}
	}
	for d := 0; d < e.nrDies; d++ {
		if d == prevDie {
			continue
		}
		if cpu, ok := e.pickIdleOnDie(d, false); ok {
			r := e.claim(cpu, prevDie, false)
			atomic.AddInt64(&e.global.DieCross, 1)
			return r
		}
	}
	if cpu, ok := e.pickIdleAnywhere(); ok {
		return e.claim(cpu, prevDie, false)
	}

	return SelectResult{CPU: NoCPU, DirectDispatch: false}
}

func (e *Engine) claim(cpu, prevDie int, migrated bool) SelectResult {
	atomic.AddInt64(&e.global.DirectDispatched, 1)
	if migrated {
		atomic.AddInt64(&e.global.CacheDieMigrations, 1)
	}
	return SelectResult{CPU: cpu, DirectDispatch: true, CacheDieMigrate: migrated}
}

func (e *Engine) dieOf(cpu int) int {
	if cpu < 0 || cpu >= len(e.cpuCtx) {
		return NoCPU
	}
	return e.cpuCtx[cpu].Die
}

// candidate is an idle CPU considered for a selection tie-break.
type candidate struct {
	cpu   int
	rank  int
	turbo bool
}

func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank > cands[j].rank
		}
		if cands[i].turbo != cands[j].turbo {
			return cands[i].turbo
		}
		return cands[i].cpu < cands[j].cpu
	})
}

// claimBest tries each candidate in tie-break order and test-and-clears
// the first one that is actually still idle, bounded by len(cands).
func (e *Engine) claimBest(cands []candidate) (int, bool) {
	sortCandidates(cands)
	for _, c := range cands {
		if e.idle.TestAndClear(c.cpu) {
			return c.cpu, true
		}
	}
	return NoCPU, false
}

func (e *Engine) rankOf(cpu int) int { return e.prefcoreRank[cpu] }

// pickIdlePCore finds an idle P-core. When requireSMTIdle is set, only
// P-cores whose SMT sibling is also idle (and SMT is enabled) qualify.
func (e *Engine) pickIdlePCore(requireSMTIdle bool) (int, bool) {
	var cands []candidate
	for cpu := 0; cpu < e.nrCPUs; cpu++ {
		ctx := &e.cpuCtx[cpu]
		if !ctx.IsPerformanceCore {
			continue
		}
		if !e.idle.IsIdle(cpu) {
			continue
		}
		if requireSMTIdle {
			if ctx.SMTSibling == NoCPU {
				continue
			}
			if !e.idle.IsIdle(ctx.SMTSibling) {
				continue
			}
		}
		cands = append(cands, candidate{cpu: cpu, rank: e.rankOf(cpu), turbo: ctx.IsTurboRanked})
	}
	cpu, ok := e.claimBest(cands)
	if ok && requireSMTIdle {
		atomic.AddInt64(&e.global.SMTIdlePicks, 1)
	}
	return cpu, ok
}

// tryECoreOffload picks an idle E-core if the offload mode permits it.
func (e *Engine) tryECoreOffload() (int, bool) {
	if e.eCoreOffload == ECoreOffloadDisabled {
		return NoCPU, false
	}
	var cands []candidate
	for cpu := 0; cpu < e.nrCPUs; cpu++ {
		ctx := &e.cpuCtx[cpu]
		if ctx.IsPerformanceCore || !e.idle.IsIdle(cpu) {
			continue
		}
		cands = append(cands, candidate{cpu: cpu, rank: e.rankOf(cpu)})
	}
	if e.eCoreOffload == ECoreOffloadConservative && len(cands) < 2 {
		return NoCPU, false
	}
	return e.claimBest(cands)
}

// pickIdleOnDie finds an idle CPU on die d, optionally requiring an
// idle SMT sibling too.
func (e *Engine) pickIdleOnDie(d int, requireSMTIdle bool) (int, bool) {
	var cands []candidate
	for cpu := 0; cpu < e.nrCPUs; cpu++ {
		ctx := &e.cpuCtx[cpu]
		if ctx.Die != d || !e.idle.IsIdle(cpu) {
			continue
		}
		if requireSMTIdle {
			if ctx.SMTSibling == NoCPU || !e.idle.IsIdle(ctx.SMTSibling) {
				continue
			}
		}
		cands = append(cands, candidate{cpu: cpu, rank: e.rankOf(cpu), turbo: ctx.IsTurboRanked})
	}
	cpu, ok := e.claimBest(cands)
	if ok && requireSMTIdle {
		atomic.AddInt64(&e.global.SMTIdlePicks, 1)
	}
	return cpu, ok
}

func (e *Engine) pickIdleOnAnyOtherDie(excludeDie int) (int, bool) {
	var cands []candidate
	for cpu := 0; cpu < e.nrCPUs; cpu++ {
		ctx := &e.cpuCtx[cpu]
		if ctx.Die == excludeDie || !e.idle.IsIdle(cpu) {
			continue
		}
		cands = append(cands, candidate{cpu: cpu, rank: e.rankOf(cpu), turbo: ctx.IsTurboRanked})
	}
	return e.claimBest(cands)
}

func (e *Engine) pickIdleAnywhere() (int, bool) {
	var cands []candidate
	for cpu := 0; cpu < e.nrCPUs; cpu++ {
		if !e.idle.IsIdle(cpu) {
			continue
		}
		cands = append(cands, candidate{cpu: cpu, rank: e.rankOf(cpu), turbo: e.cpuCtx[cpu].IsTurboRanked})
	}
	return e.claimBest(cands)
}
