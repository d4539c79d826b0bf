package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// InitConfig describes the topology facts the supervisor has already
// enumerated (internal/topology) and the starting runtime tunables.
// sched deliberately has no import-time dependency on internal/topology
// so the engine stays leaf-level and independently testable.
type InitConfig struct {
	CPUs          []CpuCtx // indexed by cpu; CpuCtx.CPU must equal its index
	PrefcoreRank  PrefcoreRank
	NrDies        int
	CacheRichDie  int // NoCPU if the platform is symmetric
	FreqDie       int // NoCPU if no frequency-preferred die is declared
	IsHybrid      bool
	ECoreOffload  ECoreOffload
	Tunables      *RuntimeTunables // nil uses DefaultTunables()
	Kicker        PreemptKicker    // nil uses NopKicker
	EventCapacity int              // 0 uses a sane default
	Clock         func() int64     // nil uses time.Now().UnixNano; overridable for tests
}

// ExitReason records why the engine was unloaded (spec §4.10, §7).
type ExitReason string

const (
	ExitNone          ExitReason = ""
	ExitUnloaded      ExitReason = "unloaded"
	ExitWatchdogTrip  ExitReason = "watchdog_trip"
	ExitAttachFailure ExitReason = "attach_failure"
)

// Engine is the scheduling hot path: classification, burst tracking,
// CPU selection, dispatch, preemption, and the metrics/event producers.
// All tables are pre-sized by Init; nothing here allocates afterward
// except the supervisor-side maps, which are explicitly documented as
// eventually-consistent hints (spec §5).
type Engine struct {
	nrCPUs int
	nrDies int

	cpuCtx       []CpuCtx
	dieLoad      []DieLoad
	runState     []CpuRunState
	cpuPerf      []CpuPerf
	prefcoreRank PrefcoreRank
	idle         *IdleBitmap
	queues       *DispatchQueues

	cacheRichDie          int
	freqDie               int
	isHybrid              bool
	isCacheRichAsymmetric bool
	eCoreOffload          ECoreOffload

	tunables      *RuntimeTunables
	gamingPids    *GamingPids
	vmVcpuPids    *VmVcpuPids
	containerPids *ContainerPids
	cgroupClasses *CgroupClasses

	perCpuStats []PerCpuStats
	global      GlobalStats
	events      *EventRing
	kicker      PreemptKicker

	gpuActive int32 // atomic bool; set by internal/discovery's GPU scanner

	tasksMu sync.RWMutex
	tasks   map[int32]*TaskCtx

	clock func() int64

	exitReason atomic.Value // ExitReason
}

func defaultClock() int64 { return time.Now().UnixNano() }

// NewEngine constructs an uninitialized engine; call Init before use.
func NewEngine() *Engine {
	e := &Engine{
		gamingPids:    newGamingPids(),
		vmVcpuPids:    newVmVcpuPids(),
		containerPids: newContainerPids(),
		cgroupClasses: newCgroupClasses(),
		tasks:         make(map[int32]*TaskCtx),
	}
	e.exitReason.Store(ExitNone)
	return e
}

// Init creates one fallback queue and one queue per die, pre-sizes all
// per-CPU tables, and installs the topology facts (spec §4.10).
func (e *Engine) Init(cfg InitConfig) {
	e.nrCPUs = len(cfg.CPUs)
	e.nrDies = cfg.NrDies
	e.cpuCtx = append([]CpuCtx(nil), cfg.CPUs...)
	e.dieLoad = make([]DieLoad, cfg.NrDies)
	e.runState = make([]CpuRunState, e.nrCPUs)
	e.cpuPerf = make([]CpuPerf, e.nrCPUs)
	e.prefcoreRank = cfg.PrefcoreRank
	if e.prefcoreRank == nil {
		e.prefcoreRank = make(PrefcoreRank)
	}
	e.idle = NewIdleBitmap(e.nrCPUs)
	e.queues = NewDispatchQueues(cfg.NrDies)

	e.cacheRichDie = cfg.CacheRichDie
	e.freqDie = cfg.FreqDie
	e.isHybrid = cfg.IsHybrid
	e.isCacheRichAsymmetric = cfg.CacheRichDie != NoCPU
	e.eCoreOffload = cfg.ECoreOffload

	e.tunables = cfg.Tunables
	if e.tunables == nil {
		e.tunables = DefaultTunables()
	}
	e.kicker = cfg.Kicker
	if e.kicker == nil {
		e.kicker = NopKicker{}
	}
	cap := cfg.EventCapacity
	if cap == 0 {
		cap = 4096
	}
	e.events = NewEventRing(cap)
	e.perCpuStats = make([]PerCpuStats, e.nrCPUs)

	e.clock = cfg.Clock
	if e.clock == nil {
		e.clock = defaultClock
	}
	e.exitReason.Store(ExitNone)
}

// Exit records the exit reason. The host kernel restores its default
// scheduler; every task continues to run (spec §4.10).
func (e *Engine) Exit(reason ExitReason) {
	e.exitReason.Store(reason)
}

// ExitReason returns the recorded exit reason, or ExitNone if running.
func (e *Engine) ExitReason() ExitReason {
	return e.exitReason.Load().(ExitReason)
}

// QueueCount returns nr_dies+1, the dispatch-queue count invariant.
func (e *Engine) QueueCount() int { return e.queues.Count() }

func (e *Engine) now() int64 { return e.clock() }

// TaskFor returns the TaskCtx for pid, allocating one on first touch —
// the Go stand-in for per-task storage, released when the caller drops
// its last reference (ReleaseTask).
func (e *Engine) TaskFor(pid int32) *TaskCtx {
	e.tasksMu.RLock()
	tc, ok := e.tasks[pid]
	e.tasksMu.RUnlock()
	if ok {
		return tc
	}
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	if tc, ok := e.tasks[pid]; ok {
		return tc
	}
	tc = newTaskCtx()
	e.tasks[pid] = tc
	return tc
}

// ReleaseTask drops a task's context, mirroring the per-task storage
// facility releasing it automatically when the task exits.
func (e *Engine) ReleaseTask(pid int32) {
	e.tasksMu.Lock()
	delete(e.tasks, pid)
	e.tasksMu.Unlock()
}

// TaskCount reports the number of live task contexts (nr_tasks in §8's
// invariant), used by tests and /status introspection.
func (e *Engine) TaskCount() int {
	e.tasksMu.RLock()
	defer e.tasksMu.RUnlock()
	return len(e.tasks)
}

// DieLoadSnapshot returns a point-in-time copy of DieLoad[d].
func (e *Engine) DieLoadSnapshot(d int) (active, gaming int64) {
	return atomic.LoadInt64(&e.dieLoad[d].ActiveTasks), atomic.LoadInt64(&e.dieLoad[d].ActiveGamingTasks)
}

// Global returns a consistent snapshot of the global counters, each
// field read with its own atomic load (spec §5: no locks on this path).
func (e *Engine) Global() GlobalStats {
	g := &e.global
	return GlobalStats{
		Enqueued:            atomic.LoadInt64(&g.Enqueued),
		Dispatched:          atomic.LoadInt64(&g.Dispatched),
		DirectDispatched:    atomic.LoadInt64(&g.DirectDispatched),
		Gaming:              atomic.LoadInt64(&g.Gaming),
		Interactive:         atomic.LoadInt64(&g.Interactive),
		CacheDieMigrations:  atomic.LoadInt64(&g.CacheDieMigrations),
		DieLocal:            atomic.LoadInt64(&g.DieLocal),
		DieCross:            atomic.LoadInt64(&g.DieCross),
		SMTIdlePicks:        atomic.LoadInt64(&g.SMTIdlePicks),
		CompactionOverflows: atomic.LoadInt64(&g.CompactionOverflows),
		PreemptKicks:        atomic.LoadInt64(&g.PreemptKicks),
		PcorePlacements:     atomic.LoadInt64(&g.PcorePlacements),
		EcoreOffloads:       atomic.LoadInt64(&g.EcoreOffloads),
		LatencySumNs:        atomic.LoadInt64(&g.LatencySumNs),
		LatencyCountN:       atomic.LoadInt64(&g.LatencyCountN),
		LatencyMaxNs:        atomic.LoadInt64(&g.LatencyMaxNs),
		LatencyMinNs:        atomic.LoadInt64(&g.LatencyMinNs),
		GamingLatencySumNs:  atomic.LoadInt64(&g.GamingLatencySumNs),
		GamingLatencyCount:  atomic.LoadInt64(&g.GamingLatencyCount),
		LateFrames:          atomic.LoadInt64(&g.LateFrames),
		GamingPreemptions:   atomic.LoadInt64(&g.GamingPreemptions),
	}
}

// Tunables exposes the live tunables for the control surface.
func (e *Engine) Tunables() *RuntimeTunables { return e.tunables }

// SetGPUActive records the discovery GPU scanner's latest observation of
// whether a GPU is under active load. Only consulted when the
// gpu_feeder_gated tunable is enabled.
func (e *Engine) SetGPUActive(active bool) {
	v := int32(0)
	if active {
		v = 1
	}
	atomic.StoreInt32(&e.gpuActive, v)
}

func (e *Engine) gpuObservedActive() bool {
	return atomic.LoadInt32(&e.gpuActive) != 0
}

// GPUActive exposes the last GPU-active observation for status
// introspection (`ghostbrew status`, the MCP get_status tool).
func (e *Engine) GPUActive() bool { return e.gpuObservedActive() }

// GamingPids, VmVcpuPids, ContainerPids, CgroupClasses expose the
// supervisor-writable tables (spec §3 ownership: write access only via
// well-typed operations on shared maps).
func (e *Engine) GamingPidsTable() *GamingPids       { return e.gamingPids }
func (e *Engine) VmVcpuPidsTable() *VmVcpuPids       { return e.vmVcpuPids }
func (e *Engine) ContainerPidsTable() *ContainerPids { return e.containerPids }
func (e *Engine) CgroupClassesTable() *CgroupClasses { return e.cgroupClasses }

// Events drains up to max queued scheduling events for the supervisor.
func (e *Engine) Events(max int) []Event { return e.events.Drain(max) }

// EventDrops returns the number of events dropped due to a full ring.
func (e *Engine) EventDrops() int64 { return e.events.Drops() }

func (e *Engine) pushEvent(ev Event) {
	e.events.Push(ev)
}

func (e *Engine) emitGamingDetected(pid int32, proton bool) {
	atomic.AddInt64(&e.global.Gaming, 1)
	v1 := uint64(0)
	if proton {
		v1 = 1
	}
	e.pushEvent(Event{TimestampNs: uint64(e.now()), Type: EventGamingDetected, PID: uint32(pid), V1: v1})
}

// Enqueue implements spec §4.6: compute vtime, pick the target queue,
// and for a gaming task that wants the cache die, attempt at most one
// preempt kick.
func (e *Engine) Enqueue(tc *TaskCtx, pid int32, prevCPU int) {
	nowNs := e.now()
	tc.mu.Lock()
	tc.EnqueueNs = nowNs
	burst := tc.BurstNs
	class := tc.Class
	wantsCacheDie := tc.WantsCacheDie
	isGaming := tc.IsGaming
	tc.mu.Unlock()

	vtime := Vtime(class, burst)
	var q *DispatchQueue
	switch {
	case wantsCacheDie && e.cacheRichDie != NoCPU:
		q = e.queues.Die(e.cacheRichDie)
	case prevCPU != NoCPU:
		q = e.queues.Die(e.dieOf(prevCPU))
	default:
		q = e.queues.Fallback()
	}
	q.Insert(pid, class, vtime)

	atomic.AddInt64(&e.global.Enqueued, 1)
	if !isGaming {
		tc.mu.Lock()
		interactive := tc.IsInteractive
		tc.mu.Unlock()
		if interactive {
			atomic.AddInt64(&e.global.Interactive, 1)
		}
	}

	if isGaming && wantsCacheDie {
		e.MaybePreempt(pid, nowNs)
	}
}

// Dispatch implements spec §4.6's per-CPU pull order: the local die
// queue; if on the cache die, also the cache-die queue; then every
// other die queue; then the fallback queue. Stops at the first hit.
func (e *Engine) Dispatch(cpu int) (*QueuedTask, bool) {
	die := e.dieOf(cpu)
	if t, ok := e.queues.Die(die).MoveToLocal(); ok {
		atomic.AddInt64(&e.global.Dispatched, 1)
		return t, true
	}
	if e.cacheRichDie != NoCPU && die == e.cacheRichDie {
		if t, ok := e.queues.Die(e.cacheRichDie).MoveToLocal(); ok {
			atomic.AddInt64(&e.global.Dispatched, 1)
			return t, true
		}
	}
	for d := 0; d < e.nrDies; d++ {
		if d == die {
			continue
		}
		if t, ok := e.queues.Die(d).MoveToLocal(); ok {
			atomic.AddInt64(&e.global.Dispatched, 1)
			return t, true
		}
	}
	if t, ok := e.queues.Fallback().MoveToLocal(); ok {
		atomic.AddInt64(&e.global.Dispatched, 1)
		return t, true
	}
	return nil, false
}

// Tick is the periodic callback: it samples perf levels (left to the
// caller, which owns the kernel-specific read) and checks for die
// imbalance, emitting a DieImbalance event when one die is
// significantly more loaded than the rest.
func (e *Engine) Tick(nowNs int64) {
	if e.nrDies < 2 {
		return
	}
	var maxActive, total int64
	maxDie := 0
	for d := 0; d < e.nrDies; d++ {
		active := atomic.LoadInt64(&e.dieLoad[d].ActiveTasks)
		total += active
		if active > maxActive {
			maxActive = active
			maxDie = d
		}
	}
	if total == 0 {
		return
	}
	avg := total / int64(e.nrDies)
	if maxActive > avg*2 && maxActive >= 2 {
		e.pushEvent(Event{TimestampNs: uint64(nowNs), Type: EventDieImbalance, Die: uint32(maxDie), V1: uint64(maxActive), V2: uint64(avg)})
	}
}

// DebugDump returns a stable snapshot for the debug-dump hook /
// `ghostbrew status`.
type DebugDump struct {
	NrCPUs, NrDies int
	CacheRichDie   int
	FreqDie        int
	IsHybrid       bool
	QueueCount     int
	TaskCount      int
	Global         GlobalStats
	ExitReason     ExitReason
}

func (e *Engine) Dump() DebugDump {
	return DebugDump{
		NrCPUs:       e.nrCPUs,
		NrDies:       e.nrDies,
		CacheRichDie: e.cacheRichDie,
		FreqDie:      e.freqDie,
		IsHybrid:     e.isHybrid,
		QueueCount:   e.queues.Count(),
		TaskCount:    e.TaskCount(),
		Global:       e.Global(),
		ExitReason:   e.ExitReason(),
	}
}
