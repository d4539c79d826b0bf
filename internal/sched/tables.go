// Package sched implements the scheduling engine: the classification
// chain, burst tracker, CPU selector, dispatch queues, preemption
// search, and the shared tables those pieces read and write.
//
// Everything in this package is written to run the way a host-kernel
// scheduler callback would: bounded loops and tables pre-sized by Init.
// It is not allocation-free: CPU selection builds a small candidate
// slice on every call. It is exercised directly by
// internal/orchestrator in "shadow" mode, and is the logic a native
// attach (internal/ebpf) would otherwise run inside the kernel.
package sched

import (
	"sync"
	"sync/atomic"
)

// Class is a task's scheduling classification.
type Class int32

const (
	ClassUnknown Class = iota
	ClassGaming
	ClassInteractive
	ClassBatch
	ClassAI
	ClassVmDev
	ClassVmGaming
	ClassContainer
)

func (c Class) String() string {
	switch c {
	case ClassGaming:
		return "gaming"
	case ClassInteractive:
		return "interactive"
	case ClassBatch:
		return "batch"
	case ClassAI:
		return "ai"
	case ClassVmDev:
		return "vm-dev"
	case ClassVmGaming:
		return "vm-gaming"
	case ClassContainer:
		return "container"
	default:
		return "unknown"
	}
}

// Priority orders classes for preemption comparisons: lower is more
// important. Gaming always preempts everything else; batch is the
// first victim.
func (c Class) Priority() int {
	switch c {
	case ClassGaming, ClassVmGaming:
		return 0
	case ClassInteractive:
		return 1
	case ClassVmDev, ClassContainer:
		return 2
	case ClassAI:
		return 3
	case ClassBatch:
		return 4
	default:
		return 5
	}
}

// NoCPU marks the absence of a CPU/die/task id.
const NoCPU = -1

// CpuCtx holds per-CPU static facts populated once at Init by the
// supervisor and read on every hot-path decision.
type CpuCtx struct {
	CPU               int
	Die               int
	Cluster           int
	NUMANode          int
	SMTSibling        int // NoCPU if none
	IsCacheRich       bool
	IsPerformanceCore bool
	IsTurboRanked     bool
}

// DieLoad holds the running counters for one die.
type DieLoad struct {
	ActiveTasks       int64
	ActiveGamingTasks int64
}

func (d *DieLoad) incr(gaming bool) {
	atomic.AddInt64(&d.ActiveTasks, 1)
	if gaming {
		atomic.AddInt64(&d.ActiveGamingTasks, 1)
	}
}

func (d *DieLoad) decr(gaming bool) {
	if atomic.LoadInt64(&d.ActiveTasks) > 0 {
		atomic.AddInt64(&d.ActiveTasks, -1)
	}
	if gaming && atomic.LoadInt64(&d.ActiveGamingTasks) > 0 {
		atomic.AddInt64(&d.ActiveGamingTasks, -1)
	}
}

// CpuRunState records what is currently running on a CPU.
type CpuRunState struct {
	mu        sync.RWMutex
	Valid     bool
	Class     Class
	PID       int32
	StartNs   int64
}

func (s *CpuRunState) set(class Class, pid int32, startNs int64) {
	s.mu.Lock()
	s.Valid = true
	s.Class = class
	s.PID = pid
	s.StartNs = startNs
	s.mu.Unlock()
}

func (s *CpuRunState) clear() {
	s.mu.Lock()
	s.Valid = false
	s.mu.Unlock()
}

// Snapshot returns a copy safe to read from any CPU.
func (s *CpuRunState) Snapshot() (valid bool, class Class, pid int32, startNs int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Valid, s.Class, s.PID, s.StartNs
}

// CpuPerf holds the periodic perf-level sample for a CPU.
type CpuPerf struct {
	Level       int32 // 0-1024
	EMA         int32
	LastIdleNs  int64
}

// TaskCtx is the cached classification and burst state for one task.
type TaskCtx struct {
	mu                sync.Mutex
	BurstNs           int64
	LastRunNs         int64
	EnqueueNs         int64
	Class             Class
	IsGaming          bool
	IsInteractive     bool
	IsProton          bool
	IsGPUFeeder       bool
	WantsCacheDie     bool
	ClassificationOK  bool
	ClassificationNs  int64
	LastDie           int
}

func newTaskCtx() *TaskCtx {
	return &TaskCtx{LastDie: NoCPU}
}

// RuntimeTunables are the live, control-file-writable knobs.
type RuntimeTunables struct {
	BurstThresholdNs int64 // atomic
	SliceNs          int64 // atomic
	GamingMode       int32 // atomic bool
	WorkMode         int32 // atomic bool
	GPUFeederGated   int32 // atomic bool; resolves the §9 open question
}

// DefaultTunables returns the documented defaults.
func DefaultTunables() *RuntimeTunables {
	t := &RuntimeTunables{}
	atomic.StoreInt64(&t.BurstThresholdNs, 3_000_000) // 3ms
	atomic.StoreInt64(&t.SliceNs, 5_000_000)           // 5ms
	return t
}

func (t *RuntimeTunables) burstThreshold() int64 { return atomic.LoadInt64(&t.BurstThresholdNs) }
func (t *RuntimeTunables) slice() int64           { return atomic.LoadInt64(&t.SliceNs) }
func (t *RuntimeTunables) gamingMode() bool        { return atomic.LoadInt32(&t.GamingMode) != 0 }
func (t *RuntimeTunables) workMode() bool          { return atomic.LoadInt32(&t.WorkMode) != 0 }

// GPUFeederGatedEnabled reports whether GPU-feeder-is-gaming promotion
// requires the GPU to be observed active (see internal/discovery/gpu.go).
func (t *RuntimeTunables) GPUFeederGatedEnabled() bool {
	return atomic.LoadInt32(&t.GPUFeederGated) != 0
}

// Set applies one control-file directive. Returns false for an
// unrecognized key so the caller can log-and-ignore per spec.
func (t *RuntimeTunables) Set(key string, value int64) bool {
	switch key {
	case "burst_threshold_ns":
		atomic.StoreInt64(&t.BurstThresholdNs, value)
	case "slice_ns":
		atomic.StoreInt64(&t.SliceNs, value)
	case "gaming_mode":
		atomic.StoreInt32(&t.GamingMode, boolToInt32(value != 0))
	case "work_mode":
		atomic.StoreInt32(&t.WorkMode, boolToInt32(value != 0))
	case "gpu_feeder_gated":
		atomic.StoreInt32(&t.GPUFeederGated, boolToInt32(value != 0))
	default:
		return false
	}
	return true
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// PerCpuStats are lock-free counters maintained per CPU by the hot path.
type PerCpuStats struct {
	Enqueued       int64
	Dispatched     int64
	Gaming         int64
	LatencySumNs   int64
	LatencyCount   int64
	LatencyMaxNs   int64
	IdleNs         int64
	BusyNs         int64
}

// GlobalStats are the cross-CPU atomics aggregated by the supervisor.
type GlobalStats struct {
	Enqueued            int64
	Dispatched          int64
	DirectDispatched    int64
	Gaming              int64
	Interactive         int64
	CacheDieMigrations  int64
	DieLocal            int64
	DieCross            int64
	SMTIdlePicks        int64
	CompactionOverflows int64
	PreemptKicks        int64
	PcorePlacements     int64
	EcoreOffloads       int64
	LatencySumNs        int64
	LatencyCountN       int64
	LatencyMaxNs        int64
	LatencyMinNs        int64
	GamingLatencySumNs  int64
	GamingLatencyCount  int64
	LateFrames          int64 // latency > 1ms
	GamingPreemptions   int64
}

func (g *GlobalStats) creditLatency(ns int64, gaming bool) {
	atomic.AddInt64(&g.LatencySumNs, ns)
	atomic.AddInt64(&g.LatencyCountN, 1)
	atomicMaxInt64(&g.LatencyMaxNs, ns)
	atomicMinInt64(&g.LatencyMinNs, ns)
	if ns > 1_000_000 {
		atomic.AddInt64(&g.LateFrames, 1)
	}
	if gaming {
		atomic.AddInt64(&g.GamingLatencySumNs, ns)
		atomic.AddInt64(&g.GamingLatencyCount, 1)
	}
}

func atomicMaxInt64(addr *int64, v int64) {
	for {
		old := atomic.LoadInt64(addr)
		if v <= old {
			return
		}
		if atomic.CompareAndSwapInt64(addr, old, v) {
			return
		}
	}
}

func atomicMinInt64(addr *int64, v int64) {
	for {
		old := atomic.LoadInt64(addr)
		if old != 0 && v >= old {
			return
		}
		if atomic.CompareAndSwapInt64(addr, old, v) {
			return
		}
	}
}

// PrefcoreRank is the vendor preferred-core ranking; higher is better.
type PrefcoreRank map[int]int

// GamingPids, VmVcpuPids, ContainerPids, CgroupClasses are the
// supervisor-populated lookup tables the classification chain reads.
type GamingPids struct {
	mu   sync.RWMutex
	pids map[int32]gamingEntry
}

type gamingEntry struct {
	class      Class
	compatLayer bool
}

func newGamingPids() *GamingPids {
	return &GamingPids{pids: make(map[int32]gamingEntry)}
}

// Upsert inserts or replaces a PID's gaming classification.
func (g *GamingPids) Upsert(pid int32, class Class, compatLayer bool) {
	g.mu.Lock()
	g.pids[pid] = gamingEntry{class: class, compatLayer: compatLayer}
	g.mu.Unlock()
}

// Delete removes a PID (process exited).
func (g *GamingPids) Delete(pid int32) {
	g.mu.Lock()
	delete(g.pids, pid)
	g.mu.Unlock()
}

// Lookup returns the recorded class for pid, if any.
func (g *GamingPids) Lookup(pid int32) (Class, bool, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.pids[pid]
	return e.class, e.compatLayer, ok
}

// Len reports the number of tracked PIDs (used by tests/metrics).
func (g *GamingPids) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.pids)
}

// VmVcpuPids maps a vCPU thread id to the VM's class.
type VmVcpuPids struct {
	mu   sync.RWMutex
	pids map[int32]Class
}

func newVmVcpuPids() *VmVcpuPids { return &VmVcpuPids{pids: make(map[int32]Class)} }

func (v *VmVcpuPids) Upsert(pid int32, class Class) {
	v.mu.Lock()
	v.pids[pid] = class
	v.mu.Unlock()
}

func (v *VmVcpuPids) Delete(pid int32) {
	v.mu.Lock()
	delete(v.pids, pid)
	v.mu.Unlock()
}

func (v *VmVcpuPids) Lookup(pid int32) (Class, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	c, ok := v.pids[pid]
	return c, ok
}

// ContainerPids maps a container member PID to its class (Container or AI).
type ContainerPids struct {
	mu   sync.RWMutex
	pids map[int32]Class
}

func newContainerPids() *ContainerPids { return &ContainerPids{pids: make(map[int32]Class)} }

func (c *ContainerPids) Upsert(pid int32, class Class) {
	c.mu.Lock()
	c.pids[pid] = class
	c.mu.Unlock()
}

func (c *ContainerPids) Delete(pid int32) {
	c.mu.Lock()
	delete(c.pids, pid)
	c.mu.Unlock()
}

func (c *ContainerPids) Lookup(pid int32) (Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.pids[pid]
	return cl, ok
}

// CgroupClasses maps a cgroup id to its class.
type CgroupClasses struct {
	mu      sync.RWMutex
	classes map[uint64]Class
}

func newCgroupClasses() *CgroupClasses { return &CgroupClasses{classes: make(map[uint64]Class)} }

func (c *CgroupClasses) Upsert(cgroupID uint64, class Class) {
	c.mu.Lock()
	c.classes[cgroupID] = class
	c.mu.Unlock()
}

func (c *CgroupClasses) Delete(cgroupID uint64) {
	c.mu.Lock()
	delete(c.classes, cgroupID)
	c.mu.Unlock()
}

func (c *CgroupClasses) Lookup(cgroupID uint64) (Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.classes[cgroupID]
	return cl, ok
}
