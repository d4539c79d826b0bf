package sched

import "testing"

func newTestEngine() *Engine {
	now := int64(1)
	e := NewEngine()
	e.Init(InitConfig{
		CPUs:   []CpuCtx{{CPU: 0, Die: 0, SMTSibling: NoCPU}},
		NrDies: 1,
		Clock:  fakeClock(&now),
	})
	return e
}

func TestClassify_LiteralCompatLayerMatch(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 100, Comm: "wine-preloader"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming", tc.Class)
	}
	if !tc.IsGaming || !tc.IsProton {
		t.Fatalf("IsGaming=%v IsProton=%v, want both true", tc.IsGaming, tc.IsProton)
	}
	if e.Global().Gaming != 1 {
		t.Fatalf("Gaming counter = %d, want 1", e.Global().Gaming)
	}
}

func TestClassify_LauncherIsGamingNotProton(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 101, Comm: "steam"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming", tc.Class)
	}
	if tc.IsProton {
		t.Fatalf("IsProton = true for a native launcher, want false")
	}
}

func TestClassify_PGIDLookup(t *testing.T) {
	e := newTestEngine()
	e.GamingPidsTable().Upsert(42, ClassGaming, true)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 200, PGID: 42, Comm: "unrelated-helper"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming via PGID lookup", tc.Class)
	}
	if !tc.IsProton {
		t.Fatalf("IsProton should be inherited from the PGID table entry")
	}
}

func TestClassify_CgroupLookup(t *testing.T) {
	e := newTestEngine()
	e.CgroupClassesTable().Upsert(7, ClassBatch)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 201, CgroupID: 7, Comm: "worker"})

	if tc.Class != ClassBatch {
		t.Fatalf("Class = %v, want ClassBatch via cgroup lookup", tc.Class)
	}
}

func TestClassify_BoundedAncestorWalk(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{
		PID:       202,
		Comm:      "unrelated-helper",
		Ancestors: []string{"bash", "bash", "steam"},
	})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming via ancestor walk", tc.Class)
	}
}

func TestClassify_AncestorWalkIgnoresBeyondBound(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	ancestors := make([]string, maxAncestorWalk+1)
	for i := range ancestors {
		ancestors[i] = "bash"
	}
	ancestors[maxAncestorWalk] = "steam" // one past the walk bound

	e.Classify(tc, TaskInfo{PID: 203, Comm: "unrelated-helper", Ancestors: ancestors})

	if tc.Class == ClassGaming {
		t.Fatalf("ancestor beyond the bound should not influence classification")
	}
}

func TestClassify_VmVcpuLookupPromotesGaming(t *testing.T) {
	e := newTestEngine()
	e.VmVcpuPidsTable().Upsert(300, ClassVmGaming)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 300, Comm: "CPU 0/KVM"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming (vm-gaming promotes)", tc.Class)
	}
	if !tc.IsGaming {
		t.Fatalf("IsGaming should be true for a promoted vm-gaming vCPU thread")
	}
}

func TestClassify_VmDevLookupKeepsVmDevClass(t *testing.T) {
	e := newTestEngine()
	e.VmVcpuPidsTable().Upsert(301, ClassVmDev)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 301, Comm: "CPU 1/KVM"})

	if tc.Class != ClassVmDev {
		t.Fatalf("Class = %v, want ClassVmDev", tc.Class)
	}
	if tc.IsGaming {
		t.Fatalf("IsGaming should be false for a plain vm-dev vCPU")
	}
}

func TestClassify_ContainerLookup(t *testing.T) {
	e := newTestEngine()
	e.ContainerPidsTable().Upsert(400, ClassContainer)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 400, Comm: "containerd-shim"})

	if tc.Class != ClassContainer {
		t.Fatalf("Class = %v, want ClassContainer", tc.Class)
	}
}

func TestClassify_DefaultsToBatch(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 500, Comm: "gcc"})

	if tc.Class != ClassBatch {
		t.Fatalf("Class = %v, want ClassBatch for an unrecognized task", tc.Class)
	}
}

func TestClassify_GPUFeederPromotesToGaming(t *testing.T) {
	e := newTestEngine()
	e.ContainerPidsTable().Upsert(600, ClassContainer)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 600, Comm: "nvidia-gpu-comp"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming for a GPU feeder thread", tc.Class)
	}
	if !tc.IsGPUFeeder {
		t.Fatalf("IsGPUFeeder should be true")
	}
}

func TestClassify_GPUFeederGatingRequiresObservedActiveGPU(t *testing.T) {
	e := newTestEngine()
	e.ContainerPidsTable().Upsert(601, ClassContainer)
	e.Tunables().Set("gpu_feeder_gated", 1)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 601, Comm: "nvidia-gpu-comp"})

	if tc.Class != ClassContainer {
		t.Fatalf("Class = %v, want ClassContainer (gated and GPU not observed active)", tc.Class)
	}
	if tc.IsGPUFeeder {
		t.Fatalf("IsGPUFeeder should be false when gating suppresses the promotion")
	}
}

func TestClassify_GPUFeederGatingPromotesWhenGPUObservedActive(t *testing.T) {
	e := newTestEngine()
	e.ContainerPidsTable().Upsert(602, ClassContainer)
	e.Tunables().Set("gpu_feeder_gated", 1)
	e.SetGPUActive(true)
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 602, Comm: "nvidia-gpu-comp"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming once the GPU is observed active", tc.Class)
	}
}

// Classification is pure once cached: repeated calls must not re-walk
// the chain or change the result, even if the tables change underneath.
func TestClassify_PurityOnceCached(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 700, Comm: "gcc"})
	if tc.Class != ClassBatch {
		t.Fatalf("first Class = %v, want ClassBatch", tc.Class)
	}

	// Mutate shared state that would change the outcome if re-walked.
	e.GamingPidsTable().Upsert(700, ClassGaming, false)
	e.Classify(tc, TaskInfo{PID: 700, Comm: "gcc"})

	if tc.Class != ClassBatch {
		t.Fatalf("cached Class changed to %v after a second Classify call", tc.Class)
	}
}

func TestClassify_InvalidateForcesRewalk(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()

	e.Classify(tc, TaskInfo{PID: 701, Comm: "gcc"})
	e.GamingPidsTable().Upsert(701, ClassGaming, false)
	tc.Invalidate()
	e.Classify(tc, TaskInfo{PID: 701, PGID: 701, Comm: "gcc"})

	if tc.Class != ClassGaming {
		t.Fatalf("Class after Invalidate+re-classify = %v, want ClassGaming", tc.Class)
	}
}

func TestUpdateInteractivity_BurstBelowThreshold(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()
	tc.BurstNs = 0

	e.UpdateInteractivity(tc)

	if !tc.IsInteractive {
		t.Fatalf("IsInteractive = false for burst_ns=0, want true")
	}
}

func TestUpdateInteractivity_WantsCacheDieRequiresGamingMode(t *testing.T) {
	e := newTestEngine()
	tc := newTaskCtx()
	tc.BurstNs = 0

	e.UpdateInteractivity(tc)
	if tc.WantsCacheDie {
		t.Fatalf("an interactive (non-gaming) task should not want the cache die with gaming_mode off")
	}

	if !e.Tunables().Set("gaming_mode", 1) {
		t.Fatalf("Set(gaming_mode) rejected a recognized key")
	}
	e.UpdateInteractivity(tc)
	if !tc.WantsCacheDie {
		t.Fatalf("an interactive task under gaming_mode should want the cache die")
	}
}
