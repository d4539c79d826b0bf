package topology

import (
	"testing"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

func TestToSchedConfig_MarksCacheRichDie(t *testing.T) {
	snap := &Snapshot{
		CPUs: []CPU{
			{ID: 0, Die: 0, SMTSibling: -1},
			{ID: 1, Die: 1, SMTSibling: -1},
		},
		NrDies:       2,
		CacheRichDie: 0,
		FreqDie:      -1,
	}

	cfg := snap.ToSchedConfig()
	if cfg.NrDies != 2 {
		t.Fatalf("NrDies = %d, want 2", cfg.NrDies)
	}
	if cfg.CacheRichDie != 0 {
		t.Fatalf("CacheRichDie = %d, want 0", cfg.CacheRichDie)
	}
	if !cfg.CPUs[0].IsCacheRich {
		t.Fatalf("cpu0 on die 0 should be IsCacheRich")
	}
	if cfg.CPUs[1].IsCacheRich {
		t.Fatalf("cpu1 on die 1 should not be IsCacheRich")
	}
}

func TestToSchedConfig_SymmetricPlatformUsesNoCPU(t *testing.T) {
	snap := &Snapshot{
		CPUs:         []CPU{{ID: 0, Die: 0, SMTSibling: -1}},
		NrDies:       1,
		CacheRichDie: -1,
		FreqDie:      -1,
	}

	cfg := snap.ToSchedConfig()
	if cfg.CacheRichDie != sched.NoCPU {
		t.Fatalf("CacheRichDie = %d, want sched.NoCPU", cfg.CacheRichDie)
	}
	if cfg.CPUs[0].IsCacheRich {
		t.Fatalf("symmetric platform must not mark any CPU IsCacheRich")
	}
}

func TestToSchedConfig_SMTSiblingPropagates(t *testing.T) {
	snap := &Snapshot{
		CPUs:         []CPU{{ID: 0, Die: 0, SMTSibling: 4}, {ID: 4, Die: 0, SMTSibling: 0}},
		NrDies:       1,
		CacheRichDie: -1,
		FreqDie:      -1,
	}
	cfg := snap.ToSchedConfig()
	if cfg.CPUs[0].SMTSibling != 4 || cfg.CPUs[1].SMTSibling != 0 {
		t.Fatalf("SMT siblings not propagated: %+v", cfg.CPUs)
	}
}
