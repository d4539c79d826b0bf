package orchestrator

import (
	"testing"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

func TestModeByName_FallsBackToAuto(t *testing.T) {
	if ModeByName("gaming") != ModeGaming {
		t.Fatalf("expected gaming to resolve to ModeGaming")
	}
	if ModeByName("bogus") != ModeAuto {
		t.Fatalf("expected unrecognized mode to fall back to auto")
	}
}

func TestApplyMode_GamingShortensBurstAndSlice(t *testing.T) {
	tunables := sched.DefaultTunables()
	ApplyMode(tunables, ModeGaming)

	if tunables.BurstThresholdNs != 2_000_000 {
		t.Fatalf("BurstThresholdNs = %d, want 2000000", tunables.BurstThresholdNs)
	}
	if tunables.SliceNs != 4_000_000 {
		t.Fatalf("SliceNs = %d, want 4000000", tunables.SliceNs)
	}
	if tunables.GamingMode == 0 {
		t.Fatalf("expected GamingMode to be enabled")
	}
	if tunables.GPUFeederGated != 0 {
		t.Fatalf("gaming mode should not gate GPU-feeder promotion")
	}
}

func TestApplyMode_WorkGatesGPUFeeder(t *testing.T) {
	tunables := sched.DefaultTunables()
	ApplyMode(tunables, ModeWork)

	if tunables.GPUFeederGated == 0 {
		t.Fatalf("expected work mode to gate GPU-feeder promotion")
	}
	if tunables.WorkMode == 0 {
		t.Fatalf("expected WorkMode to be enabled")
	}
}

func TestApplyMode_UnknownFallsBackToAutoPreset(t *testing.T) {
	tunables := sched.DefaultTunables()
	ApplyMode(tunables, RunMode("nonsense"))

	want := modePresets[ModeAuto]
	if tunables.BurstThresholdNs != want.BurstThresholdNs {
		t.Fatalf("expected auto preset values for unknown mode")
	}
}

func TestModeNames(t *testing.T) {
	names := ModeNames()
	if len(names) != 3 {
		t.Fatalf("expected 3 built-in mode names, got %d", len(names))
	}
}
