package orchestrator

import "github.com/ghostkellz/ghostbrew/internal/sched"

// RunMode names one of the three built-in scheduling presets
// (--gaming/--work/--auto), generalized from the teacher's three fixed
// collection-depth profiles (quick/standard/deep) into three tunable
// presets applied to sched.RuntimeTunables instead.
type RunMode string

const (
	ModeGaming RunMode = "gaming"
	ModeWork   RunMode = "work"
	ModeAuto   RunMode = "auto"
)

// ModePreset is a named bundle of tunable values applied atomically at
// mode-switch time, mirroring the teacher's ProfileConfig.
type ModePreset struct {
	BurstThresholdNs int64
	SliceNs          int64
	GamingMode       bool
	WorkMode         bool
	GPUFeederGated   bool
}

// modePresets holds the built-in presets. Gaming shortens the burst
// fuse and slice for latency; work lengthens both for throughput and
// gates GPU-feeder promotion so a background compute process touching
// the GPU isn't mistaken for gaming; auto keeps the engine defaults.
var modePresets = map[RunMode]ModePreset{
	ModeGaming: {
		BurstThresholdNs: 2_000_000,
		SliceNs:          4_000_000,
		GamingMode:       true,
		GPUFeederGated:   false,
	},
	ModeWork: {
		BurstThresholdNs: 6_000_000,
		SliceNs:          8_000_000,
		WorkMode:         true,
		GPUFeederGated:   true,
	},
	ModeAuto: {
		BurstThresholdNs: 3_000_000,
		SliceNs:          5_000_000,
		GPUFeederGated:   false,
	},
}

// ModeByName resolves a --gaming/--work/--auto flag value, falling
// back to auto for anything unrecognized — mirroring the teacher's
// GetProfile fallback to "standard".
func ModeByName(name string) RunMode {
	switch RunMode(name) {
	case ModeGaming, ModeWork, ModeAuto:
		return RunMode(name)
	default:
		return ModeAuto
	}
}

// ModeNames returns the built-in mode names, for CLI help text and the
// capabilities subcommand.
func ModeNames() []string {
	return []string{string(ModeGaming), string(ModeWork), string(ModeAuto)}
}

// Preset returns the named mode's tunable preset, for the `profile`
// CLI subcommand and the MCP list_profiles tool.
func Preset(mode RunMode) ModePreset {
	if p, ok := modePresets[mode]; ok {
		return p
	}
	return modePresets[ModeAuto]
}

// ApplyMode pushes a preset's values onto the live tunables the same
// way a control-file directive would, so switching modes at runtime
// needs no engine restart.
func ApplyMode(t *sched.RuntimeTunables, mode RunMode) {
	preset, ok := modePresets[mode]
	if !ok {
		preset = modePresets[ModeAuto]
	}
	t.Set("burst_threshold_ns", preset.BurstThresholdNs)
	t.Set("slice_ns", preset.SliceNs)
	t.Set("gaming_mode", boolToInt64(preset.GamingMode))
	t.Set("work_mode", boolToInt64(preset.WorkMode))
	t.Set("gpu_feeder_gated", boolToInt64(preset.GPUFeederGated))
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
