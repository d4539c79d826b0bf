// Package discovery implements the five workload scanners the
// supervisor runs on independent tickers to populate the scheduler's
// classification tables: gaming, cgroup, VM vCPU, container, and GPU.
// Process-tree and cgroup-hierarchy walking follow the teacher's
// procfs-walking idiom (iterative, not recursive, bounded ancestor
// chains) from its process and container collectors.
package discovery

import (
	"context"
	"time"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// Config carries every knob a scanner needs, mirroring the teacher's
// CollectConfig (ProcRoot/SysRoot overridable for tests).
type Config struct {
	ProcRoot string
	SysRoot  string

	// GamingExecutables supplements the classification chain's built-in
	// literal/launcher name lists with operator-configured entries
	// (profile records can add per-app executable names).
	GamingExecutables []string

	// CgroupGamingSlices / CgroupBatchSlices are substrings matched
	// against a process's cgroup path to resolve step 3 of the
	// classification chain ahead of time.
	CgroupGamingSlices []string
	CgroupBatchSlices  []string

	// MaxAncestorWalk bounds the ancestor chain built for each process,
	// matching the classification chain's own bound.
	MaxAncestorWalk int
}

// DefaultConfig returns sane defaults, ProcRoot/SysRoot pointing at the
// real filesystem.
func DefaultConfig() Config {
	return Config{
		ProcRoot:        "/proc",
		SysRoot:         "/sys",
		MaxAncestorWalk: 5,
	}
}

// Delta is what one scanner pass contributes to the shared tables. The
// orchestrator applies non-empty fields to the corresponding
// sched.Engine table; a scanner leaves fields it doesn't own as nil.
type Delta struct {
	Scanner string

	GamingPIDs map[int32]GamingHint
	VmVcpuPIDs map[int32]sched.Class
	Container  map[int32]sched.Class
	Cgroup     map[uint64]sched.Class

	GPUActive bool
	GPUReBAR  bool
}

// GamingHint is what the gaming scanner records per matched PGID.
type GamingHint struct {
	Class       sched.Class
	CompatLayer bool
}

// Scanner is the shared interface every discovery source implements,
// modeled directly on the teacher's Collector interface (Name,
// Available, Collect) with Collect renamed to Scan for the domain.
type Scanner interface {
	// Name returns a unique identifier, e.g. "gaming".
	Name() string

	// Available reports whether this scanner can run in the current
	// environment (e.g. the container scanner needs a cgroup mount).
	Available(cfg Config) bool

	// Scan performs one pass and returns the deltas discovered.
	Scan(ctx context.Context, cfg Config) (Delta, error)
}

// TickerConfig controls the independent re-scan cadence per scanner,
// resolving the §9 open question on rescan cadence as a fixed,
// configurable-but-not-adaptive interval.
type TickerConfig struct {
	GamingScanInterval    time.Duration
	CgroupScanInterval    time.Duration
	VMScanInterval        time.Duration
	ContainerScanInterval time.Duration
	GPUScanInterval       time.Duration
}

// DefaultTickerConfig matches the source's lack of adaptive policy:
// fixed per-scanner intervals (gaming 2s; cgroup, VM and container 5s;
// GPU 1s) unless the operator overrides one via the config file.
func DefaultTickerConfig() TickerConfig {
	const d = 2 * time.Second
	return TickerConfig{
		GamingScanInterval:    d,
		CgroupScanInterval:    5 * time.Second,
		VMScanInterval:        5 * time.Second,
		ContainerScanInterval: 5 * time.Second,
		GPUScanInterval:       1 * time.Second,
	}
}
