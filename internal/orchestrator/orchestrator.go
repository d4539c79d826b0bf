// Package orchestrator runs the userspace supervisor: it enumerates
// topology once at startup, runs the five discovery scanners on
// independent tickers, applies their deltas to the scheduling engine's
// shared tables, and periodically calls the engine's Tick hook.
//
// This is the slow path the architecture describes: nothing here sits
// on a hot-path callback, so it is free to allocate, lock, and block —
// the same division of labor as the teacher's orchestrator running
// collectors in parallel and folding their results into one report.
package orchestrator

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ghostkellz/ghostbrew/internal/discovery"
	"github.com/ghostkellz/ghostbrew/internal/sched"
	"github.com/ghostkellz/ghostbrew/internal/topology"
)

// Config carries every knob the supervisor needs at startup, mirroring
// the teacher's CollectConfig (ProcRoot/SysRoot overridable for tests).
type Config struct {
	Mode RunMode

	ProcRoot   string
	SysRoot    string
	CpuSysRoot string // defaults to SysRoot+"/devices/system/cpu" when empty

	GamingExecutables  []string
	CgroupGamingSlices []string
	CgroupBatchSlices  []string

	ECoreOffload sched.ECoreOffload

	Tickers   discovery.TickerConfig
	TickEvery time.Duration // engine.Tick cadence; 0 uses 1s
}

// DefaultConfig returns sane defaults pointed at the real filesystem.
func DefaultConfig() Config {
	return Config{
		Mode:      ModeAuto,
		ProcRoot:  "/proc",
		SysRoot:   "/sys",
		Tickers:   discovery.DefaultTickerConfig(),
		TickEvery: time.Second,
	}
}

// Supervisor ties topology enumeration, the five discovery scanners,
// and the scheduling engine together into the slow-path loop.
type Supervisor struct {
	cfg      Config
	engine   *sched.Engine
	enum     *topology.Enumerator
	scanners []discovery.Scanner
	snapshot *topology.Snapshot
}

// New builds a Supervisor for the given engine (uninitialized; call
// Bootstrap before Run).
func New(cfg Config, engine *sched.Engine) *Supervisor {
	cpuSysRoot := cfg.CpuSysRoot
	if cpuSysRoot == "" {
		cpuSysRoot = cfg.SysRoot + "/devices/system/cpu"
	}
	return &Supervisor{
		cfg:    cfg,
		engine: engine,
		enum:   &topology.Enumerator{CpuSysRoot: cpuSysRoot},
		scanners: []discovery.Scanner{
			discovery.NewGamingScanner(),
			discovery.NewCgroupScanner(),
			discovery.NewVMScanner(),
			discovery.NewContainerScanner(),
			discovery.NewGPUScanner(),
		},
	}
}

// Bootstrap enumerates the host topology, initializes the engine, and
// applies the configured run mode's tunable preset.
func (s *Supervisor) Bootstrap() error {
	snap, err := s.enum.Enumerate()
	if err != nil {
		return err
	}
	s.snapshot = snap
	initCfg := snap.ToSchedConfig()
	initCfg.ECoreOffload = s.cfg.ECoreOffload
	s.engine.Init(initCfg)
	ApplyMode(s.engine.Tunables(), s.cfg.Mode)

	log.Printf("[orchestrator] topology: cpus=%d dies=%d hybrid=%v cache_rich_die=%d runtime=%s mode=%s",
		len(snap.CPUs), snap.NrDies, snap.IsHybrid, snap.CacheRichDie,
		discovery.DetectRuntime(s.cfg.ProcRoot), s.cfg.Mode)
	return nil
}

// Snapshot returns the topology snapshot captured at Bootstrap.
func (s *Supervisor) Snapshot() *topology.Snapshot { return s.snapshot }

// Run starts one goroutine per available scanner on its configured
// ticker plus the engine's own Tick cadence, and blocks until ctx is
// canceled or a SIGINT/SIGTERM arrives.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[orchestrator] received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	var wg sync.WaitGroup
	for _, sc := range s.scanners {
		sc := sc
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runScanner(ctx, sc, s.intervalFor(sc.Name()))
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runTick(ctx, s.tickInterval())
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (s *Supervisor) tickInterval() time.Duration {
	if s.cfg.TickEvery > 0 {
		return s.cfg.TickEvery
	}
	return time.Second
}

func (s *Supervisor) runTick(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Tick(time.Now().UnixNano())
		}
	}
}

func (s *Supervisor) intervalFor(name string) time.Duration {
	switch name {
	case "gaming":
		return nonZero(s.cfg.Tickers.GamingScanInterval, 2*time.Second)
	case "cgroup":
		return nonZero(s.cfg.Tickers.CgroupScanInterval, 5*time.Second)
	case "vm":
		return nonZero(s.cfg.Tickers.VMScanInterval, 5*time.Second)
	case "container":
		return nonZero(s.cfg.Tickers.ContainerScanInterval, 5*time.Second)
	case "gpu":
		return nonZero(s.cfg.Tickers.GPUScanInterval, time.Second)
	default:
		return 5 * time.Second
	}
}

func nonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func (s *Supervisor) scanConfig() discovery.Config {
	return discovery.Config{
		ProcRoot:           s.cfg.ProcRoot,
		SysRoot:            s.cfg.SysRoot,
		GamingExecutables:  s.cfg.GamingExecutables,
		CgroupGamingSlices: s.cfg.CgroupGamingSlices,
		CgroupBatchSlices:  s.cfg.CgroupBatchSlices,
		MaxAncestorWalk:    5,
	}
}

func (s *Supervisor) runScanner(ctx context.Context, sc discovery.Scanner, interval time.Duration) {
	cfg := s.scanConfig()
	if !sc.Available(cfg) {
		log.Printf("[orchestrator] [%s] unavailable, skipping", sc.Name())
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.scanOnce(ctx, sc, cfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx, sc, cfg)
		}
	}
}

func (s *Supervisor) scanOnce(ctx context.Context, sc discovery.Scanner, cfg discovery.Config) {
	delta, err := sc.Scan(ctx, cfg)
	if err != nil {
		log.Printf("[orchestrator] [%s] scan error: %v", sc.Name(), err)
		return
	}
	s.Apply(delta)
}

// Apply merges one scanner's delta into the engine's shared tables —
// the only place supervisor-side writes touch sched's tables (spec §3
// ownership split between the hot path and the slow path).
func (s *Supervisor) Apply(delta discovery.Delta) {
	for pgid, hint := range delta.GamingPIDs {
		s.engine.GamingPidsTable().Upsert(pgid, hint.Class, hint.CompatLayer)
	}
	for pid, class := range delta.VmVcpuPIDs {
		s.engine.VmVcpuPidsTable().Upsert(pid, class)
	}
	for pid, class := range delta.Container {
		s.engine.ContainerPidsTable().Upsert(pid, class)
	}
	for cg, class := range delta.Cgroup {
		s.engine.CgroupClassesTable().Upsert(cg, class)
	}
	if delta.Scanner == "gpu" {
		s.engine.SetGPUActive(delta.GPUActive)
	}
}
