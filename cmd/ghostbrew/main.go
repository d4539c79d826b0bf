// ghostbrew — pluggable CPU scheduler for x86 desktops and workstations.
//
// Runs a userspace supervisor that enumerates host topology, classifies
// tasks via procfs/sysfs/cgroup discovery, and drives either a native
// sched_ext BPF program or an in-process shadow engine over the same
// tables.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghostkellz/ghostbrew/internal/control"
	"github.com/ghostkellz/ghostbrew/internal/ebpf"
	"github.com/ghostkellz/ghostbrew/internal/ghosterr"
	"github.com/ghostkellz/ghostbrew/internal/mcp"
	"github.com/ghostkellz/ghostbrew/internal/metrics"
	"github.com/ghostkellz/ghostbrew/internal/orchestrator"
	"github.com/ghostkellz/ghostbrew/internal/profile"
	"github.com/ghostkellz/ghostbrew/internal/sched"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ghostbrew",
		Short: "Pluggable CPU scheduler for gaming and workstation loads",
		Long: `ghostbrew — single Go binary supervising a sched_ext scheduler.

Classifies tasks into gaming/interactive/batch classes via a layered
lookup chain (literal command match, PGID, cgroup, bounded ancestor
walk, VM vCPU, container) and steers dispatch accordingly.

Native tier: sched_ext struct_ops BPF program, attached via cilium/ebpf
  (needs BTF + CO-RE + kernel >= 6).
Shadow tier: same tables and classification logic, run in-process when
  native attach isn't available.`,
		Version: version,
	}

	var (
		runMode          string
		runProcRoot      string
		runSysRoot       string
		runGamingExes    []string
		runBurstThreshNs int64
		runSliceNs       int64
		runEcoreOffload  string
		runStats         bool
		runStatsInterval int
		runBenchmark     string
		runVerbose       bool
		runDebug         bool
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the supervisor (blocks until SIGINT/SIGTERM)",
		Long:  "Enumerate topology, attempt native sched_ext attach, and run discovery scanners until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{
				mode:          runMode,
				procRoot:      runProcRoot,
				sysRoot:       runSysRoot,
				gamingExes:    runGamingExes,
				burstThreshNs: runBurstThreshNs,
				sliceNs:       runSliceNs,
				ecoreOffload:  runEcoreOffload,
				stats:         runStats,
				statsInterval: runStatsInterval,
				benchmarkPath: runBenchmark,
				verbose:       runVerbose,
				debug:         runDebug,
			}
			return runSupervisor(cmd.Context(), opts)
		},
	}
	var runModeGaming, runModeWork, runModeAuto bool
	runCmd.Flags().StringVar(&runMode, "mode", "", "Run mode: gaming, work, auto (overrides --gaming/--work/--auto)")
	runCmd.Flags().BoolVar(&runModeGaming, "gaming", false, "Shorthand for --mode gaming")
	runCmd.Flags().BoolVar(&runModeWork, "work", false, "Shorthand for --mode work")
	runCmd.Flags().BoolVar(&runModeAuto, "auto", false, "Shorthand for --mode auto (default)")
	runCmd.Flags().StringVar(&runProcRoot, "proc-root", "", "procfs root, default /proc (override for testing)")
	runCmd.Flags().StringVar(&runSysRoot, "sys-root", "", "sysfs root, default /sys (override for testing)")
	runCmd.Flags().StringSliceVar(&runGamingExes, "gaming-exe", nil, "Additional executable names to classify as gaming")
	runCmd.Flags().Int64Var(&runBurstThreshNs, "burst-threshold", 0, "Burst window threshold in nanoseconds (0 keeps the mode preset)")
	runCmd.Flags().Int64Var(&runSliceNs, "slice-ns", 0, "Scheduling slice in nanoseconds (0 keeps the mode preset)")
	runCmd.Flags().StringVar(&runEcoreOffload, "ecore-offload", "conservative", "E-core offload policy: disabled, conservative, aggressive")
	runCmd.Flags().BoolVar(&runStats, "stats", false, "Print aggregated stats periodically to stderr")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 1, "Stats aggregation interval in seconds")
	runCmd.Flags().StringVar(&runBenchmark, "benchmark", "", "Write aggregated stats as CSV to this path on shutdown")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Log BTF/CO-RE detection detail")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug-level logging")

	// --gaming/--work/--auto are recognized per spec §6 but --mode is the
	// canonical form; resolve the shorthand flags against it at parse time.
	// An explicit --mode wins over any shorthand flag.
	runCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if f := cmd.Flags().Lookup("mode"); f != nil && f.Changed {
			return nil
		}
		for _, name := range []string{"gaming", "work", "auto"} {
			if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
				runMode = name
			}
		}
		return nil
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show topology, attach tier, and engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(runVerbose)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the global scheduling counters as key=value lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}

	profileCmd := &cobra.Command{
		Use:   "profile [mode]",
		Short: "List the built-in run-mode presets, or show one by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileCmd(args)
		},
	}

	capabilitiesCmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show BTF/CO-RE detection and the resulting attach tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapabilities()
		},
	}

	completionsCmd := &cobra.Command{
		Use:                   "completions [bash|zsh|fish|powershell]",
		Short:                 "Generate shell completion scripts",
		Args:                  cobra.ExactArgs(1),
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletion(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server commands",
	}
	mcpServeCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP introspection tools over stdio",
		Long:  "Expose get_status, get_metrics, explain_classification, and list_profiles over stdio for AI-assisted tuning.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServe(cmd.Context(), runMode, runProcRoot, runSysRoot)
		},
	}
	mcpCmd.AddCommand(mcpServeCmd)

	rootCmd.AddCommand(runCmd, statusCmd, statsCmd, profileCmd, capabilitiesCmd, completionsCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to the distinct per-failure-class
// exit code spec §6/§7 call for, falling back to 1 for anything not
// tagged by ghosterr.
func exitCodeFor(err error) int {
	if tagged := ghosterr.As(err); tagged != nil && tagged.Kind.Fatal() {
		return tagged.Kind.ExitCode()
	}
	return 1
}

type runOptions struct {
	mode          string
	procRoot      string
	sysRoot       string
	gamingExes    []string
	burstThreshNs int64
	sliceNs       int64
	ecoreOffload  string
	stats         bool
	statsInterval int
	benchmarkPath string
	verbose       bool
	debug         bool
}

func parseEcoreOffload(s string) (sched.ECoreOffload, error) {
	switch s {
	case "disabled", "":
		return sched.ECoreOffloadDisabled, nil
	case "conservative":
		return sched.ECoreOffloadConservative, nil
	case "aggressive":
		return sched.ECoreOffloadAggressive, nil
	default:
		return sched.ECoreOffloadDisabled, fmt.Errorf("unknown --ecore-offload value: %q", s)
	}
}

// buildSupervisorConfig resolves CLI > config-file > built-in-default
// precedence (spec §4.9 point 3) and returns a ready-to-bootstrap
// orchestrator.Config plus the loaded profile registry.
func buildSupervisorConfig(opts runOptions) (orchestrator.Config, *profile.Registry, control.Resolved, error) {
	fileCfg, err := control.LoadConfig()
	if err != nil {
		return orchestrator.Config{}, nil, control.Resolved{}, ghosterr.New(ghosterr.InvalidDirective, "config file", err)
	}

	resolved := control.Resolve(control.CLIOverrides{
		Mode:              opts.mode,
		ProcRoot:          opts.procRoot,
		SysRoot:           opts.sysRoot,
		GamingExecutables: opts.gamingExes,
	}, fileCfg)

	offload, err := parseEcoreOffload(opts.ecoreOffload)
	if err != nil {
		return orchestrator.Config{}, nil, control.Resolved{}, ghosterr.New(ghosterr.InvalidDirective, "--ecore-offload", err)
	}

	cfg := orchestrator.DefaultConfig()
	cfg.Mode = orchestrator.ModeByName(resolved.Mode)
	cfg.ProcRoot = resolved.ProcRoot
	cfg.SysRoot = resolved.SysRoot
	cfg.GamingExecutables = resolved.GamingExecutables
	cfg.CgroupGamingSlices = resolved.CgroupGamingSlices
	cfg.CgroupBatchSlices = resolved.CgroupBatchSlices
	cfg.ECoreOffload = offload

	registry := profile.NewRegistry(profile.FromConfig(fileCfg.Profiles))
	return cfg, registry, resolved, nil
}

func runSupervisor(ctx context.Context, opts runOptions) error {
	if opts.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, registry, resolved, err := buildSupervisorConfig(opts)
	if err != nil {
		return err
	}
	log.Printf("[ghostbrew] loaded %d profile record(s)", len(registry.Names()))

	engine := sched.NewEngine()
	sup := orchestrator.New(cfg, engine)
	if err := sup.Bootstrap(); err != nil {
		return ghosterr.New(ghosterr.Unsupported, "topology enumeration", err)
	}

	if opts.burstThreshNs > 0 {
		engine.Tunables().Set("burst_threshold_ns", opts.burstThreshNs)
	}
	if opts.sliceNs > 0 {
		engine.Tunables().Set("slice_ns", opts.sliceNs)
	}

	loader := ebpf.NewLoader(opts.verbose)
	if loader.CanLoad() {
		spec := ebpf.NativePrograms[0]
		loaded, err := loader.TryLoad(ctx, &spec)
		if err != nil {
			log.Printf("[ghostbrew] native attach failed, falling back to shadow tier: %v", err)
		} else {
			log.Printf("[ghostbrew] attached native sched_ext program %q", spec.Name)
			defer loaded.Close()
		}
	} else {
		log.Printf("[ghostbrew] native sched_ext unavailable (BTF/CO-RE/kernel), running shadow tier")
	}

	watcher, err := control.NewFile(resolved.ControlFile, engine.Tunables())
	if err != nil {
		log.Printf("[ghostbrew] control file watch disabled: %v", err)
	} else {
		defer watcher.Close()
		if err := watcher.ApplyOnce(); err != nil {
			log.Printf("[ghostbrew] control file initial read failed: %v", err)
		}
		stop := make(chan struct{})
		defer close(stop)
		go watcher.Watch(stop)
	}

	agg := metrics.NewAggregator(engine, 0)
	if opts.stats || opts.benchmarkPath != "" {
		interval := time.Duration(opts.statsInterval) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		go agg.Run(ctx, interval)
	}
	if opts.stats {
		go func() {
			ticker := time.NewTicker(time.Duration(opts.statsInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rows := agg.Rows()
					if len(rows) == 0 {
						continue
					}
					last := rows[len(rows)-1]
					log.Printf("[stats] enqueued=%d dispatched=%d gaming=%d latency_avg_us=%.1f",
						last.Enqueued, last.Dispatched, last.Gaming, last.LatencyAvgUs)
				}
			}
		}()
	}

	log.Printf("[ghostbrew] supervisor running, mode=%s ecore_offload=%s", cfg.Mode, opts.ecoreOffload)
	runErr := sup.Run(ctx)

	if opts.benchmarkPath != "" {
		if err := writeBenchmarkCSV(opts.benchmarkPath, agg); err != nil {
			log.Printf("[ghostbrew] benchmark CSV export failed: %v", err)
		}
	}

	if reason := engine.ExitReason(); reason == sched.ExitWatchdogTrip {
		return ghosterr.New(ghosterr.WatchdogTrip, "engine", nil)
	}
	return runErr
}

func writeBenchmarkCSV(path string, agg *metrics.Aggregator) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return metrics.WriteCSV(f, agg.Rows())
}

// bootstrap builds an engine + supervisor pair and brings the engine up
// to the point where topology and tunables are live, without starting
// the scanner/tick goroutines. Used by status/stats/profile/mcp, which
// need a populated engine but not a running supervisor loop.
func bootstrap(mode, procRoot, sysRoot string) (*sched.Engine, *orchestrator.Supervisor, error) {
	engine := sched.NewEngine()
	cfg := orchestrator.DefaultConfig()
	cfg.Mode = orchestrator.ModeByName(mode)
	if procRoot != "" {
		cfg.ProcRoot = procRoot
	}
	if sysRoot != "" {
		cfg.SysRoot = sysRoot
	}

	sup := orchestrator.New(cfg, engine)
	if err := sup.Bootstrap(); err != nil {
		return nil, nil, ghosterr.New(ghosterr.Unsupported, "topology enumeration", err)
	}
	return engine, sup, nil
}

func runStatus(verboseBPF bool) error {
	engine, sup, err := bootstrap("auto", "", "")
	if err != nil {
		return err
	}
	dump := engine.Dump()
	snap := sup.Snapshot()

	loader := ebpf.NewLoader(verboseBPF)
	tier := ebpf.TierShadow
	if loader.CanLoad() {
		tier = ebpf.TierNative
	}

	fmt.Printf("cpus=%d dies=%d hybrid=%v cache_rich_die=%d freq_die=%d\n",
		dump.NrCPUs, dump.NrDies, dump.IsHybrid, dump.CacheRichDie, dump.FreqDie)
	fmt.Printf("queues=%d tasks=%d exit_reason=%q\n", dump.QueueCount, dump.TaskCount, dump.ExitReason)
	fmt.Printf("attach_tier=%s kernel=%s btf=%v co_re=%v\n",
		tier, loader.BTFInfo().KernelVersion, loader.BTFInfo().Available, loader.BTFInfo().CORESupport)
	if snap != nil {
		nodes := make(map[int]bool)
		for _, c := range snap.CPUs {
			nodes[c.NUMANode] = true
		}
		fmt.Printf("numa_nodes_present=%d\n", len(nodes))
	}
	return nil
}

func runStats() error {
	engine, _, err := bootstrap("auto", "", "")
	if err != nil {
		return err
	}
	global := engine.Global()
	fmt.Printf("enqueued=%d dispatched=%d direct_dispatched=%d gaming=%d interactive=%d\n",
		global.Enqueued, global.Dispatched, global.DirectDispatched, global.Gaming, global.Interactive)
	fmt.Printf("die_local=%d die_cross=%d cache_die_migrations=%d smt_idle_picks=%d\n",
		global.DieLocal, global.DieCross, global.CacheDieMigrations, global.SMTIdlePicks)
	fmt.Printf("preempt_kicks=%d gaming_preemptions=%d late_frames=%d event_drops=%d\n",
		global.PreemptKicks, global.GamingPreemptions, global.LateFrames, engine.EventDrops())
	return nil
}

func runProfileCmd(args []string) error {
	if len(args) == 0 {
		for _, name := range orchestrator.ModeNames() {
			p := orchestrator.Preset(orchestrator.RunMode(name))
			fmt.Printf("%-8s burst=%dns slice=%dns gaming_mode=%v work_mode=%v gpu_feeder_gated=%v\n",
				name, p.BurstThresholdNs, p.SliceNs, p.GamingMode, p.WorkMode, p.GPUFeederGated)
		}

		fileCfg, err := control.LoadConfig()
		if err == nil && len(fileCfg.Profiles) > 0 {
			registry := profile.NewRegistry(profile.FromConfig(fileCfg.Profiles))
			for _, name := range registry.Names() {
				rec, _ := registry.Lookup(name)
				fmt.Printf("%-8s burst=%dns slice=%dns prefer_cache_die=%v prefer_smt=%v (from config)\n",
					rec.Executable, rec.BurstThresholdNs, rec.SliceNs, rec.PreferCacheDie, rec.PreferSMT)
			}
		}
		return nil
	}

	mode := orchestrator.ModeByName(args[0])
	p := orchestrator.Preset(mode)
	fmt.Printf("%-8s burst=%dns slice=%dns gaming_mode=%v work_mode=%v gpu_feeder_gated=%v\n",
		mode, p.BurstThresholdNs, p.SliceNs, p.GamingMode, p.WorkMode, p.GPUFeederGated)
	return nil
}

func runCapabilities() error {
	caps := ebpf.DetectBPFCapabilities()
	fmt.Print(ebpf.FormatCapabilities(caps))

	btfInfo := ebpf.DetectBTF()
	fmt.Printf("Kernel: %s\n", btfInfo.KernelVersion)
	fmt.Printf("BTF: %v\n", btfInfo.Available)
	fmt.Printf("CO-RE: %v\n", btfInfo.CORESupport)
	return nil
}

func runMCPServe(ctx context.Context, mode, procRoot, sysRoot string) error {
	engine, sup, err := bootstrap(mode, procRoot, sysRoot)
	if err != nil {
		return err
	}
	loader := ebpf.NewLoader(false)

	server := mcp.NewServer(version, engine, loader, sup)
	return server.Start(ctx)
}
