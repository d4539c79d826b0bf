package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ghostkellz/ghostbrew/internal/ebpf"
	"github.com/ghostkellz/ghostbrew/internal/orchestrator"
	"github.com/ghostkellz/ghostbrew/internal/sched"
	"github.com/mark3labs/mcp-go/mcp"
)

// handlers closes over the live engine, loader, and supervisor so each
// tool call reads current state rather than a snapshot taken at
// startup.
type handlers struct {
	engine *sched.Engine
	loader *ebpf.Loader
	sup    *orchestrator.Supervisor
}

// statusReport is the get_status tool's JSON shape.
type statusReport struct {
	NrCPUs       int              `json:"nr_cpus"`
	NrDies       int              `json:"nr_dies"`
	CacheRichDie int              `json:"cache_rich_die"`
	FreqDie      int              `json:"freq_die"`
	IsHybrid     bool             `json:"is_hybrid"`
	QueueCount   int              `json:"queue_count"`
	TaskCount    int              `json:"task_count"`
	ExitReason   string           `json:"exit_reason"`
	GPUActive    bool             `json:"gpu_active"`
	AttachTier   string           `json:"attach_tier"`
	BTFAvailable bool             `json:"btf_available"`
	KernelVer    string           `json:"kernel_version"`
}

func (h *handlers) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dump := h.engine.Dump()

	tier := string(ebpf.TierShadow)
	btfAvail := false
	kernelVer := ""
	if h.loader != nil {
		btfInfo := h.loader.BTFInfo()
		btfAvail = btfInfo.Available
		kernelVer = btfInfo.KernelVersion
		if h.loader.CanLoad() {
			tier = string(ebpf.TierNative)
		}
	}

	report := statusReport{
		NrCPUs:       dump.NrCPUs,
		NrDies:       dump.NrDies,
		CacheRichDie: dump.CacheRichDie,
		FreqDie:      dump.FreqDie,
		IsHybrid:     dump.IsHybrid,
		QueueCount:   dump.QueueCount,
		TaskCount:    dump.TaskCount,
		ExitReason:   string(dump.ExitReason),
		GPUActive:    h.engine.GPUActive(),
		AttachTier:   tier,
		BTFAvailable: btfAvail,
		KernelVer:    kernelVer,
	}

	return jsonResult(report)
}

func (h *handlers) handleGetMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	global := h.engine.Global()

	metrics := map[string]interface{}{
		"enqueued":             global.Enqueued,
		"dispatched":           global.Dispatched,
		"direct_dispatched":    global.DirectDispatched,
		"gaming":               global.Gaming,
		"interactive":          global.Interactive,
		"cache_die_migrations": global.CacheDieMigrations,
		"die_local":            global.DieLocal,
		"die_cross":            global.DieCross,
		"smt_idle_picks":       global.SMTIdlePicks,
		"compaction_overflows": global.CompactionOverflows,
		"preempt_kicks":        global.PreemptKicks,
		"pcore_placements":     global.PcorePlacements,
		"ecore_offloads":       global.EcoreOffloads,
		"latency_sum_ns":       global.LatencySumNs,
		"latency_count":        global.LatencyCountN,
		"latency_max_ns":       global.LatencyMaxNs,
		"latency_min_ns":       global.LatencyMinNs,
		"gaming_latency_sum_ns": global.GamingLatencySumNs,
		"gaming_latency_count":  global.GamingLatencyCount,
		"late_frames":          global.LateFrames,
		"gaming_preemptions":   global.GamingPreemptions,
		"event_drops":          h.engine.EventDrops(),
		"task_count":           h.engine.TaskCount(),
	}

	return jsonResult(metrics)
}

func (h *handlers) handleExplainClassification(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	comm := stringArg(args, "comm", "")
	if comm == "" {
		return errResult("comm is required"), nil
	}

	info := sched.TaskInfo{
		PID:      int32(numberArg(args, "pid", 0)),
		PGID:     int32(numberArg(args, "pgid", 0)),
		CgroupID: uint64(numberArg(args, "cgroup_id", 0)),
		Comm:     comm,
	}

	tc := &sched.TaskCtx{}
	h.engine.Classify(tc, info)

	_, pgidCompat, pgidHit := h.engine.GamingPidsTable().Lookup(info.PGID)
	_, cgroupHit := h.engine.CgroupClassesTable().Lookup(info.CgroupID)
	_, vmHit := h.engine.VmVcpuPidsTable().Lookup(info.PID)
	_, containerHit := h.engine.ContainerPidsTable().Lookup(info.PID)

	explanation := map[string]interface{}{
		"comm":               comm,
		"class":              tc.Class.String(),
		"is_gaming":          tc.IsGaming,
		"is_proton":          tc.IsProton,
		"is_gpu_feeder":      tc.IsGPUFeeder,
		"pgid_table_hit":     pgidHit,
		"pgid_compat_layer":  pgidCompat,
		"cgroup_table_hit":   cgroupHit,
		"vm_vcpu_table_hit":  vmHit,
		"container_table_hit": containerHit,
	}

	return jsonResult(explanation)
}

func (h *handlers) handleListProfiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type profileEntry struct {
		Mode             string `json:"mode"`
		BurstThresholdNs int64  `json:"burst_threshold_ns"`
		SliceNs          int64  `json:"slice_ns"`
		GamingMode       bool   `json:"gaming_mode"`
		WorkMode         bool   `json:"work_mode"`
		GPUFeederGated   bool   `json:"gpu_feeder_gated"`
	}

	var entries []profileEntry
	for _, name := range orchestrator.ModeNames() {
		mode := orchestrator.RunMode(name)
		preset := orchestrator.Preset(mode)
		entries = append(entries, profileEntry{
			Mode:             name,
			BurstThresholdNs: preset.BurstThresholdNs,
			SliceNs:          preset.SliceNs,
			GamingMode:       preset.GamingMode,
			WorkMode:         preset.WorkMode,
			GPUFeederGated:   preset.GPUFeederGated,
		})
	}

	return jsonResult(entries)
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func numberArg(args map[string]interface{}, key string, defaultVal float64) float64 {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	return f
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
