package mcp

import (
	"context"
	"os"

	"github.com/ghostkellz/ghostbrew/internal/ebpf"
	"github.com/ghostkellz/ghostbrew/internal/orchestrator"
	"github.com/ghostkellz/ghostbrew/internal/sched"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance, giving AI-assisted tuning
// tools read access to the running engine's status, metrics, and
// classification chain without a separate RPC layer.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with the ghostbrew tool set
// registered against the given engine, loader, and supervisor.
func NewServer(version string, engine *sched.Engine, loader *ebpf.Loader, sup *orchestrator.Supervisor) *Server {
	s := server.NewMCPServer("ghostbrew", version, server.WithLogging())
	h := &handlers{engine: engine, loader: loader, sup: sup}
	registerTools(s, h)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools adds the four ghostbrew introspection tools.
func registerTools(s *server.MCPServer, h *handlers) {
	statusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Report engine status: topology facts, attach tier (native/shadow), exit reason, live task and queue counts."),
	)
	s.AddTool(statusTool, h.handleGetStatus)

	metricsTool := mcp.NewTool("get_metrics",
		mcp.WithDescription("Report the global scheduling counters: enqueue/dispatch totals, die-local/die-cross counts, latency stats, gaming preemptions, event drops."),
	)
	s.AddTool(metricsTool, h.handleGetMetrics)

	explainTool := mcp.NewTool("explain_classification",
		mcp.WithDescription("Run the classification chain for a hypothetical task and explain which step decided its class."),
		mcp.WithString("comm",
			mcp.Required(),
			mcp.Description("Process command name, e.g. 'steam' or 'nvidia-gpu-comp'"),
		),
		mcp.WithNumber("pid",
			mcp.Description("PID to check against the VM-vCPU and container tables"),
		),
		mcp.WithNumber("pgid",
			mcp.Description("Process group id to check against the gaming-PGID table"),
		),
		mcp.WithNumber("cgroup_id",
			mcp.Description("Cgroup id to check against the cgroup-class table"),
		),
	)
	s.AddTool(explainTool, h.handleExplainClassification)

	profilesTool := mcp.NewTool("list_profiles",
		mcp.WithDescription("List the built-in run-mode presets (gaming/work/auto) and the tunable values each applies."),
	)
	s.AddTool(profilesTool, h.handleListProfiles)
}
