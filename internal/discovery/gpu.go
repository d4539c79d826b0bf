package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// GPUScanner reads DRM device hints from sysfs to populate the
// gpu_active and gpu_rebar signals the gpu_feeder_gated tunable
// consults (resolving the §9 open question on GPU-feeder gating).
type GPUScanner struct{}

func NewGPUScanner() *GPUScanner { return &GPUScanner{} }

func (s *GPUScanner) Name() string { return "gpu" }

func (s *GPUScanner) Available(cfg Config) bool {
	cards, err := filepath.Glob(filepath.Join(cfg.SysRoot, "class", "drm", "card*"))
	return err == nil && len(cards) > 0
}

func (s *GPUScanner) Scan(ctx context.Context, cfg Config) (Delta, error) {
	cards, _ := filepath.Glob(filepath.Join(cfg.SysRoot, "class", "drm", "card*"))

	var active, rebar bool
	for _, card := range cards {
		devDir := filepath.Join(card, "device")
		if powerState := trimmed(filepath.Join(devDir, "power_state")); powerState == "D0" {
			active = true
		}
		if rb := trimmed(filepath.Join(devDir, "resizable_bar")); rb == "1" || rb == "yes" {
			rebar = true
		}
	}

	return Delta{Scanner: s.Name(), GPUActive: active, GPUReBAR: rebar}, nil
}

func trimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
