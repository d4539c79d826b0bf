package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, "ghostbrew")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	content := `
mode = "gaming"
control_file = "/run/ghostbrew/control"
proc_root = "/proc"
sys_root = "/sys"
gaming_executables = ["steam", "lutris"]

[[profiles]]
executable = "csgo"
burst_threshold_ns = 1500000
slice_ns = 3000000
prefer_cache_die = true
`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != "gaming" {
		t.Fatalf("Mode = %q, want gaming", cfg.Mode)
	}
	if len(cfg.GamingExecutables) != 2 {
		t.Fatalf("GamingExecutables = %v", cfg.GamingExecutables)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Executable != "csgo" {
		t.Fatalf("Profiles = %+v", cfg.Profiles)
	}
}

func TestLoadConfig_MissingFileReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != "" {
		t.Fatalf("expected zero-value config, got %+v", cfg)
	}
}

func TestResolve_CLIBeatsFileBeatsDefault(t *testing.T) {
	cli := CLIOverrides{Mode: "work"}
	file := FileConfig{Mode: "gaming", ProcRoot: "/custom/proc"}

	r := Resolve(cli, file)
	if r.Mode != "work" {
		t.Fatalf("Mode = %q, want work (CLI should win)", r.Mode)
	}
	if r.ProcRoot != "/custom/proc" {
		t.Fatalf("ProcRoot = %q, want /custom/proc (file should win over default)", r.ProcRoot)
	}
	if r.SysRoot != "/sys" {
		t.Fatalf("SysRoot = %q, want built-in default", r.SysRoot)
	}
	if r.ControlFile != defaultControlFile {
		t.Fatalf("ControlFile = %q, want default %q", r.ControlFile, defaultControlFile)
	}
}

func TestResolve_FileGamingExecutablesUsedWhenCLIEmpty(t *testing.T) {
	cli := CLIOverrides{}
	file := FileConfig{GamingExecutables: []string{"steam"}}

	r := Resolve(cli, file)
	if len(r.GamingExecutables) != 1 || r.GamingExecutables[0] != "steam" {
		t.Fatalf("GamingExecutables = %v", r.GamingExecutables)
	}
}
