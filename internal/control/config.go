package control

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProfileRecord mirrors internal/profile's on-disk shape so the
// config file can declare profiles inline without an import cycle
// (internal/profile converts these into its own richer type).
type ProfileRecord struct {
	Executable       string `toml:"executable"`
	BurstThresholdNs int64  `toml:"burst_threshold_ns"`
	SliceNs          int64  `toml:"slice_ns"`
	PreferCacheDie   bool   `toml:"prefer_cache_die"`
	PreferSMT        bool   `toml:"prefer_smt"`
}

// FileConfig is the declarative configuration file's shape
// (`$XDG_CONFIG_HOME/ghostbrew/config.toml` or `/etc/ghostbrew/config.toml`),
// mirroring the CLI flags so every setting has one canonical source of
// truth besides the flags themselves.
type FileConfig struct {
	Mode               string          `toml:"mode"`
	ControlFile        string          `toml:"control_file"`
	ProcRoot           string          `toml:"proc_root"`
	SysRoot            string          `toml:"sys_root"`
	GamingExecutables  []string        `toml:"gaming_executables"`
	CgroupGamingSlices []string        `toml:"cgroup_gaming_slices"`
	CgroupBatchSlices  []string        `toml:"cgroup_batch_slices"`
	Profiles           []ProfileRecord `toml:"profiles"`
}

// DefaultConfigPaths returns the config file search order: the XDG
// user config directory first, then the system-wide path.
func DefaultConfigPaths() []string {
	paths := make([]string, 0, 2)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "ghostbrew", "config.toml"))
	} else if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", "ghostbrew", "config.toml"))
	}
	paths = append(paths, "/etc/ghostbrew/config.toml")
	return paths
}

// LoadConfig reads the first existing path from DefaultConfigPaths,
// or returns a zero-value FileConfig if none exist — a missing config
// file is not an error, it just means every setting falls back to
// CLI flags and built-in defaults.
func LoadConfig() (FileConfig, error) {
	for _, path := range DefaultConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		var cfg FileConfig
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return FileConfig{}, err
		}
		return cfg, nil
	}
	return FileConfig{}, nil
}

// Resolved holds one setting after CLI > file > built-in default precedence is
// applied (spec §4.9 point 3).
type Resolved struct {
	Mode               string
	ControlFile        string
	ProcRoot           string
	SysRoot            string
	GamingExecutables  []string
	CgroupGamingSlices []string
	CgroupBatchSlices  []string
}

// CLIOverrides carries only the flags the operator actually set
// (cobra gives no clean "was this flag passed" signal across a whole
// struct, so callers populate only the fields they changed and leave
// the rest zero).
type CLIOverrides struct {
	Mode               string
	ProcRoot           string
	SysRoot            string
	GamingExecutables  []string
	CgroupGamingSlices []string
	CgroupBatchSlices  []string
}

const defaultControlFile = "/run/ghostbrew/control"

// Resolve applies CLI-over-file-over-built-in-default precedence. A
// zero-value field in cli means "not set on the command line", so the
// file's value (and failing that, the built-in default) is used
// instead.
func Resolve(cli CLIOverrides, file FileConfig) Resolved {
	r := Resolved{
		Mode:               firstNonEmpty(cli.Mode, file.Mode, "auto"),
		ControlFile:        firstNonEmpty(file.ControlFile, defaultControlFile),
		ProcRoot:           firstNonEmpty(cli.ProcRoot, file.ProcRoot, "/proc"),
		SysRoot:            firstNonEmpty(cli.SysRoot, file.SysRoot, "/sys"),
		GamingExecutables:  firstNonEmptySlice(cli.GamingExecutables, file.GamingExecutables),
		CgroupGamingSlices: firstNonEmptySlice(cli.CgroupGamingSlices, file.CgroupGamingSlices),
		CgroupBatchSlices:  firstNonEmptySlice(cli.CgroupBatchSlices, file.CgroupBatchSlices),
	}
	return r
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptySlice(vals ...[]string) []string {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
