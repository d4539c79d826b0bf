package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

func TestContainerScanner_AvailableRequiresCgroupMount(t *testing.T) {
	sysRoot := t.TempDir()
	s := NewContainerScanner()
	if s.Available(Config{SysRoot: sysRoot}) {
		t.Fatalf("container scanner should be unavailable without a cgroup mount")
	}

	if err := os.MkdirAll(filepath.Join(sysRoot, "fs", "cgroup"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sysRoot, "fs", "cgroup", "cgroup.controllers"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !s.Available(Config{SysRoot: sysRoot}) {
		t.Fatalf("container scanner should be available once a v2 cgroup mount exists")
	}
}

func TestContainerScanner_FlagsContainerCgroupPaths(t *testing.T) {
	procRoot := t.TempDir()
	writeProcStat(t, procRoot, 80, "nginx", 1, 80)
	writeCgroupPath(t, procRoot, 80, "/kubepods/besteffort/pod123/container456")
	writeProcStat(t, procRoot, 81, "systemd", 0, 81)
	writeCgroupPath(t, procRoot, 81, "/init.scope")

	s := NewContainerScanner()
	delta, err := s.Scan(context.Background(), Config{ProcRoot: procRoot})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if delta.Container[80] != sched.ClassContainer {
		t.Fatalf("pid 80 = %v, want ClassContainer", delta.Container[80])
	}
	if _, ok := delta.Container[81]; ok {
		t.Fatalf("init.scope should not be classified as a container")
	}
}

func TestDetectRuntime_ReadsInitCgroup(t *testing.T) {
	procRoot := t.TempDir()
	writeCgroupPath(t, procRoot, 1, "/kubepods/besteffort/pod123/container456")

	if got := DetectRuntime(procRoot); got != "kubernetes" {
		t.Fatalf("DetectRuntime = %q, want kubernetes", got)
	}
}
