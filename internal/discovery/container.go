package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// ContainerScanner detects Docker/Kubernetes/LXC membership the same
// way the teacher's container collector does (cgroup path substrings,
// /.dockerenv, the Kubernetes service-account mount) and records every
// member PID as ClassContainer, resolving step 6 of the classification
// chain ahead of time.
type ContainerScanner struct{}

func NewContainerScanner() *ContainerScanner { return &ContainerScanner{} }

func (s *ContainerScanner) Name() string { return "container" }

func (s *ContainerScanner) Available(cfg Config) bool {
	return detectCgroupVersion(cfg.SysRoot) > 0
}

func (s *ContainerScanner) Scan(ctx context.Context, cfg Config) (Delta, error) {
	procs := readAllProcs(cfg.ProcRoot)
	members := make(map[int32]sched.Class)

	for pid := range procs {
		path := readCgroupPath(cfg.ProcRoot, pid)
		if isContainerCgroupPath(path) {
			members[pid] = sched.ClassContainer
		}
	}

	return Delta{Scanner: s.Name(), Container: members}, nil
}

func isContainerCgroupPath(path string) bool {
	return containsAny(path, []string{"docker", "containerd", "kubepods", "lxc"})
}

func detectCgroupVersion(sysRoot string) int {
	if _, err := os.Stat(filepath.Join(sysRoot, "fs", "cgroup", "cgroup.controllers")); err == nil {
		return 2
	}
	if _, err := os.Stat(filepath.Join(sysRoot, "fs", "cgroup", "cpu")); err == nil {
		return 1
	}
	return 0
}

// DetectRuntime reports the container runtime in effect for the host
// itself (as opposed to a specific process), used by the orchestrator
// to log context at startup.
func DetectRuntime(procRoot string) string {
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount"); err == nil {
		return "kubernetes"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "docker"
	}
	data, err := os.ReadFile(filepath.Join(procRoot, "1", "cgroup"))
	if err == nil {
		content := string(data)
		switch {
		case strings.Contains(content, "docker"), strings.Contains(content, "containerd"):
			return "docker"
		case strings.Contains(content, "kubepods"):
			return "kubernetes"
		case strings.Contains(content, "lxc"):
			return "lxc"
		}
	}
	return "none"
}
