package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// qemuNames identify the VMM process itself; its vCPU threads are
// discovered by walking /proc/[pid]/task/*/comm, the same per-thread
// procfs layout the teacher's process collector already understands.
var qemuNames = []string{"qemu-system", "qemu-kvm", "crosvm", "cloud-hypervisor"}

// vcpuCommMarkers match QEMU/KVM's own vCPU thread naming convention,
// e.g. "CPU 0/KVM".
var vcpuCommMarkers = []string{"/KVM", "CPU "}

// VMScanner finds virtual-machine vCPU threads and records them as
// ClassVmDev (or ClassVmGaming when the VM's own cmdline hints at a
// GPU-passthrough gaming VM), resolving step 5 of the classification
// chain ahead of time.
type VMScanner struct{}

func NewVMScanner() *VMScanner { return &VMScanner{} }

func (s *VMScanner) Name() string { return "vm" }

func (s *VMScanner) Available(cfg Config) bool { return true }

func (s *VMScanner) Scan(ctx context.Context, cfg Config) (Delta, error) {
	procs := readAllProcs(cfg.ProcRoot)
	vcpus := make(map[int32]sched.Class)

	for pid, p := range procs {
		if !matchesGamingName(p.Comm, qemuNames) {
			continue
		}
		class := sched.ClassVmDev
		if isGamingVM(cfg.ProcRoot, pid) {
			class = sched.ClassVmGaming
		}
		for _, tid := range vcpuThreadIDs(cfg.ProcRoot, pid) {
			vcpus[tid] = class
		}
	}

	return Delta{Scanner: s.Name(), VmVcpuPIDs: vcpus}, nil
}

// isGamingVM checks the VMM's cmdline for GPU-passthrough hints
// (vfio-pci device assignment), the strongest signal available from
// procfs alone that the VM is a gaming/desktop guest rather than a
// headless workload VM.
func isGamingVM(procRoot string, pid int32) bool {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(int(pid)), "cmdline"))
	if err != nil {
		return false
	}
	cmdline := strings.ReplaceAll(string(data), "\x00", " ")
	return strings.Contains(cmdline, "vfio-pci") || strings.Contains(cmdline, "hostdev")
}

func vcpuThreadIDs(procRoot string, pid int32) []int32 {
	taskDir := filepath.Join(procRoot, strconv.Itoa(int(pid)), "task")
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil
	}

	var tids []int32
	for _, ent := range entries {
		tid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(taskDir, ent.Name(), "comm"))
		if err != nil {
			continue
		}
		if matchesAnyMarker(string(comm), vcpuCommMarkers) {
			tids = append(tids, int32(tid))
		}
	}
	return tids
}

func matchesAnyMarker(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
