// Package topology enumerates the host's CPU topology — dies, SMT
// siblings, cache hierarchy, and hybrid P/E-core tiers — from sysfs,
// the way the teacher's collector package walks procfs/sysfs for its
// Tier 1 metrics.
package topology

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// CPU holds the static topology facts for one logical CPU.
type CPU struct {
	ID                int
	Die               int // package_id, or die_id when the package exposes chiplets
	Cluster           int
	NUMANode          int
	SMTSibling        int // -1 if none
	L3SizeKB          int
	IsPerformanceCore bool
	IsTurboRanked     bool
	MaxFreqKHz        int64
}

// Snapshot is a point-in-time enumeration of the whole machine.
type Snapshot struct {
	CPUs          []CPU
	NrDies        int
	CacheRichDie  int // -1 on symmetric-cache platforms
	FreqDie       int // -1 when no die is frequency-preferred
	IsHybrid      bool
	Hostname      string
	KernelRelease string
	Affinity      []int // CPUs in this process's current scheduling affinity mask
}

// Enumerator walks a (possibly faked) sysfs tree to build a Snapshot.
// CpuSysRoot defaults to "/sys/devices/system/cpu" and is overridable
// in tests, mirroring the teacher's ProcRoot/SysRoot override pattern.
type Enumerator struct {
	CpuSysRoot string
}

// NewEnumerator returns an Enumerator rooted at the real sysfs CPU tree.
func NewEnumerator() *Enumerator {
	return &Enumerator{CpuSysRoot: "/sys/devices/system/cpu"}
}

// Enumerate walks the CPU sysfs tree and returns a full Snapshot.
// Re-running Enumerate against an unchanged tree is idempotent: the
// returned Snapshot compares equal via Snapshot.Diff.
func (e *Enumerator) Enumerate() (*Snapshot, error) {
	root := e.CpuSysRoot
	if root == "" {
		root = "/sys/devices/system/cpu"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	sort.Ints(ids)

	cpus := make([]CPU, 0, len(ids))
	freqTiers := make(map[int64]bool)
	for _, id := range ids {
		c := e.readCPU(root, id)
		cpus = append(cpus, c)
		if c.MaxFreqKHz > 0 {
			freqTiers[c.MaxFreqKHz] = true
		}
	}

	snap := &Snapshot{CPUs: cpus}
	snap.classifyHybrid(freqTiers)
	snap.assignDies()
	snap.pickCacheRichDie()

	snap.Hostname, _ = os.Hostname()
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		snap.KernelRelease = cstr(uts.Release[:])
	}
	snap.Affinity = readAffinity()

	return snap, nil
}

func (e *Enumerator) readCPU(root string, id int) CPU {
	base := filepath.Join(root, "cpu"+strconv.Itoa(id))
	topo := filepath.Join(base, "topology")

	c := CPU{
		ID:         id,
		Die:        readInt(filepath.Join(topo, "package_id"), 0),
		Cluster:    readInt(filepath.Join(topo, "cluster_id"), -1),
		NUMANode:   numaNodeOf(base),
		SMTSibling: -1,
		MaxFreqKHz: readInt64(filepath.Join(base, "cpufreq", "cpuinfo_max_freq"), 0),
		L3SizeKB:   l3SizeKB(base),
	}

	if dieID := readIntOK(filepath.Join(topo, "die_id")); dieID >= 0 {
		c.Die = dieID
	}

	if siblings := readCPUList(filepath.Join(topo, "thread_siblings_list")); len(siblings) > 1 {
		for _, s := range siblings {
			if s != id {
				c.SMTSibling = s
				break
			}
		}
	}

	return c
}

// classifyHybrid marks performance-tier cores when the host exposes
// more than one distinct cpufreq ceiling (Alder-Lake-style P/E split).
func (s *Snapshot) classifyHybrid(freqTiers map[int64]bool) {
	if len(freqTiers) < 2 {
		return
	}
	s.IsHybrid = true

	var maxFreq int64
	for f := range freqTiers {
		if f > maxFreq {
			maxFreq = f
		}
	}
	for i := range s.CPUs {
		if s.CPUs[i].MaxFreqKHz == maxFreq {
			s.CPUs[i].IsPerformanceCore = true
			s.CPUs[i].IsTurboRanked = true
		}
	}
}

// assignDies computes NrDies from the distinct Die values observed.
func (s *Snapshot) assignDies() {
	dies := make(map[int]bool)
	for _, c := range s.CPUs {
		dies[c.Die] = true
	}
	if len(dies) == 0 {
		s.NrDies = 1
		return
	}
	s.NrDies = len(dies)
}

// pickCacheRichDie selects the die with the largest per-CPU L3 size
// (the maximum seen on that die, not a sum) as the cache-rich die (the AMD X3D pattern: one CCD carries 3D V-Cache, the
// other doesn't). Symmetric L3 across dies leaves CacheRichDie at -1.
func (s *Snapshot) pickCacheRichDie() {
	s.CacheRichDie = -1
	s.FreqDie = -1
	if s.NrDies <= 1 {
		return
	}

	l3ByDie := make(map[int]int)
	freqByDie := make(map[int]int64)
	for _, c := range s.CPUs {
		if c.L3SizeKB > l3ByDie[c.Die] {
			l3ByDie[c.Die] = c.L3SizeKB
		}
		if c.MaxFreqKHz > freqByDie[c.Die] {
			freqByDie[c.Die] = c.MaxFreqKHz
		}
	}

	s.CacheRichDie = dieWithMaxInt(l3ByDie)
	s.FreqDie = dieWithMax(freqByDie)

	// All dies tied: platform is symmetric, no preference.
	if allEqualInt(l3ByDie) {
		s.CacheRichDie = -1
	}
	if allEqualInt64(freqByDie) {
		s.FreqDie = -1
	}
}

func dieWithMax(m map[int]int64) int {
	best, bestVal := -1, int64(-1)
	dies := make([]int, 0, len(m))
	for d := range m {
		dies = append(dies, d)
	}
	sort.Ints(dies)
	for _, d := range dies {
		if m[d] > bestVal {
			best, bestVal = d, m[d]
		}
	}
	return best
}

func dieWithMaxInt(m map[int]int) int {
	best, bestVal := -1, -1
	dies := make([]int, 0, len(m))
	for d := range m {
		dies = append(dies, d)
	}
	sort.Ints(dies)
	for _, d := range dies {
		if m[d] > bestVal {
			best, bestVal = d, m[d]
		}
	}
	return best
}

func allEqualInt(m map[int]int) bool {
	var first int
	seen := false
	for _, v := range m {
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

func allEqualInt64(m map[int]int64) bool {
	var first int64
	seen := false
	for _, v := range m {
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return false
		}
	}
	return true
}

func numaNodeOf(cpuBase string) int {
	entries, err := os.ReadDir(cpuBase)
	if err != nil {
		return 0
	}
	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), "node") {
			if n, err := strconv.Atoi(strings.TrimPrefix(ent.Name(), "node")); err == nil {
				return n
			}
		}
	}
	return 0
}

func l3SizeKB(cpuBase string) int {
	cacheDir := filepath.Join(cpuBase, "cache")
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return 0
	}
	for _, ent := range entries {
		if !strings.HasPrefix(ent.Name(), "index") {
			continue
		}
		idxDir := filepath.Join(cacheDir, ent.Name())
		if readInt(filepath.Join(idxDir, "level"), 0) != 3 {
			continue
		}
		raw := strings.TrimSpace(readFile(filepath.Join(idxDir, "size")))
		raw = strings.TrimSuffix(raw, "K")
		v, _ := strconv.Atoi(raw)
		return v
	}
	return 0
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func readInt(path string, def int) int {
	v := readIntOK(path)
	if v < 0 {
		return def
	}
	return v
}

// readIntOK returns -1 when the file is absent or unparsable.
func readIntOK(path string) int {
	raw := strings.TrimSpace(readFile(path))
	if raw == "" {
		return -1
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

func readInt64(path string, def int64) int64 {
	raw := strings.TrimSpace(readFile(path))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// readCPUList parses a sysfs "N,M" or "N-M" CPU list into individual ids.
func readCPUList(path string) []int {
	raw := strings.TrimSpace(readFile(path))
	if raw == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			lo, err1 := strconv.Atoi(bounds[0])
			hi, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				continue
			}
			for i := lo; i <= hi; i++ {
				out = append(out, i)
			}
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func readAffinity() []int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil
	}
	var out []int
	for i := 0; i < 4096; i++ {
		if set.IsSet(i) {
			out = append(out, i)
		}
	}
	return out
}

func cstr(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

// SysinfoSnapshot enriches a Snapshot with live kernel Sysinfo (uptime,
// load averages), the way golang.org/x/sys/unix exposes it directly
// without a procfs parse.
type SysinfoSnapshot struct {
	UptimeSeconds int64
	Loads         [3]float64
}

// ReadSysinfo calls unix.Sysinfo and converts its fixed-point load
// averages (base 2^16, per linux/kernel.h) into floats.
func ReadSysinfo() (SysinfoSnapshot, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return SysinfoSnapshot{}, err
	}
	out := SysinfoSnapshot{UptimeSeconds: si.Uptime}
	for i, l := range si.Loads {
		out.Loads[i] = float64(l) / 65536.0
	}
	return out, nil
}
