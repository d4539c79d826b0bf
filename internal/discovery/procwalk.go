package discovery

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procEntry is one process's identity, parsed the way the teacher's
// process collector parses /proc/[pid]/stat (comm between the first
// '(' and last ')', then the state, PPID and PGRP fields in that order).
type procEntry struct {
	PID  int32
	PPID int32
	PGID int32
	Comm string
}

// readAllProcs walks procRoot once and returns every process found.
// Processes that disappear mid-walk are skipped, not an error.
func readAllProcs(procRoot string) map[int32]procEntry {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil
	}

	procs := make(map[int32]procEntry)
	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		pe, ok := readProcStat(procRoot, int32(pid))
		if !ok {
			continue
		}
		procs[pe.PID] = pe
	}
	return procs
}

func readProcStat(procRoot string, pid int32) (procEntry, bool) {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(int(pid)), "stat"))
	if err != nil {
		return procEntry{}, false
	}
	s := string(data)
	commStart := strings.IndexByte(s, '(')
	commEnd := strings.LastIndexByte(s, ')')
	if commStart < 0 || commEnd < 0 || commEnd < commStart {
		return procEntry{}, false
	}
	comm := s[commStart+1 : commEnd]
	rest := strings.Fields(s[commEnd+2:])
	// rest[0]=state, rest[1]=ppid, rest[2]=pgrp
	if len(rest) < 3 {
		return procEntry{}, false
	}
	ppid, _ := strconv.Atoi(rest[1])
	pgrp, _ := strconv.Atoi(rest[2])
	return procEntry{PID: pid, PPID: int32(ppid), PGID: int32(pgrp), Comm: comm}, true
}

// ancestorChain walks procs' parent links from pid, closest-first,
// bounded to maxWalk entries — the same iterative-not-recursive style
// as the teacher's PID table builder.
func ancestorChain(procs map[int32]procEntry, pid int32, maxWalk int) []string {
	if maxWalk <= 0 {
		maxWalk = 5
	}
	var chain []string
	cur := pid
	seen := make(map[int32]bool)
	for i := 0; i < maxWalk; i++ {
		p, ok := procs[cur]
		if !ok || p.PPID == 0 || p.PPID == cur || seen[p.PPID] {
			break
		}
		parent, ok := procs[p.PPID]
		if !ok {
			break
		}
		chain = append(chain, parent.Comm)
		seen[p.PPID] = true
		cur = p.PPID
	}
	return chain
}

// readCgroupPath reads a process's cgroup path, matching the teacher's
// container collector's own /proc/[pid]/cgroup reader.
func readCgroupPath(procRoot string, pid int32) string {
	data, err := os.ReadFile(filepath.Join(procRoot, strconv.Itoa(int(pid)), "cgroup"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) == 3 {
			return parts[2]
		}
	}
	return ""
}

// cgroupID derives a stable numeric id for a cgroup path. The real
// kernel has one (bpf_get_current_cgroup_id); userspace discovery
// fakes it with a content hash so the same path always maps to the
// same CgroupClasses key.
func cgroupID(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
