package discovery

import (
	"context"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// CgroupScanner walks every process's cgroup membership and pre-resolves
// step 3 of the classification chain (cgroup lookup) for cgroup paths
// that match an operator-configured gaming or batch slice pattern,
// grounded on the teacher's container collector's cgroup-path reader.
type CgroupScanner struct{}

func NewCgroupScanner() *CgroupScanner { return &CgroupScanner{} }

func (s *CgroupScanner) Name() string { return "cgroup" }

func (s *CgroupScanner) Available(cfg Config) bool {
	return len(cfg.CgroupGamingSlices) > 0 || len(cfg.CgroupBatchSlices) > 0
}

func (s *CgroupScanner) Scan(ctx context.Context, cfg Config) (Delta, error) {
	procs := readAllProcs(cfg.ProcRoot)
	classes := make(map[uint64]sched.Class)

	for pid := range procs {
		path := readCgroupPath(cfg.ProcRoot, pid)
		if path == "" {
			continue
		}
		id := cgroupID(path)
		switch {
		case containsAny(path, cfg.CgroupGamingSlices):
			classes[id] = sched.ClassGaming
		case containsAny(path, cfg.CgroupBatchSlices):
			classes[id] = sched.ClassBatch
		}
	}

	return Delta{Scanner: s.Name(), Cgroup: classes}, nil
}
