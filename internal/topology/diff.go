package topology

import "sort"

// Diff describes what changed between two topology snapshots.
// Re-enumerating an unchanged machine must produce a Diff with
// Unchanged() == true — this is the idempotence contract the
// supervisor relies on before touching shared sched tables.
type Diff struct {
	AddedCPUs     []int
	RemovedCPUs   []int
	ChangedCPUs   []int
	DieCountDelta int
	CacheRichMoved bool
	FreqDieMoved   bool
	HybridChanged  bool
}

// Unchanged reports whether the diff carries no observable change.
func (d Diff) Unchanged() bool {
	return len(d.AddedCPUs) == 0 && len(d.RemovedCPUs) == 0 && len(d.ChangedCPUs) == 0 &&
		d.DieCountDelta == 0 && !d.CacheRichMoved && !d.FreqDieMoved && !d.HybridChanged
}

// Diff compares the receiver (the "before" snapshot) against next
// (the "after" snapshot).
func (s *Snapshot) Diff(next *Snapshot) Diff {
	before := make(map[int]CPU, len(s.CPUs))
	for _, c := range s.CPUs {
		before[c.ID] = c
	}
	after := make(map[int]CPU, len(next.CPUs))
	for _, c := range next.CPUs {
		after[c.ID] = c
	}

	var d Diff
	for id := range after {
		if _, ok := before[id]; !ok {
			d.AddedCPUs = append(d.AddedCPUs, id)
		}
	}
	for id, b := range before {
		a, ok := after[id]
		if !ok {
			d.RemovedCPUs = append(d.RemovedCPUs, id)
			continue
		}
		if a != b {
			d.ChangedCPUs = append(d.ChangedCPUs, id)
		}
	}
	sort.Ints(d.AddedCPUs)
	sort.Ints(d.RemovedCPUs)
	sort.Ints(d.ChangedCPUs)

	d.DieCountDelta = next.NrDies - s.NrDies
	d.CacheRichMoved = next.CacheRichDie != s.CacheRichDie
	d.FreqDieMoved = next.FreqDie != s.FreqDie
	d.HybridChanged = next.IsHybrid != s.IsHybrid
	return d
}
