// Package profile implements per-application scheduling profiles: a
// registry of executable-matched overrides (burst threshold, slice,
// cache-die/SMT preference) applied and reverted as processes appear
// and disappear, generalized from the teacher's fixed
// quick/standard/deep ProfileConfig into an open-ended, loadable set
// layered on top of the three built-in run modes.
package profile

import (
	"strings"
	"sync"

	"github.com/ghostkellz/ghostbrew/internal/control"
)

// Record is one per-application override. Match is by exact
// executable (comm) name; a future predicate-based matcher could
// extend this, but exact match covers every case the spec names.
type Record struct {
	Executable       string
	BurstThresholdNs int64
	SliceNs          int64
	PreferCacheDie   bool
	PreferSMT        bool
}

// FromConfig converts the declarative config file's profile records
// into the richer in-memory Record, keeping internal/control free of
// a dependency on this package.
func FromConfig(in []control.ProfileRecord) []Record {
	out := make([]Record, 0, len(in))
	for _, p := range in {
		out = append(out, Record{
			Executable:       p.Executable,
			BurstThresholdNs: p.BurstThresholdNs,
			SliceNs:          p.SliceNs,
			PreferCacheDie:   p.PreferCacheDie,
			PreferSMT:        p.PreferSMT,
		})
	}
	return out
}

// Registry holds the loaded profile records and tracks which PIDs
// currently have one applied, so Revert can undo exactly what Apply
// did for a given process without affecting others.
type Registry struct {
	mu       sync.Mutex
	byExe    map[string]Record
	appliedTo map[int32]string // pid -> executable, for Revert lookups
}

// NewRegistry builds a Registry keyed by executable name. Later
// records with the same executable name overwrite earlier ones.
func NewRegistry(records []Record) *Registry {
	byExe := make(map[string]Record, len(records))
	for _, r := range records {
		byExe[r.Executable] = r
	}
	return &Registry{byExe: byExe, appliedTo: make(map[int32]string)}
}

// Lookup returns the profile record for comm, if any.
func (r *Registry) Lookup(comm string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byExe[strings.TrimSpace(comm)]
	return rec, ok
}

// Apply records that pid is now running under comm's profile (if one
// exists) and returns it for the caller to push onto the engine's
// tunables or task context. A no-op, returning ok=false, when comm
// has no matching record.
func (r *Registry) Apply(pid int32, comm string) (Record, bool) {
	rec, ok := r.Lookup(comm)
	if !ok {
		return Record{}, false
	}
	r.mu.Lock()
	r.appliedTo[pid] = comm
	r.mu.Unlock()
	return rec, true
}

// Revert forgets that pid had a profile applied, called when the
// discovery layer observes the process exit. It does not undo any
// engine-side effect directly — the caller owns rolling back
// per-task state — it only clears the bookkeeping so Applied no
// longer reports pid.
func (r *Registry) Revert(pid int32) {
	r.mu.Lock()
	delete(r.appliedTo, pid)
	r.mu.Unlock()
}

// Applied reports the executable name pid was last applied under, if
// still tracked.
func (r *Registry) Applied(pid int32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comm, ok := r.appliedTo[pid]
	return comm, ok
}

// Names returns every configured executable name, for the `profile`
// CLI subcommand and list_profiles-style introspection.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byExe))
	for name := range r.byExe {
		names = append(names, name)
	}
	return names
}
