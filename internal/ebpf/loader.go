package ebpf

import (
	"context"
	"fmt"
	"log"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

// ProgramSpec describes the pre-compiled sched_ext BPF object: the
// struct_ops map carrying the scheduler's callback table, plus the
// maps the supervisor can read directly once attached (stats, events)
// instead of going through the in-process shadow engine.
type ProgramSpec struct {
	Name          string
	ObjectFile    string // path to the compiled sched_ext .o
	StructOpsMap  string // map name holding the sched_ext_ops struct
	StatsMapNames []string
}

// NativePrograms defines the known native sched_ext objects. Only the
// scheduler itself today; the supervisor tries this before falling
// back to the shadow tier.
var NativePrograms = []ProgramSpec{
	{
		Name:          "ghostbrew",
		ObjectFile:    "internal/ebpf/bpf/ghostbrew.bpf.o",
		StructOpsMap:  "ghostbrew_ops",
		StatsMapNames: []string{"per_cpu_stats", "events"},
	},
}

// LoadedProgram is a running native attach: the struct_ops link that
// registers the scheduling class with the kernel, plus the collection
// so the supervisor can reach its maps.
type LoadedProgram struct {
	Spec       *ProgramSpec
	Collection *ebpf.Collection
	Link       link.Link
}

// Close tears down the attach and releases the collection's maps and
// programs. The host kernel reinstalls its default scheduling class
// the moment the struct_ops link closes (spec §4.10 exit semantics).
func (p *LoadedProgram) Close() error {
	if p.Link != nil {
		p.Link.Close()
	}
	if p.Collection != nil {
		p.Collection.Close()
	}
	return nil
}

// Map looks up one of the object's maps by name, e.g. for the metrics
// package to read per_cpu_stats directly when running in native mode.
func (p *LoadedProgram) Map(name string) (*ebpf.Map, bool) {
	if p.Collection == nil {
		return nil, false
	}
	m, ok := p.Collection.Maps[name]
	return m, ok
}

// LoadError tags a native attach failure with the stage it failed at,
// so the supervisor logs precisely why it fell back to the shadow
// tier instead of a bare wrapped error.
type LoadError struct {
	Program string
	Stage   string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("native attach %q failed at %s: %v", e.Program, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader loads and attaches the sched_ext struct_ops program.
type Loader struct {
	btfInfo *BTFInfo
	verbose bool
}

// NewLoader constructs a Loader, detecting BTF/CO-RE support up front.
func NewLoader(verbose bool) *Loader {
	return &Loader{btfInfo: DetectBTF(), verbose: verbose}
}

// CanLoad reports whether the host can plausibly support a native
// sched_ext attach: BTF/CO-RE plus a kernel major version of 6 or
// later (the minor version is not examined). Below that, TryLoad is
// skipped entirely rather than attempted and logged as a failure.
func (l *Loader) CanLoad() bool {
	return l.btfInfo.Available && l.btfInfo.CORESupport && l.btfInfo.MajorVersion >= 6
}

// BTFInfo exposes the detected BTF facts, for the capabilities
// subcommand and status introspection.
func (l *Loader) BTFInfo() *BTFInfo { return l.btfInfo }

// TryLoad attempts the native attach: load the object, instantiate its
// maps and programs, locate the struct_ops map, and register it with
// the kernel via a raw link.
func (l *Loader) TryLoad(ctx context.Context, spec *ProgramSpec) (*LoadedProgram, error) {
	if !l.CanLoad() {
		return nil, &LoadError{
			Program: spec.Name,
			Stage:   "precheck",
			Err:     fmt.Errorf("BTF/CO-RE or a sched_ext-capable kernel not available (kernel %s)", l.btfInfo.KernelVersion),
		}
	}

	collSpec, err := ebpf.LoadCollectionSpec(spec.ObjectFile)
	if err != nil {
		return nil, &LoadError{Program: spec.Name, Stage: "load_spec", Err: err}
	}

	coll, err := ebpf.NewCollection(collSpec)
	if err != nil {
		return nil, &LoadError{Program: spec.Name, Stage: "new_collection", Err: err}
	}

	structOpsMap, ok := coll.Maps[spec.StructOpsMap]
	if !ok {
		coll.Close()
		return nil, &LoadError{
			Program: spec.Name,
			Stage:   "find_struct_ops_map",
			Err:     fmt.Errorf("map %q not present in object", spec.StructOpsMap),
		}
	}

	prog := firstProgram(coll)
	if prog == nil {
		coll.Close()
		return nil, &LoadError{Program: spec.Name, Stage: "find_program", Err: fmt.Errorf("no programs in object")}
	}

	lnk, err := link.AttachRawLink(link.RawLinkOptions{
		Target:  int(structOpsMap.FD()),
		Program: prog,
		Attach:  ebpf.AttachStructOps,
	})
	if err != nil {
		coll.Close()
		return nil, &LoadError{Program: spec.Name, Stage: "attach_struct_ops", Err: err}
	}

	if l.verbose {
		log.Printf("[ebpf] native sched_ext attach: %s (struct_ops map %q)", spec.Name, spec.StructOpsMap)
	}

	return &LoadedProgram{Spec: spec, Collection: coll, Link: lnk}, nil
}

func firstProgram(coll *ebpf.Collection) *ebpf.Program {
	for _, p := range coll.Programs {
		return p
	}
	return nil
}
