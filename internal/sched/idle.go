package sched

import "sync"

// IdleBitmap tracks which CPUs are currently idle. A real native attach
// delegates this to the kernel's own idle-CPU bitmap and its SMT-aware
// variant; in shadow mode (no attach, spec §1 external collaborator)
// the engine owns this bitmap itself so classification, selection, and
// metrics stay fully exercisable without a patched kernel.
type IdleBitmap struct {
	mu   sync.Mutex
	idle []bool
}

// NewIdleBitmap creates a bitmap for nrCPUs CPUs, initially idle.
func NewIdleBitmap(nrCPUs int) *IdleBitmap {
	b := &IdleBitmap{idle: make([]bool, nrCPUs)}
	for i := range b.idle {
		b.idle[i] = true
	}
	return b
}

// IsIdle reports whether cpu is currently idle.
func (b *IdleBitmap) IsIdle(cpu int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cpu >= 0 && cpu < len(b.idle) && b.idle[cpu]
}

// TestAndClear atomically reports idle and clears the bit in one step,
// the kernel primitive the selector relies on: a direct-dispatch path
// never selects a CPU it did not itself observe idle (spec §8).
func (b *IdleBitmap) TestAndClear(cpu int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cpu < 0 || cpu >= len(b.idle) || !b.idle[cpu] {
		return false
	}
	b.idle[cpu] = false
	return true
}

// SetIdle marks cpu idle or busy. Called by the engine when a CPU
// starts or stops running a task, and by tests simulating kernel state.
func (b *IdleBitmap) SetIdle(cpu int, idle bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cpu >= 0 && cpu < len(b.idle) {
		b.idle[cpu] = idle
	}
}
