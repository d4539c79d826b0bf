package sched

import "testing"

func TestIdleBitmap_StartsAllIdle(t *testing.T) {
	b := NewIdleBitmap(4)
	for cpu := 0; cpu < 4; cpu++ {
		if !b.IsIdle(cpu) {
			t.Fatalf("CPU %d not idle at construction", cpu)
		}
	}
}

func TestIdleBitmap_TestAndClearClaimsOnce(t *testing.T) {
	b := NewIdleBitmap(2)

	if ok := b.TestAndClear(0); !ok {
		t.Fatalf("first TestAndClear(0) = false, want true")
	}
	if ok := b.TestAndClear(0); ok {
		t.Fatalf("second TestAndClear(0) = true, want false (already claimed)")
	}
}

func TestIdleBitmap_SetIdleRestoresAvailability(t *testing.T) {
	b := NewIdleBitmap(1)
	b.TestAndClear(0)
	b.SetIdle(0, true)

	if !b.IsIdle(0) {
		t.Fatalf("CPU 0 not idle after SetIdle(0, true)")
	}
}

func TestIdleBitmap_OutOfRangeIsSafe(t *testing.T) {
	b := NewIdleBitmap(2)
	if b.IsIdle(5) {
		t.Fatalf("IsIdle(5) = true for an out-of-range CPU")
	}
	if b.TestAndClear(-1) {
		t.Fatalf("TestAndClear(-1) = true for an out-of-range CPU")
	}
}
