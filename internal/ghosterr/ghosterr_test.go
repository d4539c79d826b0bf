package ghosterr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_MessageWithAndWithoutCause(t *testing.T) {
	e1 := New(ScanTimeout, "gpu scanner", nil)
	if e1.Error() != "scan_timeout: gpu scanner" {
		t.Fatalf("unexpected message: %s", e1.Error())
	}

	cause := errors.New("deadline exceeded")
	e2 := New(AttachFailed, "ghostbrew program", cause)
	want := "attach_failed: ghostbrew program: deadline exceeded"
	if e2.Error() != want {
		t.Fatalf("Error() = %q, want %q", e2.Error(), want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New(TablePopulationFailed, "gaming_pids", cause)
	if !errors.Is(e, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestKind_FatalClassification(t *testing.T) {
	fatal := []Kind{Unsupported, AttachFailed, WatchdogTrip}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}

	nonFatal := []Kind{TablePopulationFailed, ScanTimeout, InvalidDirective, RingOverflow}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
}

func TestKind_ExitCodesAreDistinct(t *testing.T) {
	seen := map[int]Kind{}
	for _, k := range []Kind{Unsupported, AttachFailed, WatchdogTrip} {
		code := k.ExitCode()
		if other, ok := seen[code]; ok {
			t.Fatalf("exit code %d used by both %s and %s", code, other, k)
		}
		seen[code] = k
	}
}

func TestAs_FindsWrappedError(t *testing.T) {
	inner := New(RingOverflow, "events", nil)
	wrapped := fmt.Errorf("dispatch: %w", inner)

	found := As(wrapped)
	if found == nil || found.Kind != RingOverflow {
		t.Fatalf("As() = %+v, want RingOverflow", found)
	}
}

func TestAs_ReturnsNilForUnrelatedError(t *testing.T) {
	if found := As(errors.New("plain error")); found != nil {
		t.Fatalf("expected nil for a plain error, got %+v", found)
	}
}
