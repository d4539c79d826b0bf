package ebpf

import (
	"context"
	"testing"
)

func TestTryLoad_FailsPrecheckWithoutNativeSupport(t *testing.T) {
	l := &Loader{btfInfo: &BTFInfo{Available: false}}
	_, err := l.TryLoad(context.Background(), &NativePrograms[0])
	if err == nil {
		t.Fatal("expected an error when BTF/CO-RE is unavailable")
	}
	loadErr, ok := err.(*LoadError)
	if !ok {
		t.Fatalf("expected a *LoadError, got %T", err)
	}
	if loadErr.Stage != "precheck" {
		t.Fatalf("Stage = %q, want precheck", loadErr.Stage)
	}
}

func TestLoadError_MessageIncludesStageAndProgram(t *testing.T) {
	err := &LoadError{Program: "ghostbrew", Stage: "load_spec", Err: context.DeadlineExceeded}
	msg := err.Error()
	if !containsString(msg, "ghostbrew") || !containsString(msg, "load_spec") {
		t.Fatalf("LoadError message missing program/stage: %q", msg)
	}
}

func TestLoadError_Unwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &LoadError{Program: "ghostbrew", Stage: "load_spec", Err: inner}
	if err.Unwrap() != inner {
		t.Fatal("Unwrap should return the wrapped error")
	}
}
