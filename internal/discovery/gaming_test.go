package discovery

import (
	"context"
	"testing"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

func TestGamingScanner_MatchesBuiltinLauncher(t *testing.T) {
	procRoot := t.TempDir()
	writeProcStat(t, procRoot, 100, "steam", 1, 100)
	writeProcStat(t, procRoot, 101, "bash", 1, 101)

	cfg := Config{ProcRoot: procRoot}
	s := NewGamingScanner()

	delta, err := s.Scan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	hint, ok := delta.GamingPIDs[100]
	if !ok {
		t.Fatalf("expected PGID 100 to be recorded, got %+v", delta.GamingPIDs)
	}
	if hint.Class != sched.ClassGaming {
		t.Fatalf("Class = %v, want ClassGaming", hint.Class)
	}
	if hint.CompatLayer {
		t.Fatalf("steam is not a compat layer process")
	}
	if _, ok := delta.GamingPIDs[101]; ok {
		t.Fatalf("bash should not be recorded as gaming")
	}
}

func TestGamingScanner_FlagsCompatLayer(t *testing.T) {
	procRoot := t.TempDir()
	writeProcStat(t, procRoot, 200, "wine64", 1, 200)

	s := NewGamingScanner()
	delta, err := s.Scan(context.Background(), Config{ProcRoot: procRoot})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	hint, ok := delta.GamingPIDs[200]
	if !ok || !hint.CompatLayer {
		t.Fatalf("expected wine64 PGID flagged as compat layer, got %+v", delta.GamingPIDs)
	}
}

func TestGamingScanner_OperatorConfiguredExecutable(t *testing.T) {
	procRoot := t.TempDir()
	writeProcStat(t, procRoot, 300, "mygame.bin", 1, 300)

	cfg := Config{ProcRoot: procRoot, GamingExecutables: []string{"mygame.bin"}}
	s := NewGamingScanner()

	delta, err := s.Scan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := delta.GamingPIDs[300]; !ok {
		t.Fatalf("expected operator-configured executable to match")
	}
}

func TestGamingScanner_AlwaysAvailable(t *testing.T) {
	if !NewGamingScanner().Available(Config{}) {
		t.Fatalf("gaming scanner should always be available")
	}
}
