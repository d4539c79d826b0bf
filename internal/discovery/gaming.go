package discovery

import (
	"context"
	"strings"

	"github.com/ghostkellz/ghostbrew/internal/sched"
)

// builtinGamingNames supplements sched's own literal/launcher lists so
// the gaming scanner can pre-populate GamingPids by PGID ahead of the
// hot path ever seeing the process, matching step 2 of the
// classification chain (PGID lookup).
var builtinGamingNames = []string{
	"steam", "steamwebhelper", "lutris", "heroic", "legendary",
	"gamescope", "bottles", "wine", "wine64", "wineserver",
	"wine-preloader", "proton",
}

var compatLayerNames = []string{"wine", "wine64", "wineserver", "wine-preloader", "proton"}

// GamingScanner walks the process tree for known game launchers and
// compatibility-layer processes and records their process group as
// gaming, grounded on the teacher's process collector's procfs walk.
type GamingScanner struct{}

func NewGamingScanner() *GamingScanner { return &GamingScanner{} }

func (s *GamingScanner) Name() string { return "gaming" }

func (s *GamingScanner) Available(cfg Config) bool { return true }

func (s *GamingScanner) Scan(ctx context.Context, cfg Config) (Delta, error) {
	procs := readAllProcs(cfg.ProcRoot)
	names := append(append([]string{}, builtinGamingNames...), cfg.GamingExecutables...)

	hints := make(map[int32]GamingHint)
	for _, p := range procs {
		if !matchesGamingName(p.Comm, names) {
			continue
		}
		hints[p.PGID] = GamingHint{
			Class:       sched.ClassGaming,
			CompatLayer: matchesGamingName(p.Comm, compatLayerNames),
		}
	}

	return Delta{Scanner: s.Name(), GamingPIDs: hints}, nil
}

func matchesGamingName(comm string, names []string) bool {
	lc := strings.ToLower(comm)
	for _, n := range names {
		if n != "" && strings.HasPrefix(lc, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
