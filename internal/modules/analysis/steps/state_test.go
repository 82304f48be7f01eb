package steps

import (
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

func stateCfg() config.Config {
	return config.Config{
		EmptyToPartialMinScenes:    3,
		EmptyToPartialMinPages:     10,
		PartialToAnalyzedMinScenes: 30,
		PartialToAnalyzedMinPages:  60,
	}
}

func TestNextStateTransitions(t *testing.T) {
	cfg := stateCfg()
	cases := []struct {
		name    string
		current string
		scenes  int
		pages   int
		want    string
	}{
		{"empty stays empty", types.StateEmpty, 2, 4, types.StateEmpty},
		{"scene threshold promotes to partial", types.StateEmpty, 3, 1, types.StatePartial},
		{"page threshold promotes to partial", types.StateEmpty, 1, 10, types.StatePartial},
		{"partial stays partial", types.StatePartial, 12, 20, types.StatePartial},
		{"scene threshold promotes to analyzed", types.StatePartial, 30, 20, types.StateAnalyzed},
		{"page threshold promotes to analyzed", types.StatePartial, 12, 60, types.StateAnalyzed},
		{"empty can cross both gates at once", types.StateEmpty, 40, 90, types.StateAnalyzed},
		{"analyzed never regresses", types.StateAnalyzed, 0, 0, types.StateAnalyzed},
		{"partial never regresses", types.StatePartial, 0, 0, types.StatePartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextState(cfg, tc.current, tc.scenes, tc.pages)
			if got != tc.want {
				t.Fatalf("NextState(%s, %d scenes, %d pages) = %s, want %s",
					tc.current, tc.scenes, tc.pages, got, tc.want)
			}
		})
	}
}

func TestEstimatePages(t *testing.T) {
	if got := EstimatePages(0); got != 0 {
		t.Fatalf("0 words: got %d pages", got)
	}
	if got := EstimatePages(1); got != 1 {
		t.Fatalf("1 word: got %d pages, want 1", got)
	}
	if got := EstimatePages(220); got != 1 {
		t.Fatalf("220 words: got %d pages, want 1", got)
	}
	if got := EstimatePages(221); got != 2 {
		t.Fatalf("221 words: got %d pages, want 2", got)
	}
}
