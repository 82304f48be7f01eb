package steps

import (
	"reflect"
	"testing"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

func TestTouchedThreadsMatchesCaseInsensitively(t *testing.T) {
	known := []types.PlotThread{
		{Name: "The Heist"},
		{Name: "Mara's Revenge"},
		{Name: "Lost Brother"},
	}

	got := TouchedThreads(known,
		"How does the heist set up act two?",
		"Tightening MARA'S REVENGE here keeps the midpoint turn earned.",
	)
	want := []string{"The Heist", "Mara's Revenge"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("touched threads = %v, want %v", got, want)
	}

	if got := TouchedThreads(known, "What color is the car?"); got != nil {
		t.Fatalf("unrelated turn touched %v", got)
	}
	if got := TouchedThreads(nil, "anything"); got != nil {
		t.Fatalf("no known threads but touched %v", got)
	}
}

func TestMergeRecentStringsPrependsAndBounds(t *testing.T) {
	prior := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	got := mergeRecentStrings(prior, []string{"x", "b"})
	want := []string{"x", "b", "a", "c", "d", "e", "f", "g"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	if len(got) != maxActiveItems {
		t.Fatalf("list length %d, want %d", len(got), maxActiveItems)
	}
}

func TestExtractCommitmentPrefersExplicitCommitment(t *testing.T) {
	answer := "The scene drags in the middle. I'll tighten the diner exchange next. Does that work for you?"
	got := ExtractCommitment(answer)
	if got != "I'll tighten the diner exchange next." {
		t.Fatalf("commitment = %q", got)
	}
}
