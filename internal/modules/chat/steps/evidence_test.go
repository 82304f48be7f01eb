package steps

import (
	"fmt"
	"strings"
	"testing"
)

func TestEvidenceRanksFullMatchAboveNoMatch(t *testing.T) {
	question := "Where does Marcus confront Elena about the ledger?"
	results := []ToolResult{
		{Tool: "search_scenes", Content: "A quiet morning at the docks. Seagulls. Nothing happens."},
		{Tool: "get_scene", Content: "Marcus slams the ledger down and confront turns to shouting as Elena backs away."},
	}
	ev := BuildEvidence(question, results, 5)
	if len(ev.Items) != 2 {
		t.Fatalf("want 2 items, got %d", len(ev.Items))
	}
	if ev.Items[0].Source != "get_scene" {
		t.Fatalf("full-match item not ranked first: %+v", ev.Items[0])
	}
	if ev.Items[0].Score <= ev.Items[1].Score {
		t.Fatalf("scores not strictly ordered: %.2f vs %.2f", ev.Items[0].Score, ev.Items[1].Score)
	}
}

func TestEvidenceDropsEmptyAndErrorResults(t *testing.T) {
	ev := BuildEvidence("anything", []ToolResult{
		{Tool: "get_scene", Content: ""},
		{Tool: "get_outline", Content: "Error: no outline generated yet"},
		{Tool: "get_scene", Content: "INT. HOUSE - DAY. John walks in."},
	}, 5)
	if len(ev.Items) != 1 || ev.Items[0].Content != "INT. HOUSE - DAY. John walks in." {
		t.Fatalf("got %+v", ev.Items)
	}
}

func TestEvidenceSplitsBatchedScenes(t *testing.T) {
	content := "--- SCENE 4 (INT. HOUSE - DAY) ---\nJohn walks in.\n--- SCENE 5 (EXT. STREET - NIGHT) ---\nJohn runs out."
	ev := BuildEvidence("where does John walk", []ToolResult{{Tool: "get_scenes", Content: content}}, 5)
	if len(ev.Items) != 2 {
		t.Fatalf("want 2 split items, got %d", len(ev.Items))
	}
	for _, item := range ev.Items {
		if len(item.SceneNumbers) != 1 {
			t.Fatalf("item missing scene number: %+v", item)
		}
		if strings.Contains(item.Content, "--- SCENE") {
			t.Fatalf("marker leaked into content: %q", item.Content)
		}
	}
}

func TestEvidenceSceneNumberBonus(t *testing.T) {
	content := "--- SCENE 7 (INT. BAR - NIGHT) ---\nnothing relevant\n--- SCENE 9 (INT. BAR - LATER) ---\nnothing relevant"
	ev := BuildEvidence("what happens in scene 9", []ToolResult{{Tool: "get_scenes", Content: content}}, 5)
	if ev.Items[0].SceneNumbers[0] != 9 {
		t.Fatalf("scene named in the question not ranked first: %+v", ev.Items)
	}
}

func TestEvidenceTruncatesLongItemsAndCapsCount(t *testing.T) {
	long := strings.Repeat("x", 5000)
	var results []ToolResult
	for i := 0; i < 7; i++ {
		results = append(results, ToolResult{Tool: "search_scenes", Content: fmt.Sprintf("result %d %s", i, long)})
	}
	ev := BuildEvidence("question", results, 5)
	if len(ev.Items) != 5 {
		t.Fatalf("cap not applied: %d items", len(ev.Items))
	}
	if !ev.Truncated {
		t.Fatal("truncated flag not set")
	}
	if ev.OriginalCount != 7 {
		t.Fatalf("original count %d, want 7", ev.OriginalCount)
	}
	if !strings.HasSuffix(ev.Items[0].Content, "[truncated]") {
		t.Fatal("long item not marked truncated")
	}
	if len(ev.Items[0].Content) != evidenceItemMaxBytes+len("[truncated]") {
		t.Fatalf("item length %d", len(ev.Items[0].Content))
	}
	rendered := ev.Render()
	if !strings.Contains(rendered, "2 lower-relevance results omitted") {
		t.Fatalf("render missing omitted line:\n%s", rendered)
	}
}

func TestEvidenceRenderFormat(t *testing.T) {
	ev := &Evidence{
		Question: "q",
		Items: []EvidenceItem{
			{Source: "get_scenes", SceneNumbers: []int{4, 5}, Content: "John walks in."},
			{Source: "get_outline", Content: "Three acts."},
		},
		OriginalCount: 2,
	}
	rendered := ev.Render()
	if !strings.Contains(rendered, "[1] From get_scenes (Scenes: 4, 5): John walks in.") {
		t.Fatalf("bad item rendering:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[2] From get_outline: Three acts.") {
		t.Fatalf("bad sceneless rendering:\n%s", rendered)
	}
	if strings.Contains(rendered, "omitted") {
		t.Fatalf("unexpected omitted line:\n%s", rendered)
	}
}
