package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/hasher"
)

const (
	ToolGetScene          = "get_scene"
	ToolGetScenes         = "get_scenes"
	ToolSearchScenes      = "search_scenes"
	ToolGetCharacterSheet = "get_character_sheet"
	ToolGetOutline        = "get_outline"
	ToolAnalyzePacing     = "analyze_pacing"
)

// ChatTools is the closed tool set offered during the tool loop.
func ChatTools() []anthropic.Tool {
	return []anthropic.Tool{
		{
			Name:        ToolGetScene,
			Description: "Fetch the full text of one scene by its position in the script.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"position": map[string]any{"type": "integer", "description": "1-based scene position"},
				},
				"required": []string{"position"},
			},
		},
		{
			Name:        ToolGetScenes,
			Description: "Fetch the full text of a contiguous range of scenes.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{"type": "integer"},
					"end":   map[string]any{"type": "integer"},
				},
				"required": []string{"start", "end"},
			},
		},
		{
			Name:        ToolSearchScenes,
			Description: "Semantic search over scene summaries. Returns the best-matching scenes with their summaries.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"k":     map[string]any{"type": "integer", "description": "max results, default 5"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolGetCharacterSheet,
			Description: "Fetch the analysis sheet for a character by name.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        ToolGetOutline,
			Description: "Fetch the current global outline of the script.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolAnalyzePacing,
			Description: "Compute per-scene length estimates and flag unusually long or short stretches.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// ExecuteTool runs one tool call. Failures come back as an "Error:" content
// string rather than an error so the loop can continue and the evidence
// builder can drop them.
func ExecuteTool(ctx context.Context, d Deps, scriptID uuid.UUID, name string, input map[string]any) string {
	out, err := executeTool(ctx, d, scriptID, name, input)
	if err != nil {
		return "Error: " + err.Error()
	}
	if strings.TrimSpace(out) == "" {
		return "Error: no results"
	}
	return out
}

func executeTool(ctx context.Context, d Deps, scriptID uuid.UUID, name string, input map[string]any) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	switch name {
	case ToolGetScene:
		pos, ok := intArg(input, "position")
		if !ok {
			return "", fmt.Errorf("missing position")
		}
		sc, err := d.Scenes.GetByPosition(dbc, scriptID, pos)
		if err != nil {
			return "", err
		}
		if sc == nil {
			return "", fmt.Errorf("no scene at position %d", pos)
		}
		return renderSceneFull(sc), nil

	case ToolGetScenes:
		start, ok1 := intArg(input, "start")
		end, ok2 := intArg(input, "end")
		if !ok1 || !ok2 || end < start {
			return "", fmt.Errorf("bad range")
		}
		positions := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			positions = append(positions, p)
		}
		scenes, err := d.Scenes.ListByPositions(dbc, scriptID, positions)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(scenes))
		for i := range scenes {
			parts = append(parts, renderSceneFull(&scenes[i]))
		}
		return strings.Join(parts, "\n\n"), nil

	case ToolSearchScenes:
		query, _ := input["query"].(string)
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("missing query")
		}
		k, ok := intArg(input, "k")
		if !ok || k <= 0 {
			k = 5
		}
		hits, err := VectorSearch(ctx, d, scriptID, query, k, GeneralScoreThreshold)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(hits))
		for _, h := range hits {
			parts = append(parts, fmt.Sprintf("%s\n(relevance %.2f)", renderHit(h), h.Score))
		}
		return strings.Join(parts, "\n\n"), nil

	case ToolGetCharacterSheet:
		charName, _ := input["name"].(string)
		if strings.TrimSpace(charName) == "" {
			return "", fmt.Errorf("missing name")
		}
		sheet, err := d.Sheets.Get(dbc, scriptID, strings.ToUpper(strings.TrimSpace(charName)))
		if err != nil {
			return "", err
		}
		if sheet == nil || sheet.Sheet == "" {
			return "", fmt.Errorf("no sheet for %s", charName)
		}
		return renderSheet(sheet), nil

	case ToolGetOutline:
		return renderOutlineOrErr(dbc, d, scriptID)

	case ToolAnalyzePacing:
		return analyzePacing(dbc, d, scriptID)

	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func renderOutlineOrErr(dbc dbctx.Context, d Deps, scriptID uuid.UUID) (string, error) {
	section, err := renderOutline(dbc, d, scriptID)
	if err != nil {
		return "", err
	}
	if section == "" {
		return "", fmt.Errorf("no outline generated yet")
	}
	return section, nil
}

// analyzePacing reports page estimates per scene and flags outliers: scenes
// over three pages and runs of three or more sub-half-page scenes.
func analyzePacing(dbc dbctx.Context, d Deps, scriptID uuid.UUID) (string, error) {
	scenes, err := d.Scenes.ListByScript(dbc, scriptID)
	if err != nil {
		return "", err
	}
	if len(scenes) == 0 {
		return "", fmt.Errorf("script has no scenes")
	}

	var sb strings.Builder
	shortRun := 0
	for i := range scenes {
		sc := &scenes[i]
		words := 0
		if list, perr := blocks.ParseList(sc.Blocks); perr == nil {
			words = blocks.WordCount(list)
		} else {
			words = len(strings.Fields(hasher.SceneText(sc)))
		}
		pages := float64(words) / 220.0
		fmt.Fprintf(&sb, "Scene %d (%s): ~%.1f pages, %d words", sc.Position, sc.Heading, pages, words)
		if pages > 3 {
			sb.WriteString(" [long]")
		}
		if pages < 0.5 {
			shortRun++
			if shortRun >= 3 {
				sb.WriteString(" [third short scene in a row]")
			}
		} else {
			shortRun = 0
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func intArg(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
