package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/hasher"
)

// Vector-score floors. Probes that gate a decision use the strict one;
// general retrieval accepts weaker matches.
const (
	ProbeScoreThreshold   = 0.5
	GeneralScoreThreshold = 0.3
)

// Hints are optional anchors the caller already knows.
type Hints struct {
	ScenePosition *int
	Character     string
	ActiveThreads []string
}

// Retrieved is the raw material for the prompt assembler, split into the
// globally-scoped sections (outline, sheets) and the query-scoped ones.
type Retrieved struct {
	Global         []string
	Sections       []string
	ScenePositions []int
}

// VectorSearch embeds the query and returns scene summaries scoring at or
// above minScore.
func VectorSearch(ctx context.Context, d Deps, scriptID uuid.UUID, query string, k int, minScore float64) ([]repos.VectorHit, error) {
	vecs, err := d.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return d.Embeddings.Search(dbctx.Context{Ctx: ctx}, scriptID, vecs[0], k, minScore)
}

// RetrieveForIntent gathers intent-scoped context. Each intent has a fixed
// recipe; missing anchors degrade to whatever is available rather than fail.
func RetrieveForIntent(ctx context.Context, d Deps, intent string, scriptID uuid.UUID, query string, hints Hints) (*Retrieved, error) {
	switch intent {
	case IntentLocalEdit:
		return retrieveLocalEdit(ctx, d, scriptID, hints)
	case IntentSceneFeedback:
		return retrieveSceneFeedback(ctx, d, scriptID, hints)
	case IntentBrainstorm:
		return retrieveBrainstorm(ctx, d, scriptID, query)
	default:
		return retrieveGlobalQuestion(ctx, d, scriptID, query)
	}
}

// local_edit: the hinted scene with its immediate neighbors, plus a note on
// the active thread if one is known.
func retrieveLocalEdit(ctx context.Context, d Deps, scriptID uuid.UUID, hints Hints) (*Retrieved, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out := &Retrieved{}
	if hints.ScenePosition == nil {
		return out, nil
	}
	p := *hints.ScenePosition
	scenes, err := d.Scenes.ListByPositions(dbc, scriptID, []int{p - 1, p, p + 1})
	if err != nil {
		return nil, err
	}
	for i := range scenes {
		sc := &scenes[i]
		out.Sections = append(out.Sections, renderSceneFull(sc))
		out.ScenePositions = append(out.ScenePositions, sc.Position)
	}
	for _, name := range hints.ActiveThreads {
		thread, err := d.Threads.GetByName(dbc, scriptID, name)
		if err != nil {
			return nil, err
		}
		if thread != nil {
			out.Global = append(out.Global, fmt.Sprintf("Active thread %q (%s): %s", thread.Name, thread.Kind, thread.Description))
			break
		}
	}
	return out, nil
}

// scene_feedback: the hinted scene, its three nearest neighbors by
// embedding, and sheets for the characters in it.
func retrieveSceneFeedback(ctx context.Context, d Deps, scriptID uuid.UUID, hints Hints) (*Retrieved, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out := &Retrieved{}
	if hints.ScenePosition == nil {
		return out, nil
	}
	sc, err := d.Scenes.GetByPosition(dbc, scriptID, *hints.ScenePosition)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return out, nil
	}
	out.Sections = append(out.Sections, renderSceneFull(sc))
	out.ScenePositions = append(out.ScenePositions, sc.Position)

	hits, err := d.Embeddings.NearestToScene(dbc, scriptID, sc.ID, 3)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out.Sections = append(out.Sections, renderHit(h))
		out.ScenePositions = append(out.ScenePositions, h.Position)
	}

	rels, err := d.Relationships.ListByScene(dbc, sc.ID)
	if err != nil {
		return nil, err
	}
	for i, rel := range rels {
		if i == 3 {
			break
		}
		otherID := rel.ToSceneID
		if otherID == sc.ID {
			otherID = rel.FromSceneID
		}
		other, err := d.Scenes.GetByID(dbc, otherID)
		if err != nil {
			return nil, err
		}
		if other == nil {
			continue
		}
		note := rel.Note
		if note == "" {
			note = "(no note)"
		}
		out.Global = append(out.Global, fmt.Sprintf("Linked scene %d (%s, %s): %s", other.Position, other.Heading, rel.Kind, note))
	}

	names, err := d.Scenes.CharactersForScene(dbc, sc.ID)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		sheet, err := d.Sheets.Get(dbc, scriptID, name)
		if err != nil {
			return nil, err
		}
		if sheet != nil && sheet.Sheet != "" {
			out.Global = append(out.Global, renderSheet(sheet))
		}
	}
	return out, nil
}

// global_question: the outline (flagged when stale), the top eight vector
// hits over scene summaries, and every character sheet.
func retrieveGlobalQuestion(ctx context.Context, d Deps, scriptID uuid.UUID, query string) (*Retrieved, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out := &Retrieved{}
	if section, err := renderOutline(dbc, d, scriptID); err != nil {
		return nil, err
	} else if section != "" {
		out.Global = append(out.Global, section)
	}

	hits, err := VectorSearch(ctx, d, scriptID, query, 8, GeneralScoreThreshold)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out.Sections = append(out.Sections, renderHit(h))
		out.ScenePositions = append(out.ScenePositions, h.Position)
	}

	sheets, err := d.Sheets.ListByScript(dbc, scriptID)
	if err != nil {
		return nil, err
	}
	for i := range sheets {
		if sheets[i].Sheet != "" {
			out.Global = append(out.Global, renderSheet(&sheets[i]))
		}
	}
	return out, nil
}

// brainstorm: outline plus five vector hits, no full scene text.
func retrieveBrainstorm(ctx context.Context, d Deps, scriptID uuid.UUID, query string) (*Retrieved, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out := &Retrieved{}
	if section, err := renderOutline(dbc, d, scriptID); err != nil {
		return nil, err
	} else if section != "" {
		out.Global = append(out.Global, section)
	}
	hits, err := VectorSearch(ctx, d, scriptID, query, 5, GeneralScoreThreshold)
	if err != nil {
		return nil, err
	}
	for _, h := range hits {
		out.Sections = append(out.Sections, renderHit(h))
		out.ScenePositions = append(out.ScenePositions, h.Position)
	}
	return out, nil
}

func renderOutline(dbc dbctx.Context, d Deps, scriptID uuid.UUID) (string, error) {
	outline, err := d.Outlines.GetByScript(dbc, scriptID)
	if err != nil {
		return "", err
	}
	if outline == nil || outline.Outline == "" {
		return "", nil
	}
	if outline.IsStale {
		return fmt.Sprintf("OUTLINE (may be out of date, %d scenes changed since generation):\n%s", outline.DirtySceneCount, outline.Outline), nil
	}
	return "OUTLINE:\n" + outline.Outline, nil
}

func renderSceneFull(sc *types.Scene) string {
	return fmt.Sprintf("--- SCENE %d (%s) ---\n%s", sc.Position, sc.Heading, hasher.SceneText(sc))
}

func renderHit(h repos.VectorHit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- SCENE %d (%s) ---\n", h.Position, h.Heading)
	if h.Summary != "" {
		sb.WriteString(h.Summary)
	} else {
		sb.WriteString("(no summary)")
	}
	return sb.String()
}

func renderSheet(s *types.CharacterSheet) string {
	return fmt.Sprintf("CHARACTER %s:\n%s", s.Name, s.Sheet)
}
