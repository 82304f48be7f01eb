package steps

import (
	"fmt"
	"strings"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

const sceneSummarySystem = `You are a screenplay analyst. Summarize the scene you are given under exactly these headings:
Action: what physically happens.
Conflict: the tension driving the scene.
Character Changes: who shifts, and how.
Plot Progression: what the scene moves forward.
Tone: the emotional register.
Be concrete and brief. Use the character and location names as written.`

func buildSceneSummaryPrompt(position int, heading, text string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SCENE %d: %s\n\n", position, heading)
	sb.WriteString(text)
	return sb.String()
}

const outlineSystem = `You are a screenplay analyst. Given per-scene summaries in order, write a global outline of the script: act structure, major turning points, open threads, and pacing concerns. Reference scenes by number.`

func buildOutlinePrompt(title string, summaries []types.SceneSummary, positions map[string]int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SCRIPT: %s\n\n", title)
	for _, s := range summaries {
		fmt.Fprintf(&sb, "--- SCENE %d ---\n%s\n\n", positions[s.SceneID.String()], s.Summary)
	}
	return sb.String()
}

const characterSheetSystem = `You are a screenplay analyst. Build a character sheet from the scenes the character appears in: what they want, what they need, their arc so far, key relationships, and pivotal moments. Reference scenes by number.`

func buildCharacterSheetPrompt(name string, scenes []types.Scene, summaryBySceneID map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CHARACTER: %s\n\n", name)
	for _, sc := range scenes {
		fmt.Fprintf(&sb, "--- SCENE %d (%s) ---\n", sc.Position, sc.Heading)
		if sum := summaryBySceneID[sc.ID.String()]; sum != "" {
			sb.WriteString(sum)
		} else {
			sb.WriteString("(no summary yet)")
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}
