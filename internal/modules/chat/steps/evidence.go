package steps

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// evidenceItemMaxBytes bounds one item's content before it is marked
	// truncated.
	evidenceItemMaxBytes = 4096
	// DefaultMaxEvidenceItems is the keep cap after ranking.
	DefaultMaxEvidenceItems = 5

	truncatedMarker = "[truncated]"
)

// ToolResult is one executed tool call fed into the evidence builder.
type ToolResult struct {
	Tool    string
	Input   map[string]any
	Content string
}

// EvidenceItem is a ranked fragment of tool output.
type EvidenceItem struct {
	Source       string
	SceneNumbers []int
	Content      string
	CharCount    int
	Score        float64
}

// Evidence is the ranked, budget-truncated bundle handed to the synthesis
// prompt.
type Evidence struct {
	Question      string
	Items         []EvidenceItem
	Truncated     bool
	OriginalCount int
}

var sceneMarkerRe = regexp.MustCompile(`(?m)^--- SCENE (\d+) \((.*)\) ---$`)

var stopwords = map[string]bool{
	"a": true, "about": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "do": true, "does": true, "for": true,
	"how": true, "i": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "the": true, "this": true, "that": true, "to": true,
	"what": true, "where": true, "which": true, "why": true, "with": true,
}

// BuildEvidence filters, splits, scores, ranks, and truncates tool results
// into a bundle of at most maxItems. maxItems <= 0 uses the default cap.
func BuildEvidence(question string, results []ToolResult, maxItems int) *Evidence {
	if maxItems <= 0 {
		maxItems = DefaultMaxEvidenceItems
	}
	queryTokens := contentTokens(question)
	questionScenes := SceneNumbers(question)

	var items []EvidenceItem
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" || strings.HasPrefix(content, "Error:") {
			continue
		}
		for _, part := range splitSceneBatches(content) {
			item := EvidenceItem{
				Source:       r.Tool,
				SceneNumbers: part.scenes,
				Content:      part.content,
				CharCount:    len(part.content),
			}
			item.Score = scoreEvidence(queryTokens, questionScenes, item)
			items = append(items, item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	ev := &Evidence{Question: question, OriginalCount: len(items)}
	for i := range items {
		if len(ev.Items) >= maxItems {
			ev.Truncated = true
			break
		}
		it := items[i]
		if len(it.Content) > evidenceItemMaxBytes {
			it.Content = it.Content[:evidenceItemMaxBytes] + truncatedMarker
			it.CharCount = len(it.Content)
			ev.Truncated = true
		}
		ev.Items = append(ev.Items, it)
	}
	return ev
}

type sceneBatch struct {
	scenes  []int
	content string
}

// splitSceneBatches breaks a batched tool result on its scene markers,
// yielding one part per scene. Unmarked results come back whole, tagged with
// any scene numbers mentioned inline.
func splitSceneBatches(content string) []sceneBatch {
	locs := sceneMarkerRe.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return []sceneBatch{{scenes: SceneNumbers(content), content: content}}
	}
	var out []sceneBatch
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		n, _ := strconv.Atoi(content[loc[2]:loc[3]])
		body := strings.TrimSpace(content[loc[1]:end])
		if body == "" {
			continue
		}
		out = append(out, sceneBatch{scenes: []int{n}, content: body})
	}
	return out
}

// scoreEvidence is the fraction of non-stopword query tokens found in the
// item plus a bonus when the item covers a scene the question names.
func scoreEvidence(queryTokens []string, questionScenes []int, item EvidenceItem) float64 {
	score := 0.0
	if len(queryTokens) > 0 {
		lower := strings.ToLower(item.Content)
		hits := 0
		for _, t := range queryTokens {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		score = float64(hits) / float64(len(queryTokens))
	}
	if overlaps(questionScenes, item.SceneNumbers) {
		score += 0.25
	}
	return score
}

func contentTokens(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?:;'\"()")
		if w == "" || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Render formats the bundle for the synthesis prompt.
func (e *Evidence) Render() string {
	if e == nil || len(e.Items) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, item := range e.Items {
		if len(item.SceneNumbers) > 0 {
			nums := make([]string, len(item.SceneNumbers))
			for j, n := range item.SceneNumbers {
				nums[j] = strconv.Itoa(n)
			}
			fmt.Fprintf(&sb, "[%d] From %s (Scenes: %s): %s\n", i+1, item.Source, strings.Join(nums, ", "), item.Content)
		} else {
			fmt.Fprintf(&sb, "[%d] From %s: %s\n", i+1, item.Source, item.Content)
		}
	}
	if omitted := e.OriginalCount - len(e.Items); omitted > 0 {
		fmt.Fprintf(&sb, "%d lower-relevance results omitted\n", omitted)
	}
	return sb.String()
}
