package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

// maxActiveItems bounds each recency list in the conversation state.
const maxActiveItems = 8

// compactKeepRecent is how many recent messages stay verbatim after the
// rolling summary absorbs the rest.
const compactKeepRecent = 6

// UpdateConversationState folds this turn into the working memory: scene
// positions, characters, and plot threads touched, the resolved intent, and
// the sentence the assistant committed to.
func UpdateConversationState(ctx context.Context, d Deps, state *types.ConversationState, intent, answer string, scenePositions []int, characters, threads []string) error {
	positions := mergeRecentInts(decodeInts(state.ActiveScenePositions), scenePositions)
	chars := mergeRecentStrings(decodeStrings(state.ActiveCharacters), characters)
	active := mergeRecentStrings(decodeStrings(state.ActiveThreads), threads)

	posJSON, _ := json.Marshal(positions)
	charJSON, _ := json.Marshal(chars)
	threadJSON, _ := json.Marshal(active)

	return d.States.UpdateFields(dbctx.Context{Ctx: ctx}, state.ConversationID, map[string]interface{}{
		"active_scene_positions": datatypes.JSON(posJSON),
		"active_characters":      datatypes.JSON(charJSON),
		"active_threads":         datatypes.JSON(threadJSON),
		"last_intent":            intent,
		"last_commitment":        ExtractCommitment(answer),
	})
}

// TouchedThreads returns the names of known plot threads mentioned in any of
// the given texts, matched case-insensitively, in their stored order.
func TouchedThreads(known []types.PlotThread, texts ...string) []string {
	var lowered []string
	for _, t := range texts {
		if t != "" {
			lowered = append(lowered, strings.ToLower(t))
		}
	}
	var out []string
	for _, th := range known {
		needle := strings.ToLower(th.Name)
		if needle == "" {
			continue
		}
		for _, t := range lowered {
			if strings.Contains(t, needle) {
				out = append(out, th.Name)
				break
			}
		}
	}
	return out
}

// ExtractCommitment pulls the sentence where the assistant commits to a
// direction, preferring explicit first-person commitments over the closer.
func ExtractCommitment(answer string) string {
	sentences := splitSentences(answer)
	if len(sentences) == 0 {
		return ""
	}
	markers := []string{"i'll", "i will", "i'd ", "let's", "we could", "we can", "next,", "try "}
	for i := len(sentences) - 1; i >= 0; i-- {
		lower := strings.ToLower(sentences[i])
		for _, m := range markers {
			if strings.Contains(lower, m) {
				return clampSentence(sentences[i])
			}
		}
	}
	return clampSentence(sentences[len(sentences)-1])
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			if sent := strings.TrimSpace(s[start : i+1]); sent != "" {
				out = append(out, sent)
			}
			start = i + 1
		}
	}
	if sent := strings.TrimSpace(s[start:]); sent != "" {
		out = append(out, sent)
	}
	return out
}

func clampSentence(s string) string {
	if len(s) > 300 {
		return s[:300]
	}
	return s
}

// CompressConversationIfNeeded folds older messages into the rolling summary
// once the conversation crosses the threshold, keeping the most recent turns
// verbatim.
func CompressConversationIfNeeded(ctx context.Context, d Deps, conversationID, scriptID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	count, err := d.Messages.Count(dbc, conversationID)
	if err != nil {
		return err
	}
	threshold := int64(d.Cfg.ConversationSummaryMessageThreshold)
	if threshold <= 0 || count <= threshold {
		return nil
	}

	existing, err := d.ConvSummaries.Get(dbc, conversationID)
	if err != nil {
		return err
	}
	covered := 0
	prior := ""
	if existing != nil {
		covered = existing.MessageCount
		prior = existing.Summary
	}
	cutoff := count - compactKeepRecent
	if int64(covered) >= cutoff {
		return nil
	}

	// Everything between the covered prefix and the keep window gets folded in.
	recent, err := d.Messages.ListRecent(dbc, conversationID, int(count)-covered)
	if err != nil {
		return err
	}
	var sb strings.Builder
	if prior != "" {
		sb.WriteString("Summary so far: ")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	for _, m := range recent {
		if m.Seq > cutoff {
			continue
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	res, err := d.LLM.Complete(ctx, anthropic.Request{
		Model:     d.LLM.FastModel(),
		System:    conversationSummarySystem,
		Messages:  []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, sb.String())},
		MaxTokens: 400,
	})
	if err != nil {
		return err
	}

	return d.ConvSummaries.Upsert(dbc, &types.ConversationSummary{
		ConversationID: conversationID,
		ScriptID:       scriptID,
		Summary:        strings.TrimSpace(res.Text),
		MessageCount:   int(cutoff),
	})
}

func decodeInts(raw datatypes.JSON) []int {
	var out []int
	_ = json.Unmarshal(raw, &out)
	return out
}

func decodeStrings(raw datatypes.JSON) []string {
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

// mergeRecentInts prepends the new values, dedupes keeping first occurrence,
// and bounds the list.
func mergeRecentInts(prior, fresh []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range append(fresh, prior...) {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		if len(out) >= maxActiveItems {
			break
		}
	}
	if out == nil {
		out = []int{}
	}
	return out
}

func mergeRecentStrings(prior, fresh []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range append(fresh, prior...) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) >= maxActiveItems {
			break
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
