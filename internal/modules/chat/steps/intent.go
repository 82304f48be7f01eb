package steps

import (
	"context"
	"strings"

	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
)

const (
	IntentLocalEdit      = "local_edit"
	IntentSceneFeedback  = "scene_feedback"
	IntentGlobalQuestion = "global_question"
	IntentBrainstorm     = "brainstorm"
)

// intentKeywords are closed phrase sets; the classifier counts matches per
// class over the lowercased message. The sets are kept disjoint so a single
// phrase can never score two classes at once.
var intentKeywords = map[string][]string{
	IntentLocalEdit: {
		"rewrite", "rephrase", "reword", "tighten this", "punch up",
		"change this line", "fix this line", "edit this", "make this line",
		"trim this", "cut this line",
	},
	IntentSceneFeedback: {
		"feedback on", "thoughts on this scene", "does this scene work",
		"how is this scene", "critique", "notes on", "is this scene",
		"react to this scene", "pacing of this scene",
	},
	IntentGlobalQuestion: {
		"across the script", "whole script", "entire script", "the outline",
		"act structure", "story so far", "how many scenes", "overall arc",
		"theme of the", "through the script",
	},
	IntentBrainstorm: {
		"brainstorm", "ideas for", "what if", "pitch me", "suggest some",
		"alternatives for", "could we explore", "spitball", "riff on",
	},
}

func IsKnownIntent(s string) bool {
	switch s {
	case IntentLocalEdit, IntentSceneFeedback, IntentGlobalQuestion, IntentBrainstorm:
		return true
	}
	return false
}

// ClassifyKeywords scores the message against each phrase set and returns the
// intent with a unique maximum score. ok is false on a tie or an all-zero
// result, signalling the caller to fall through to the model.
func ClassifyKeywords(message string) (string, bool) {
	lower := strings.ToLower(message)
	best, bestScore, tied := "", 0, false
	for intent, phrases := range intentKeywords {
		score := 0
		for _, p := range phrases {
			if strings.Contains(lower, p) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = intent, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return "", false
	}
	return best, true
}

const intentFallbackSystem = `Classify the screenwriting chat message into exactly one of: local_edit, scene_feedback, global_question, brainstorm. Reply with the label only.`

// ClassifyIntent resolves the message intent: an explicit hint wins, then the
// keyword heuristic, then a small model call capped at 20 output tokens.
func ClassifyIntent(ctx context.Context, d Deps, message, hint string) (string, error) {
	if IsKnownIntent(hint) {
		return hint, nil
	}
	if intent, ok := ClassifyKeywords(message); ok {
		return intent, nil
	}
	res, err := d.LLM.Complete(ctx, anthropic.Request{
		Model:     d.LLM.FastModel(),
		System:    intentFallbackSystem,
		Messages:  []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, message)},
		MaxTokens: 20,
	})
	if err != nil {
		return "", err
	}
	label := strings.ToLower(strings.TrimSpace(res.Text))
	if IsKnownIntent(label) {
		return label, nil
	}
	d.Log.Warn("intent fallback returned unknown label", "label", label)
	return IntentGlobalQuestion, nil
}
