package steps

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	ModeFollowUp = "FOLLOW_UP"
	ModeNewTopic = "NEW_TOPIC"

	OverrideContinue = "continue"
	OverrideNewTopic = "new_topic"
)

var newTopicPhrases = []string{
	"new question", "different topic", "switching topics", "unrelated", "by the way",
}

var followUpPhrases = []string{
	"what about", "how about", "and also", "following up", "as you said",
	"you mentioned", "more on that", "continuing", "going back to", "and then",
}

var referentialPronouns = map[string]bool{
	"it": true, "they": true, "that": true, "this": true,
	"those": true, "these": true, "he": true, "she": true,
}

var capitalizedStoplist = map[string]bool{
	"The": true, "This": true, "That": true, "What": true, "How": true,
	"Why": true, "When": true, "Where": true, "Scene": true,
}

var sceneNumberRe = regexp.MustCompile(`(?i)scene\s+(\d+)`)

// DetectTopicMode classifies the message as a follow-up on the running topic
// or a fresh one, with a confidence. Rules run in order and the first hit
// wins; the default leans toward continuity.
func DetectTopicMode(message, lastAssistant string) (string, float64) {
	if strings.TrimSpace(lastAssistant) == "" {
		return ModeNewTopic, 1.0
	}
	lower := strings.ToLower(message)

	for _, p := range newTopicPhrases {
		if strings.Contains(lower, p) {
			return ModeNewTopic, 0.9
		}
	}

	follow, fresh := countPhrases(lower, followUpPhrases), countPhrases(lower, newTopicPhrases)
	if follow-fresh > 1 {
		return ModeFollowUp, 0.9
	}
	if fresh-follow > 1 {
		return ModeNewTopic, 0.9
	}

	words := strings.Fields(lower)
	if len(words) > 0 && referentialPronouns[strings.Trim(words[0], ".,!?'\"")] {
		return ModeFollowUp, 0.7
	}

	for _, demo := range []string{" this ", " that ", " those ", " these "} {
		if strings.Contains(lower, demo) {
			return ModeFollowUp, 0.65
		}
	}

	if strings.Contains(lower, "?") &&
		(strings.Contains(lower, "you ") || strings.Contains(lower, "your ") || strings.Contains(lower, "to you")) {
		return ModeFollowUp, 0.75
	}

	if overlaps(SceneNumbers(message), SceneNumbers(lastAssistant)) {
		return ModeFollowUp, 0.8
	}

	if capitalizedOverlap(message, lastAssistant) >= 2 {
		return ModeFollowUp, 0.6
	}

	if len(words) < 8 {
		return ModeFollowUp, 0.7
	}
	return ModeFollowUp, 0.5
}

// ResolveTopicMode applies the caller override, falling back to detection.
func ResolveTopicMode(message, lastAssistant, override string) (string, float64) {
	switch override {
	case OverrideContinue:
		return ModeFollowUp, 1.0
	case OverrideNewTopic:
		return ModeNewTopic, 1.0
	}
	return DetectTopicMode(message, lastAssistant)
}

func countPhrases(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n
}

// SceneNumbers extracts every "scene N" reference in the text.
func SceneNumbers(text string) []int {
	var out []int
	for _, m := range sceneNumberRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func overlaps(a, b []int) bool {
	set := make(map[int]bool, len(a))
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		if set[n] {
			return true
		}
	}
	return false
}

func capitalizedOverlap(message, lastAssistant string) int {
	prior := make(map[string]bool)
	for _, w := range strings.Fields(lastAssistant) {
		w = strings.Trim(w, ".,!?:;'\"")
		if len(w) > 1 && w[0] >= 'A' && w[0] <= 'Z' && !capitalizedStoplist[w] {
			prior[w] = true
		}
	}
	n := 0
	seen := make(map[string]bool)
	for _, w := range strings.Fields(message) {
		w = strings.Trim(w, ".,!?:;'\"")
		if prior[w] && !seen[w] {
			seen[w] = true
			n++
		}
	}
	return n
}
