package steps

import "testing"

func TestKeywordPhrasesClassifyToTheirIntent(t *testing.T) {
	for intent, phrases := range intentKeywords {
		for _, phrase := range phrases {
			got, ok := ClassifyKeywords("please " + phrase + " here")
			if !ok {
				t.Fatalf("phrase %q: classifier fell through, want %s", phrase, intent)
			}
			if got != intent {
				t.Fatalf("phrase %q: got %s, want %s", phrase, got, intent)
			}
		}
	}
}

func TestClassifyKeywordsFallsThroughOnNoMatch(t *testing.T) {
	if intent, ok := ClassifyKeywords("hello there"); ok {
		t.Fatalf("expected fall-through, got %s", intent)
	}
}

func TestClassifyKeywordsFallsThroughOnTie(t *testing.T) {
	// One phrase from each of two sets.
	if intent, ok := ClassifyKeywords("rewrite this, and give me feedback on it"); ok {
		t.Fatalf("expected tie fall-through, got %s", intent)
	}
}

func TestUniqueMaximumWins(t *testing.T) {
	// Two scene_feedback phrases against one local_edit phrase.
	msg := "rewrite it, but first: feedback on the pacing of this scene"
	got, ok := ClassifyKeywords(msg)
	if !ok || got != IntentSceneFeedback {
		t.Fatalf("got %s ok=%v, want %s", got, ok, IntentSceneFeedback)
	}
}
