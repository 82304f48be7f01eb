package steps

import "testing"

func TestTopicModeRules(t *testing.T) {
	last := "Scene 3 needs more tension in the middle, and Marcus feels underused."

	cases := []struct {
		name     string
		message  string
		last     string
		wantMode string
		wantConf float64
	}{
		{"empty history", "anything at all", "", ModeNewTopic, 1.0},
		{"explicit new topic", "new question about act 3", last, ModeNewTopic, 0.9},
		{"pronoun-led", "it still drags after the reveal in the second half", last, ModeFollowUp, 0.7},
		{"scene number overlap", "What about Scene 3's ending?", last, ModeFollowUp, 0.8},
		{"mid-sentence demonstrative", "does expanding that moment between reveals actually improve momentum overall", last, ModeFollowUp, 0.65},
		{"question to assistant", "would you restructure everything differently given more runway here overall?", last, ModeFollowUp, 0.75},
		{"capitalized overlap", "I wonder whether Marcus confronting Elena lands given Marcus disappears afterward", "Elena and Marcus never share a scene after the funeral.", ModeFollowUp, 0.6},
		{"short message", "more tension where exactly", last, ModeFollowUp, 0.7},
		{"default continuity", "dialogue density keeps climbing through every exchange without pauses for breathing room", last, ModeFollowUp, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mode, conf := DetectTopicMode(tc.message, tc.last)
			if mode != tc.wantMode || conf != tc.wantConf {
				t.Fatalf("DetectTopicMode(%q) = %s@%.2f, want %s@%.2f",
					tc.message, mode, conf, tc.wantMode, tc.wantConf)
			}
		})
	}
}

func TestTopicModeOverrideBypassesDetection(t *testing.T) {
	mode, conf := ResolveTopicMode("new question entirely", "prior answer", OverrideContinue)
	if mode != ModeFollowUp || conf != 1.0 {
		t.Fatalf("continue override: got %s@%.2f", mode, conf)
	}
	mode, conf = ResolveTopicMode("what about that?", "prior answer", OverrideNewTopic)
	if mode != ModeNewTopic || conf != 1.0 {
		t.Fatalf("new_topic override: got %s@%.2f", mode, conf)
	}
}

func TestSceneNumbersExtraction(t *testing.T) {
	nums := SceneNumbers("Compare scene 4 with Scene 12 and SCENE 4 again")
	if len(nums) != 3 || nums[0] != 4 || nums[1] != 12 || nums[2] != 4 {
		t.Fatalf("got %v", nums)
	}
}
