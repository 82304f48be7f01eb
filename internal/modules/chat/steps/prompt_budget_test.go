package steps

import (
	"strings"
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

func budgetDeps() Deps {
	return Deps{Cfg: config.Config{
		BudgetQuickTokens:    1200,
		BudgetStandardTokens: 5000,
		BudgetDeepTokens:     20000,
	}}
}

func TestAssembleStaysWithinBudget(t *testing.T) {
	d := budgetDeps()
	big := strings.Repeat("scene text goes here and keeps going. ", 2000)
	in := AssembleInput{
		Intent:    IntentGlobalQuestion,
		TopicMode: ModeFollowUp,
		Budget:    BudgetStandard,
		System:    systemForIntent(IntentGlobalQuestion),
		Retrieved: &Retrieved{
			Global:   []string{big},
			Sections: []string{big, big},
		},
		Conversation: []types.ChatMessage{
			{Role: types.RoleUser, Content: big},
			{Role: types.RoleAssistant, Content: big},
		},
		Evidence: &Evidence{Items: []EvidenceItem{{Source: "get_scene", Content: big}}, OriginalCount: 1},
		Question: "How does the second act hold together?",
	}
	out := AssemblePrompt(d, in)
	if out.TokensUsed > out.TokensBudget {
		t.Fatalf("assembled %d tokens over budget %d", out.TokensUsed, out.TokensBudget)
	}
	if !strings.Contains(out.User, "How does the second act hold together?") {
		t.Fatal("question missing from prompt")
	}
}

func TestNewTopicDropsConversation(t *testing.T) {
	d := budgetDeps()
	in := AssembleInput{
		Budget:    BudgetStandard,
		System:    baseSystem,
		TopicMode: ModeNewTopic,
		Conversation: []types.ChatMessage{
			{Role: types.RoleUser, Content: "earlier question about the ferry"},
			{Role: types.RoleAssistant, Content: "earlier answer about the ferry"},
		},
		Summary:  "They discussed the ferry scenes.",
		Question: "fresh question",
	}
	out := AssemblePrompt(d, in)
	if strings.Contains(out.User, "ferry") {
		t.Fatalf("NEW_TOPIC prompt still carries conversation:\n%s", out.User)
	}
}

func TestFollowUpKeepsLastTwoPairs(t *testing.T) {
	d := budgetDeps()
	msgs := []types.ChatMessage{
		{Role: types.RoleUser, Content: "oldest question"},
		{Role: types.RoleAssistant, Content: "oldest answer"},
		{Role: types.RoleUser, Content: "second question"},
		{Role: types.RoleAssistant, Content: "second answer"},
		{Role: types.RoleUser, Content: "third question"},
		{Role: types.RoleAssistant, Content: "third answer"},
	}
	out := AssemblePrompt(d, AssembleInput{
		Budget:       BudgetStandard,
		System:       baseSystem,
		TopicMode:    ModeFollowUp,
		Conversation: msgs,
		Question:     "and now?",
	})
	if strings.Contains(out.User, "oldest question") {
		t.Fatal("conversation window not limited to two pairs")
	}
	if !strings.Contains(out.User, "second question") || !strings.Contains(out.User, "third answer") {
		t.Fatalf("recent pairs missing:\n%s", out.User)
	}
}

func TestTrimOrderRetrievalFirst(t *testing.T) {
	d := budgetDeps()
	// Retrieval and global both at their caps; quick tier forces trimming.
	filler := strings.Repeat("words and more words in every line here. ", 500)
	out := AssemblePrompt(d, AssembleInput{
		Budget:    BudgetQuick,
		System:    baseSystem,
		TopicMode: ModeNewTopic,
		Retrieved: &Retrieved{
			Global:   []string{"GLOBAL-ANCHOR " + filler[:600]},
			Sections: []string{"RETRIEVAL-ANCHOR " + filler},
		},
		Question: "q",
	})
	if out.TokensUsed > out.TokensBudget {
		t.Fatalf("quick tier over budget: %d > %d", out.TokensUsed, out.TokensBudget)
	}
	if !strings.Contains(out.User, "GLOBAL-ANCHOR") {
		t.Fatal("global context trimmed before retrieval gave way")
	}
}

func TestScaledAllocationProportions(t *testing.T) {
	quick := scaledAllocation(1200, 5000)
	if quick.System != 144 || quick.Retrieval != 600 {
		t.Fatalf("unexpected quick allocation: %+v", quick)
	}
	std := scaledAllocation(5000, 5000)
	if std != standardAllocation {
		t.Fatalf("standard allocation not identity: %+v", std)
	}
}
