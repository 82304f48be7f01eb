package steps

import (
	"strings"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

const (
	BudgetQuick    = "quick"
	BudgetStandard = "standard"
	BudgetDeep     = "deep"
)

// Section allocations at the standard tier. Other tiers scale these
// proportionally. The caps intentionally sum past the budget; the trim order
// below resolves the overrun.
type allocation struct {
	System       int
	Global       int
	Retrieval    int
	Conversation int
	Evidence     int
	Headroom     int
}

var standardAllocation = allocation{
	System:       600,
	Global:       900,
	Retrieval:    2500,
	Conversation: 400,
	Evidence:     1500,
	Headroom:     100,
}

// AssembleInput is everything the assembler composes from.
type AssembleInput struct {
	Intent    string
	TopicMode string
	Budget    string

	System       string
	Retrieved    *Retrieved
	Conversation []types.ChatMessage
	Summary      string
	Evidence     *Evidence
	Question     string
}

// Assembled is the composed prompt plus its section token estimates.
type Assembled struct {
	System string
	User   string

	TokensUsed   int
	TokensBudget int
}

func budgetTokens(d Deps, tier string) int {
	switch tier {
	case BudgetQuick:
		return d.Cfg.BudgetQuickTokens
	case BudgetDeep:
		return d.Cfg.BudgetDeepTokens
	default:
		return d.Cfg.BudgetStandardTokens
	}
}

func scaledAllocation(budget, standard int) allocation {
	if standard <= 0 {
		standard = 5000
	}
	scale := func(n int) int { return n * budget / standard }
	return allocation{
		System:       scale(standardAllocation.System),
		Global:       scale(standardAllocation.Global),
		Retrieval:    scale(standardAllocation.Retrieval),
		Conversation: scale(standardAllocation.Conversation),
		Evidence:     scale(standardAllocation.Evidence),
		Headroom:     scale(standardAllocation.Headroom),
	}
}

// AssemblePrompt composes the section texts under the tier's token budget.
// Each section is first capped at its allocation; if the whole still
// overruns, retrieval gives way first, then conversation, then global
// context.
func AssemblePrompt(d Deps, in AssembleInput) Assembled {
	budget := budgetTokens(d, in.Budget)
	alloc := scaledAllocation(budget, d.Cfg.BudgetStandardTokens)

	system := trimToTokens(in.System, alloc.System)

	global := ""
	if in.Retrieved != nil {
		global = trimToTokens(strings.Join(in.Retrieved.Global, "\n\n"), alloc.Global)
	}
	retrieval := ""
	if in.Retrieved != nil {
		retrieval = trimToTokens(strings.Join(in.Retrieved.Sections, "\n\n"), alloc.Retrieval)
	}

	conversation := ""
	if in.TopicMode != ModeNewTopic {
		conversation = trimToTokens(renderConversation(in.Summary, in.Conversation), alloc.Conversation)
	}

	evidence := ""
	if in.Evidence != nil {
		evidence = trimToTokens(in.Evidence.Render(), alloc.Evidence)
	}

	total := func() int {
		return estimateTokens(system) + estimateTokens(global) + estimateTokens(retrieval) +
			estimateTokens(conversation) + estimateTokens(evidence) +
			estimateTokens(in.Question) + alloc.Headroom
	}

	if over := total() - budget; over > 0 {
		retrieval = trimToTokens(retrieval, maxInt(0, estimateTokens(retrieval)-over))
	}
	if over := total() - budget; over > 0 {
		conversation = trimToTokens(conversation, maxInt(0, estimateTokens(conversation)-over))
	}
	if over := total() - budget; over > 0 {
		global = trimToTokens(global, maxInt(0, estimateTokens(global)-over))
	}

	var sb strings.Builder
	writeSection(&sb, "SCRIPT CONTEXT", global)
	writeSection(&sb, "RETRIEVED SCENES", retrieval)
	writeSection(&sb, "CONVERSATION", conversation)
	writeSection(&sb, "EVIDENCE", evidence)
	sb.WriteString(in.Question)

	out := Assembled{System: system, User: sb.String(), TokensBudget: budget}
	out.TokensUsed = estimateTokens(out.System) + estimateTokens(out.User)
	return out
}

func writeSection(sb *strings.Builder, name, content string) {
	if content == "" {
		return
	}
	sb.WriteString(name)
	sb.WriteString(":\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
}

// renderConversation prefixes the rolling summary, then the last two user /
// assistant pairs.
func renderConversation(summary string, msgs []types.ChatMessage) string {
	var sb strings.Builder
	if summary != "" {
		sb.WriteString("Earlier discussion (summarized): ")
		sb.WriteString(summary)
		sb.WriteString("\n")
	}
	if len(msgs) > 4 {
		msgs = msgs[len(msgs)-4:]
	}
	for _, m := range msgs {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// estimateTokens mirrors the four-characters-per-token heuristic used for
// artifact token estimates.
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// trimToTokens cuts the text to roughly the given token count at a line
// boundary where possible.
func trimToTokens(s string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	maxBytes := tokens * 4
	if len(s) <= maxBytes {
		return s
	}
	cut := s[:maxBytes]
	if i := strings.LastIndexByte(cut, '\n'); i > maxBytes/2 {
		cut = cut[:i]
	}
	return cut
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
