package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

// maxToolIterations caps the tool loop.
const maxToolIterations = 5

// ChatRequest is one user turn.
type ChatRequest struct {
	ScriptID       uuid.UUID
	ConversationID uuid.UUID
	Message        string

	IntentHint    string
	TopicOverride string
	Budget        string
	Hints         Hints
}

// ChatResult is the turn's metadata; the answer text itself flows through
// the onDelta callback as it is produced.
type ChatResult struct {
	Intent          string
	TopicMode       string
	TopicConfidence float64
	Answer          string
	ToolCalls       int
	Iterations      int
}

// Respond drives one chat turn end to end: classify, retrieve, tool-loop,
// synthesize, persist. Text chunks stream through onDelta; the final answer
// and metadata come back in the result.
func Respond(ctx context.Context, d Deps, req ChatRequest, onDelta func(string)) (*ChatResult, error) {
	dbc := dbctx.Context{Ctx: ctx}

	state, err := d.States.GetOrCreate(dbc, req.ConversationID, req.ScriptID)
	if err != nil {
		return nil, err
	}

	lastAssistant := ""
	if last, err := d.Messages.LastAssistantMessage(dbc, req.ConversationID); err != nil {
		return nil, err
	} else if last != nil {
		lastAssistant = last.Content
	}

	intent, err := ClassifyIntent(ctx, d, req.Message, req.IntentHint)
	if err != nil {
		return nil, err
	}
	mode, confidence := ResolveTopicMode(req.Message, lastAssistant, req.TopicOverride)

	hints := fillHintsFromState(req.Hints, req.Message, state)
	retrieved, err := RetrieveForIntent(ctx, d, intent, req.ScriptID, req.Message, hints)
	if err != nil {
		return nil, err
	}

	recent, err := d.Messages.ListRecent(dbc, req.ConversationID, 4)
	if err != nil {
		return nil, err
	}
	summaryText := ""
	if sum, err := d.ConvSummaries.Get(dbc, req.ConversationID); err != nil {
		return nil, err
	} else if sum != nil {
		summaryText = sum.Summary
	}

	if err := d.Messages.Append(dbc, &types.ChatMessage{
		ConversationID: req.ConversationID,
		ScriptID:       req.ScriptID,
		Role:           types.RoleUser,
		Content:        req.Message,
	}); err != nil {
		return nil, err
	}

	assembled := AssemblePrompt(d, AssembleInput{
		Intent:       intent,
		TopicMode:    mode,
		Budget:       req.Budget,
		System:       systemForIntent(intent),
		Retrieved:    retrieved,
		Conversation: recent,
		Summary:      summaryText,
		Question:     req.Message,
	})

	result := &ChatResult{Intent: intent, TopicMode: mode, TopicConfidence: confidence}
	answer, toolResults, err := runToolLoop(ctx, d, req, assembled, result, onDelta)
	if err != nil {
		return nil, err
	}

	if answer == "" {
		// Tools were called; ground the final answer in their output.
		evidence := BuildEvidence(req.Message, toolResults, DefaultMaxEvidenceItems)
		synth := AssemblePrompt(d, AssembleInput{
			Intent:       intent,
			TopicMode:    mode,
			Budget:       req.Budget,
			System:       systemForIntent(intent) + synthesisInstructions,
			Retrieved:    retrieved,
			Conversation: recent,
			Summary:      summaryText,
			Evidence:     evidence,
			Question:     req.Message,
		})
		start := time.Now()
		res, err := d.LLM.StreamComplete(ctx, anthropic.Request{
			System:   synth.System,
			Messages: []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, synth.User)},
		}, onDelta)
		recordMetric(ctx, d, req, types.OpChatSynthesis, nil, nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		answer = res.Text
	}
	result.Answer = answer

	if err := d.Messages.Append(dbc, &types.ChatMessage{
		ConversationID: req.ConversationID,
		ScriptID:       req.ScriptID,
		Role:           types.RoleAssistant,
		Content:        answer,
	}); err != nil {
		return nil, err
	}

	var chars []string
	if hints.Character != "" {
		chars = append(chars, strings.ToUpper(hints.Character))
	}
	positions := append(SceneNumbers(req.Message), retrieved.ScenePositions...)
	var threads []string
	if known, err := d.Threads.ListByScript(dbc, req.ScriptID); err != nil {
		d.Log.Warn("plot thread lookup failed", "script_id", req.ScriptID.String(), "error", err.Error())
	} else {
		threads = TouchedThreads(known, req.Message, answer)
	}
	if err := UpdateConversationState(ctx, d, state, intent, answer, positions, chars, threads); err != nil {
		d.Log.Warn("conversation state update failed", "conversation_id", req.ConversationID.String(), "error", err.Error())
	}
	if err := CompressConversationIfNeeded(ctx, d, req.ConversationID, req.ScriptID); err != nil {
		d.Log.Warn("conversation compression failed", "conversation_id", req.ConversationID.String(), "error", err.Error())
	}
	return result, nil
}

// runToolLoop lets the model read more of the script before answering. It
// returns a non-empty answer only when the model answered directly without
// ever calling a tool; otherwise the collected tool results feed synthesis.
func runToolLoop(ctx context.Context, d Deps, req ChatRequest, assembled Assembled, result *ChatResult, onDelta func(string)) (string, []ToolResult, error) {
	msgs := []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, assembled.User)}
	var toolResults []ToolResult

	for iteration := 1; iteration <= maxToolIterations; iteration++ {
		res, err := d.LLM.Complete(ctx, anthropic.Request{
			System:   assembled.System + toolLoopInstructions,
			Messages: msgs,
			Tools:    ChatTools(),
		})
		if err != nil {
			return "", nil, err
		}
		result.Iterations = iteration

		if len(res.ToolUses) == 0 {
			if len(toolResults) == 0 && res.Text != "" {
				// Direct answer, no grounding pass needed.
				onDelta(res.Text)
				recordMetric(ctx, d, req, types.OpChatSynthesis, nil, &iteration, res.Latency)
				return res.Text, nil, nil
			}
			return "", toolResults, nil
		}

		assistant := anthropic.Message{Role: anthropic.RoleAssistant}
		if res.Text != "" {
			assistant.Content = append(assistant.Content, anthropic.ContentBlock{Type: "text", Text: res.Text})
		}
		var replies []anthropic.Message
		for _, use := range res.ToolUses {
			assistant.Content = append(assistant.Content, anthropic.ContentBlock{
				Type:  "tool_use",
				ID:    use.ID,
				Name:  use.Name,
				Input: use.Input,
			})
			start := time.Now()
			content := ExecuteTool(ctx, d, req.ScriptID, use.Name, use.Input)
			name := use.Name
			recordMetric(ctx, d, req, types.OpChatToolCall, &name, &iteration, time.Since(start))
			toolResults = append(toolResults, ToolResult{Tool: use.Name, Input: use.Input, Content: content})
			replies = append(replies, anthropic.ToolResultMessage(use.ID, content))
			result.ToolCalls++
		}
		msgs = append(msgs, assistant)
		msgs = append(msgs, replies...)
	}
	return "", toolResults, nil
}

func recordMetric(ctx context.Context, d Deps, req ChatRequest, op string, toolName *string, iteration *int, latency time.Duration) {
	scriptID := req.ScriptID
	convID := req.ConversationID
	if err := d.Metrics.Insert(dbctx.Context{Ctx: ctx}, &types.OperationMetric{
		ScriptID:       &scriptID,
		ConversationID: &convID,
		Operation:      op,
		ToolName:       toolName,
		Iteration:      iteration,
		LatencyMS:      latency.Milliseconds(),
	}); err != nil {
		d.Log.Warn("operation metric insert failed", "operation", op, "error", err.Error())
	}
}

// fillHintsFromState backfills missing anchors from the conversation's
// working memory, preferring an explicit scene number in the message itself.
func fillHintsFromState(hints Hints, message string, state *types.ConversationState) Hints {
	if hints.ScenePosition == nil {
		if nums := SceneNumbers(message); len(nums) > 0 {
			hints.ScenePosition = &nums[0]
		} else if active := decodeInts(state.ActiveScenePositions); len(active) > 0 {
			hints.ScenePosition = &active[0]
		}
	}
	if len(hints.ActiveThreads) == 0 {
		hints.ActiveThreads = decodeStrings(state.ActiveThreads)
	}
	if hints.Character == "" {
		if chars := decodeStrings(state.ActiveCharacters); len(chars) > 0 {
			hints.Character = chars[0]
		}
	}
	return hints
}
