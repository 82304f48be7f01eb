package anthropic

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is one element of a message's content array. Only the fields
// relevant to the block's Type are populated.
type ContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: "text", Text: text}}}
}

func ToolResultMessage(toolUseID, content string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{
		Type:      "tool_result",
		ToolUseID: toolUseID,
		Content:   content,
	}}}
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
	Tools     []Tool
}

type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

type Usage struct {
	InputTokens         int `json:"input_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
	OutputTokens        int `json:"output_tokens"`
}

type Result struct {
	Text       string
	ToolUses   []ToolUse
	StopReason string
	Model      string
	Usage      Usage
	CostUSD    float64
	Latency    time.Duration
}

// UsageRecord is handed to the sink after every call, including streams that
// failed after yielding partial output.
type UsageRecord struct {
	Model     string
	Usage     Usage
	CostUSD   float64
	LatencyMS int64
	Streamed  bool
	Partial   bool
}

// UsageSink receives one record per API call. The client never skips a call:
// billing requires partial streams to be accounted too.
type UsageSink interface {
	RecordLLMUsage(ctx context.Context, rec UsageRecord)
}

type Client interface {
	// Complete runs a non-streaming messages request.
	Complete(ctx context.Context, req Request) (*Result, error)
	// StreamComplete yields text deltas to onDelta and returns the final
	// result. onDelta may be nil.
	StreamComplete(ctx context.Context, req Request, onDelta func(delta string)) (*Result, error)
	// DefaultModel is the synthesis-grade model this client was built with.
	DefaultModel() string
	// FastModel is the cheap classification-grade model.
	FastModel() string
}
