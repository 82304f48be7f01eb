package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SceneSummary is the per-scene derived artifact. One row per scene; the row
// is replaced in full on refresh.
type SceneSummary struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SceneID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"scene_id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Summary       string `gorm:"type:text;not null" json:"summary"`
	TokenEstimate int    `gorm:"not null;default:0" json:"token_estimate"`

	// ContentHash is the fingerprint of the scene content the summary was
	// generated from. A mismatch against the scene's current hash means stale.
	ContentHash string `gorm:"type:text;not null" json:"content_hash"`

	Version     int64     `gorm:"not null;default:1" json:"version"`
	GeneratedAt time.Time `gorm:"not null;default:now()" json:"generated_at"`
}

func (SceneSummary) TableName() string { return "scene_summaries" }

// ScriptOutline is the single script-level artifact carrying the dirty
// counter that drives staleness-triggered refreshes.
type ScriptOutline struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"script_id"`

	Outline       string `gorm:"type:text;not null;default:''" json:"outline"`
	TokenEstimate int    `gorm:"not null;default:0" json:"token_estimate"`

	IsStale         bool `gorm:"not null;default:false" json:"is_stale"`
	DirtySceneCount int  `gorm:"not null;default:0" json:"dirty_scene_count"`

	Version         int64      `gorm:"not null;default:0" json:"version"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ScriptOutline) TableName() string { return "script_outlines" }

// CharacterSheet tracks one character per script. Dirty counting is per
// character: only scenes featuring the character bump its counter.
type CharacterSheet struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_sheet_script_name" json:"script_id"`
	Name     string    `gorm:"type:text;not null;uniqueIndex:idx_sheet_script_name" json:"name"`

	Sheet         string `gorm:"type:text;not null;default:''" json:"sheet"`
	TokenEstimate int    `gorm:"not null;default:0" json:"token_estimate"`

	IsStale         bool `gorm:"not null;default:false" json:"is_stale"`
	DirtySceneCount int  `gorm:"not null;default:0" json:"dirty_scene_count"`

	Version         int64      `gorm:"not null;default:0" json:"version"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (CharacterSheet) TableName() string { return "character_sheets" }

// SceneEmbedding stores one vector per scene for semantic retrieval.
type SceneEmbedding struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SceneID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"scene_id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Embedding   pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	ContentHash string          `gorm:"type:text;not null" json:"content_hash"`

	GeneratedAt time.Time `gorm:"not null;default:now()" json:"generated_at"`
}

func (SceneEmbedding) TableName() string { return "scene_embeddings" }

// TokenUsage is one row per model call, including failed and partially
// streamed calls.
type TokenUsage struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID *uuid.UUID `gorm:"type:uuid;index" json:"script_id,omitempty"`
	UserID   *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`

	Operation string `gorm:"type:text;not null;default:''" json:"operation"`
	Model     string `gorm:"type:text;not null" json:"model"`

	InputTokens         int64 `gorm:"not null;default:0" json:"input_tokens"`
	CacheCreationTokens int64 `gorm:"not null;default:0" json:"cache_creation_tokens"`
	CacheReadTokens     int64 `gorm:"not null;default:0" json:"cache_read_tokens"`
	OutputTokens        int64 `gorm:"not null;default:0" json:"output_tokens"`

	CostUSD   float64 `gorm:"not null;default:0" json:"cost_usd"`
	LatencyMS int64   `gorm:"not null;default:0" json:"latency_ms"`

	Streamed bool `gorm:"not null;default:false" json:"streamed"`
	Partial  bool `gorm:"not null;default:false" json:"partial"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (TokenUsage) TableName() string { return "token_usage" }

const (
	OpChatToolCall  = "CHAT_TOOL_CALL"
	OpChatSynthesis = "CHAT_SYNTHESIS"

	OpRefreshSceneSummary   = "REFRESH_SCENE_SUMMARY"
	OpRefreshOutline        = "REFRESH_OUTLINE"
	OpRefreshCharacterSheet = "REFRESH_CHARACTER_SHEET"
)

// OperationMetric records latency for internal operations, one row per
// occurrence.
type OperationMetric struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID       *uuid.UUID `gorm:"type:uuid;index" json:"script_id,omitempty"`
	ConversationID *uuid.UUID `gorm:"type:uuid;index" json:"conversation_id,omitempty"`

	Operation string  `gorm:"type:text;not null;index" json:"operation"`
	ToolName  *string `gorm:"type:text" json:"tool_name,omitempty"`
	Iteration *int    `json:"iteration,omitempty"`

	LatencyMS int64 `gorm:"not null;default:0" json:"latency_ms"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (OperationMetric) TableName() string { return "operation_metrics" }
