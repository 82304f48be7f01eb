package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn in a conversation. Seq orders messages within a
// conversation independent of clock skew.
type ChatMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_chat_conv_seq" json:"conversation_id"`
	ScriptID       uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Seq  int64  `gorm:"not null;uniqueIndex:idx_chat_conv_seq" json:"seq"`
	Role string `gorm:"type:text;not null" json:"role"`

	Content string `gorm:"type:text;not null" json:"content"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// ConversationState is working memory carried between turns: what the
// conversation is currently about.
type ConversationState struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	ScriptID       uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	ActiveScenePositions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"active_scene_positions"`
	ActiveCharacters     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"active_characters"`
	ActiveThreads        datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"active_threads"`

	LastIntent     string `gorm:"type:text;not null;default:''" json:"last_intent"`
	LastCommitment string `gorm:"type:text;not null;default:''" json:"last_commitment"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConversationState) TableName() string { return "conversation_states" }

// ConversationSummary compresses older turns once a conversation grows past
// the threshold. MessageCount is how many turns the summary covers.
type ConversationSummary struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	ScriptID       uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Summary      string `gorm:"type:text;not null" json:"summary"`
	MessageCount int    `gorm:"not null;default:0" json:"message_count"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConversationSummary) TableName() string { return "conversation_summaries" }
