package chat

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	// Append assigns the next sequence number within the conversation and
	// inserts the message. Callers run it inside a transaction when they need
	// the user turn and assistant turn adjacent.
	Append(dbc dbctx.Context, row *types.ChatMessage) error
	ListRecent(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]types.ChatMessage, error)
	ListBefore(dbc dbctx.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]types.ChatMessage, error)
	Count(dbc dbctx.Context, conversationID uuid.UUID) (int64, error)
	LastAssistantMessage(dbc dbctx.Context, conversationID uuid.UUID) (*types.ChatMessage, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *chatMessageRepo) Append(dbc dbctx.Context, row *types.ChatMessage) error {
	if row == nil || row.ConversationID == uuid.Nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing conversation_id or script_id")
	}
	if row.Role == "" {
		return errkind.Validation("missing message role")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	tx := r.conn(dbc).WithContext(dbc.Ctx)
	var next int64
	err := tx.Model(&types.ChatMessage{}).
		Where("conversation_id = ?", row.ConversationID).
		Select("COALESCE(MAX(seq), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return err
	}
	row.Seq = next
	return tx.Create(row).Error
}

func (r *chatMessageRepo) ListRecent(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]types.ChatMessage, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	if limit <= 0 {
		limit = 20
	}
	var out []types.ChatMessage
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// Oldest first for prompt assembly.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *chatMessageRepo) ListBefore(dbc dbctx.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]types.ChatMessage, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ? AND seq < ?", conversationID, beforeSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.ChatMessage
	err := q.Find(&out).Error
	return out, err
}

func (r *chatMessageRepo) Count(dbc dbctx.Context, conversationID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Where("conversation_id = ?", conversationID).
		Count(&n).Error
	return n, err
}

func (r *chatMessageRepo) LastAssistantMessage(dbc dbctx.Context, conversationID uuid.UUID) (*types.ChatMessage, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	var out types.ChatMessage
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ? AND role = ?", conversationID, types.RoleAssistant).
		Order("seq DESC").
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
