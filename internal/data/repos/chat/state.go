package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ConversationStateRepo interface {
	GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationState, error)
	GetOrCreate(dbc dbctx.Context, conversationID, scriptID uuid.UUID) (*types.ConversationState, error)
	UpdateFields(dbc dbctx.Context, conversationID uuid.UUID, updates map[string]interface{}) error
}

type conversationStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationStateRepo(db *gorm.DB, log *logger.Logger) ConversationStateRepo {
	return &conversationStateRepo{db: db, log: log.With("repo", "ConversationStateRepo")}
}

func (r *conversationStateRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *conversationStateRepo) GetByConversationID(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationState, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	var out types.ConversationState
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationStateRepo) GetOrCreate(dbc dbctx.Context, conversationID, scriptID uuid.UUID) (*types.ConversationState, error) {
	if conversationID == uuid.Nil || scriptID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id or script_id")
	}
	ex, err := r.GetByConversationID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		return ex, nil
	}
	row := &types.ConversationState{
		ConversationID:       conversationID,
		ScriptID:             scriptID,
		ActiveScenePositions: []byte("[]"),
		ActiveCharacters:     []byte("[]"),
		ActiveThreads:        []byte("[]"),
		UpdatedAt:            time.Now().UTC(),
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		// Possible race: another worker created it.
		ex2, getErr := r.GetByConversationID(dbc, conversationID)
		if getErr == nil && ex2 != nil {
			return ex2, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *conversationStateRepo) UpdateFields(dbc dbctx.Context, conversationID uuid.UUID, updates map[string]interface{}) error {
	if conversationID == uuid.Nil {
		return errkind.Validation("missing conversation_id")
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ConversationState{}).
		Where("conversation_id = ?", conversationID).
		Updates(updates).Error
}
