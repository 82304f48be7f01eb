package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ConversationSummaryRepo interface {
	Get(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationSummary, error)
	Upsert(dbc dbctx.Context, row *types.ConversationSummary) error
}

type conversationSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationSummaryRepo(db *gorm.DB, log *logger.Logger) ConversationSummaryRepo {
	return &conversationSummaryRepo{db: db, log: log.With("repo", "ConversationSummaryRepo")}
}

func (r *conversationSummaryRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *conversationSummaryRepo) Get(dbc dbctx.Context, conversationID uuid.UUID) (*types.ConversationSummary, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	var out types.ConversationSummary
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

func (r *conversationSummaryRepo) Upsert(dbc dbctx.Context, row *types.ConversationSummary) error {
	if row == nil || row.ConversationID == uuid.Nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing conversation_id or script_id")
	}
	row.UpdatedAt = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "conversation_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"summary":       row.Summary,
				"message_count": row.MessageCount,
				"updated_at":    row.UpdatedAt,
			}),
		}).
		Create(row).Error
}
