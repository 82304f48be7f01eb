package analysis

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type TokenUsageRepo interface {
	Insert(dbc dbctx.Context, row *types.TokenUsage) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.TokenUsage, error)
	TotalCostByScript(dbc dbctx.Context, scriptID uuid.UUID) (float64, error)
}

type tokenUsageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTokenUsageRepo(db *gorm.DB, log *logger.Logger) TokenUsageRepo {
	return &tokenUsageRepo{db: db, log: log.With("repo", "TokenUsageRepo")}
}

func (r *tokenUsageRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *tokenUsageRepo) Insert(dbc dbctx.Context, row *types.TokenUsage) error {
	if row == nil || row.Model == "" {
		return errkind.Validation("missing usage row or model")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *tokenUsageRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.TokenUsage, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.TokenUsage
	err := q.Find(&out).Error
	return out, err
}

func (r *tokenUsageRepo) TotalCostByScript(dbc dbctx.Context, scriptID uuid.UUID) (float64, error) {
	var total float64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.TokenUsage{}).
		Where("script_id = ?", scriptID).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total).Error
	return total, err
}

type OperationMetricRepo interface {
	Insert(dbc dbctx.Context, row *types.OperationMetric) error
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]types.OperationMetric, error)
}

type operationMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOperationMetricRepo(db *gorm.DB, log *logger.Logger) OperationMetricRepo {
	return &operationMetricRepo{db: db, log: log.With("repo", "OperationMetricRepo")}
}

func (r *operationMetricRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *operationMetricRepo) Insert(dbc dbctx.Context, row *types.OperationMetric) error {
	if row == nil || row.Operation == "" {
		return errkind.Validation("missing metric row or operation")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *operationMetricRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]types.OperationMetric, error) {
	if conversationID == uuid.Nil {
		return nil, errkind.Validation("missing conversation_id")
	}
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.OperationMetric
	err := q.Find(&out).Error
	return out, err
}
