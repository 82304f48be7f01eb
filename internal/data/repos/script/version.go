package script

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ScriptVersionRepo interface {
	Append(dbc dbctx.Context, row *types.ScriptVersion) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.ScriptVersion, error)
	CountByScript(dbc dbctx.Context, scriptID uuid.UUID) (int64, error)
}

type scriptVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptVersionRepo(db *gorm.DB, log *logger.Logger) ScriptVersionRepo {
	return &scriptVersionRepo{db: db, log: log.With("repo", "ScriptVersionRepo")}
}

func (r *scriptVersionRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *scriptVersionRepo) Append(dbc dbctx.Context, row *types.ScriptVersion) error {
	if row == nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *scriptVersionRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.ScriptVersion, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.ScriptVersion
	err := q.Find(&out).Error
	return out, err
}

func (r *scriptVersionRepo) CountByScript(dbc dbctx.Context, scriptID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ScriptVersion{}).
		Where("script_id = ?", scriptID).
		Count(&n).Error
	return n, err
}
