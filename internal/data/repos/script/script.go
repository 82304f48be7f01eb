package script

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ScriptRepo interface {
	Create(dbc dbctx.Context, row *types.Script) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Script, error)
	// GetByIDForUpdate locks the script row for the duration of dbc.Tx.
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Script, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SetBlocksCAS(dbc dbctx.Context, id uuid.UUID, newVersion int64, blocks datatypes.JSON, updatedBy uuid.UUID) error
	SetState(dbc dbctx.Context, id uuid.UUID, state string, at time.Time) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type scriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptRepo(db *gorm.DB, log *logger.Logger) ScriptRepo {
	return &scriptRepo{db: db, log: log.With("repo", "ScriptRepo")}
}

func (r *scriptRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *scriptRepo) Create(dbc dbctx.Context, row *types.Script) error {
	if row == nil {
		return errkind.Validation("missing script row")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.AnalysisState == "" {
		row.AnalysisState = types.StateEmpty
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *scriptRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Script, error) {
	if id == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out types.Script
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errkind.NotFound("script", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *scriptRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Script, error) {
	if id == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	if dbc.Tx == nil {
		return nil, errkind.Invariant("GetByIDForUpdate requires a transaction")
	}
	var out types.Script
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errkind.NotFound("script", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *scriptRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Script{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *scriptRepo) SetBlocksCAS(dbc dbctx.Context, id uuid.UUID, newVersion int64, blocks datatypes.JSON, updatedBy uuid.UUID) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"version":    newVersion,
		"blocks":     blocks,
		"updated_by": updatedBy,
	})
}

func (r *scriptRepo) SetState(dbc dbctx.Context, id uuid.UUID, state string, at time.Time) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"analysis_state":        state,
		"last_state_transition": at,
	})
}

func (r *scriptRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Script{}).Error
}
