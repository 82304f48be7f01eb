package crdtstore

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// ScriptUpdateRepo is the append-only CRDT log for script-level documents.
// Rows are immutable; only CompactReplace removes them, and it inserts the
// replacement snapshot before deleting the inputs.
type ScriptUpdateRepo interface {
	Append(dbc dbctx.Context, row *types.ScriptCRDTUpdate) error
	ListInOrder(dbc dbctx.Context, scriptID uuid.UUID) ([]types.ScriptCRDTUpdate, error)
	Count(dbc dbctx.Context, scriptID uuid.UUID) (int64, error)
	CompactReplace(dbc dbctx.Context, scriptID uuid.UUID, snapshot []byte, priorIDs []uuid.UUID) error
}

type scriptUpdateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScriptUpdateRepo(db *gorm.DB, log *logger.Logger) ScriptUpdateRepo {
	return &scriptUpdateRepo{db: db, log: log.With("repo", "ScriptUpdateRepo")}
}

func (r *scriptUpdateRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *scriptUpdateRepo) Append(dbc dbctx.Context, row *types.ScriptCRDTUpdate) error {
	if row == nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if len(row.Update) == 0 {
		return errkind.Validation("empty crdt update")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *scriptUpdateRepo) ListInOrder(dbc dbctx.Context, scriptID uuid.UUID) ([]types.ScriptCRDTUpdate, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.ScriptCRDTUpdate
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *scriptUpdateRepo) Count(dbc dbctx.Context, scriptID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ScriptCRDTUpdate{}).
		Where("script_id = ?", scriptID).
		Count(&n).Error
	return n, err
}

func (r *scriptUpdateRepo) CompactReplace(dbc dbctx.Context, scriptID uuid.UUID, snapshot []byte, priorIDs []uuid.UUID) error {
	if scriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if dbc.Tx == nil {
		return errkind.Invariant("CompactReplace requires a transaction")
	}
	if len(priorIDs) == 0 {
		return nil
	}
	row := &types.ScriptCRDTUpdate{
		ID:         uuid.New(),
		ScriptID:   scriptID,
		Update:     snapshot,
		Actor:      "compaction",
		IsSnapshot: true,
	}
	tx := dbc.Tx.WithContext(dbc.Ctx)
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	return tx.Where("script_id = ? AND id IN ?", scriptID, priorIDs).
		Delete(&types.ScriptCRDTUpdate{}).Error
}

type SceneUpdateRepo interface {
	Append(dbc dbctx.Context, row *types.SceneCRDTUpdate) error
	ListInOrder(dbc dbctx.Context, sceneID uuid.UUID) ([]types.SceneCRDTUpdate, error)
	Count(dbc dbctx.Context, sceneID uuid.UUID) (int64, error)
	CompactReplace(dbc dbctx.Context, sceneID, scriptID uuid.UUID, snapshot []byte, priorIDs []uuid.UUID) error
}

type sceneUpdateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneUpdateRepo(db *gorm.DB, log *logger.Logger) SceneUpdateRepo {
	return &sceneUpdateRepo{db: db, log: log.With("repo", "SceneUpdateRepo")}
}

func (r *sceneUpdateRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sceneUpdateRepo) Append(dbc dbctx.Context, row *types.SceneCRDTUpdate) error {
	if row == nil || row.SceneID == uuid.Nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing scene_id or script_id")
	}
	if len(row.Update) == 0 {
		return errkind.Validation("empty crdt update")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *sceneUpdateRepo) ListInOrder(dbc dbctx.Context, sceneID uuid.UUID) ([]types.SceneCRDTUpdate, error) {
	if sceneID == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out []types.SceneCRDTUpdate
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("scene_id = ?", sceneID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *sceneUpdateRepo) Count(dbc dbctx.Context, sceneID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.SceneCRDTUpdate{}).
		Where("scene_id = ?", sceneID).
		Count(&n).Error
	return n, err
}

func (r *sceneUpdateRepo) CompactReplace(dbc dbctx.Context, sceneID, scriptID uuid.UUID, snapshot []byte, priorIDs []uuid.UUID) error {
	if sceneID == uuid.Nil || scriptID == uuid.Nil {
		return errkind.Validation("missing scene_id or script_id")
	}
	if dbc.Tx == nil {
		return errkind.Invariant("CompactReplace requires a transaction")
	}
	if len(priorIDs) == 0 {
		return nil
	}
	row := &types.SceneCRDTUpdate{
		ID:         uuid.New(),
		SceneID:    sceneID,
		ScriptID:   scriptID,
		Update:     snapshot,
		Actor:      "compaction",
		IsSnapshot: true,
	}
	tx := dbc.Tx.WithContext(dbc.Ctx)
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	return tx.Where("scene_id = ? AND id IN ?", sceneID, priorIDs).
		Delete(&types.SceneCRDTUpdate{}).Error
}
