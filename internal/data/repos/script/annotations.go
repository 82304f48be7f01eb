package script

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type PlotThreadRepo interface {
	Upsert(dbc dbctx.Context, row *types.PlotThread) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.PlotThread, error)
	GetByName(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.PlotThread, error)
}

type plotThreadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlotThreadRepo(db *gorm.DB, log *logger.Logger) PlotThreadRepo {
	return &plotThreadRepo{db: db, log: log.With("repo", "PlotThreadRepo")}
}

func (r *plotThreadRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *plotThreadRepo) Upsert(dbc dbctx.Context, row *types.PlotThread) error {
	if row == nil || row.ScriptID == uuid.Nil || row.Name == "" {
		return errkind.Validation("missing script_id or thread name")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "script_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "description", "updated_at"}),
		}).
		Create(row).Error
}

func (r *plotThreadRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.PlotThread, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.PlotThread
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

func (r *plotThreadRepo) GetByName(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.PlotThread, error) {
	if scriptID == uuid.Nil || name == "" {
		return nil, errkind.Validation("missing script_id or thread name")
	}
	var out types.PlotThread
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ? AND name = ?", scriptID, name).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type SceneRelationshipRepo interface {
	Create(dbc dbctx.Context, row *types.SceneRelationship) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.SceneRelationship, error)
	ListByScene(dbc dbctx.Context, sceneID uuid.UUID) ([]types.SceneRelationship, error)
}

type sceneRelationshipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneRelationshipRepo(db *gorm.DB, log *logger.Logger) SceneRelationshipRepo {
	return &sceneRelationshipRepo{db: db, log: log.With("repo", "SceneRelationshipRepo")}
}

func (r *sceneRelationshipRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sceneRelationshipRepo) Create(dbc dbctx.Context, row *types.SceneRelationship) error {
	if row == nil || row.ScriptID == uuid.Nil || row.FromSceneID == uuid.Nil || row.ToSceneID == uuid.Nil {
		return errkind.Validation("missing relationship endpoints")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *sceneRelationshipRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.SceneRelationship, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.SceneRelationship
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Find(&out).Error
	return out, err
}

func (r *sceneRelationshipRepo) ListByScene(dbc dbctx.Context, sceneID uuid.UUID) ([]types.SceneRelationship, error) {
	if sceneID == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out []types.SceneRelationship
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("from_scene_id = ? OR to_scene_id = ?", sceneID, sceneID).
		Find(&out).Error
	return out, err
}
