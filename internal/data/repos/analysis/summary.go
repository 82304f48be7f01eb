package analysis

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

type SceneSummaryRepo interface {
	GetBySceneID(dbc dbctx.Context, sceneID uuid.UUID) (*types.SceneSummary, error)
	// Upsert replaces the summary for a scene, bumping version on conflict.
	Upsert(dbc dbctx.Context, row *types.SceneSummary) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.SceneSummary, error)
	ListForScenes(dbc dbctx.Context, sceneIDs []uuid.UUID) ([]types.SceneSummary, error)
	CountByScript(dbc dbctx.Context, scriptID uuid.UUID) (int64, error)
}

type sceneSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneSummaryRepo(db *gorm.DB, log *logger.Logger) SceneSummaryRepo {
	return &sceneSummaryRepo{db: db, log: log.With("repo", "SceneSummaryRepo")}
}

func (r *sceneSummaryRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sceneSummaryRepo) GetBySceneID(dbc dbctx.Context, sceneID uuid.UUID) (*types.SceneSummary, error) {
	if sceneID == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out types.SceneSummary
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("scene_id = ?", sceneID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sceneSummaryRepo) Upsert(dbc dbctx.Context, row *types.SceneSummary) error {
	if row == nil || row.SceneID == uuid.Nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing scene_id or script_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.GeneratedAt.IsZero() {
		row.GeneratedAt = time.Now().UTC()
	}
	if row.Version == 0 {
		row.Version = 1
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scene_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"summary":        row.Summary,
				"token_estimate": row.TokenEstimate,
				"content_hash":   row.ContentHash,
				"version":        gorm.Expr("scene_summaries.version + 1"),
				"generated_at":   row.GeneratedAt,
			}),
		}).
		Create(row).Error
}

func (r *sceneSummaryRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.SceneSummary, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.SceneSummary
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Joins("JOIN scenes ON scenes.id = scene_summaries.scene_id").
		Where("scene_summaries.script_id = ?", scriptID).
		Order("scenes.position ASC").
		Find(&out).Error
	return out, err
}

func (r *sceneSummaryRepo) ListForScenes(dbc dbctx.Context, sceneIDs []uuid.UUID) ([]types.SceneSummary, error) {
	if len(sceneIDs) == 0 {
		return nil, nil
	}
	var out []types.SceneSummary
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("scene_id IN ?", sceneIDs).
		Find(&out).Error
	return out, err
}

func (r *sceneSummaryRepo) CountByScript(dbc dbctx.Context, scriptID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.SceneSummary{}).
		Where("script_id = ?", scriptID).
		Count(&n).Error
	return n, err
}
