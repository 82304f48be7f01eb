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

type SceneRepo interface {
	Create(dbc dbctx.Context, row *types.Scene) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Scene, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Scene, error)
	GetByPosition(dbc dbctx.Context, scriptID uuid.UUID, position int) (*types.Scene, error)
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.Scene, error)
	ListByPositions(dbc dbctx.Context, scriptID uuid.UUID, positions []int) ([]types.Scene, error)
	// UpdateContent persists new blocks together with the recomputed hash and
	// a version bump, all in the caller's transaction.
	UpdateContent(dbc dbctx.Context, id uuid.UUID, blocks datatypes.JSON, rawText, heading, contentHash string) error
	SetContentHash(dbc dbctx.Context, id uuid.UUID, hash string) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error

	ReplaceCharacters(dbc dbctx.Context, sceneID, scriptID uuid.UUID, names []string) error
	CharactersForScene(dbc dbctx.Context, sceneID uuid.UUID) ([]string, error)
	CharactersForScript(dbc dbctx.Context, scriptID uuid.UUID) ([]string, error)
	ScenesForCharacter(dbc dbctx.Context, scriptID uuid.UUID, name string) ([]types.Scene, error)
}

type sceneRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneRepo(db *gorm.DB, log *logger.Logger) SceneRepo {
	return &sceneRepo{db: db, log: log.With("repo", "SceneRepo")}
}

func (r *sceneRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sceneRepo) Create(dbc dbctx.Context, row *types.Scene) error {
	if row == nil {
		return errkind.Validation("missing scene row")
	}
	if row.ScriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if row.Position < 0 {
		return errkind.Validation("scene position %d out of range", row.Position)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *sceneRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Scene, error) {
	if id == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out types.Scene
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errkind.NotFound("scene", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sceneRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Scene, error) {
	if id == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	if dbc.Tx == nil {
		return nil, errkind.Invariant("GetByIDForUpdate requires a transaction")
	}
	var out types.Scene
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errkind.NotFound("scene", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sceneRepo) GetByPosition(dbc dbctx.Context, scriptID uuid.UUID, position int) (*types.Scene, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out types.Scene
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ? AND position = ?", scriptID, position).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sceneRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.Scene, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.Scene
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

func (r *sceneRepo) ListByPositions(dbc dbctx.Context, scriptID uuid.UUID, positions []int) ([]types.Scene, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	if len(positions) == 0 {
		return nil, nil
	}
	var out []types.Scene
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ? AND position IN ?", scriptID, positions).
		Order("position ASC").
		Find(&out).Error
	return out, err
}

func (r *sceneRepo) UpdateContent(dbc dbctx.Context, id uuid.UUID, blocks datatypes.JSON, rawText, heading, contentHash string) error {
	if id == uuid.Nil {
		return errkind.Validation("missing scene_id")
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Scene{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"blocks":       blocks,
			"raw_text":     rawText,
			"heading":      heading,
			"content_hash": contentHash,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *sceneRepo) SetContentHash(dbc dbctx.Context, id uuid.UUID, hash string) error {
	if id == uuid.Nil {
		return errkind.Validation("missing scene_id")
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Scene{}).
		Where("id = ?", id).
		Update("content_hash", hash).Error
}

func (r *sceneRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return errkind.Validation("missing scene_id")
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Scene{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sceneRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errkind.Validation("missing scene_id")
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Scene{}).Error
}

func (r *sceneRepo) ReplaceCharacters(dbc dbctx.Context, sceneID, scriptID uuid.UUID, names []string) error {
	if sceneID == uuid.Nil || scriptID == uuid.Nil {
		return errkind.Validation("missing scene_id or script_id")
	}
	tx := r.conn(dbc).WithContext(dbc.Ctx)
	if err := tx.Where("scene_id = ?", sceneID).Delete(&types.SceneCharacter{}).Error; err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	rows := make([]types.SceneCharacter, 0, len(names))
	for _, n := range names {
		rows = append(rows, types.SceneCharacter{SceneID: sceneID, ScriptID: scriptID, Name: n})
	}
	return tx.Create(&rows).Error
}

func (r *sceneRepo) CharactersForScene(dbc dbctx.Context, sceneID uuid.UUID) ([]string, error) {
	if sceneID == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out []string
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.SceneCharacter{}).
		Where("scene_id = ?", sceneID).
		Order("name ASC").
		Pluck("name", &out).Error
	return out, err
}

func (r *sceneRepo) CharactersForScript(dbc dbctx.Context, scriptID uuid.UUID) ([]string, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []string
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.SceneCharacter{}).
		Distinct("name").
		Where("script_id = ?", scriptID).
		Order("name ASC").
		Pluck("name", &out).Error
	return out, err
}

func (r *sceneRepo) ScenesForCharacter(dbc dbctx.Context, scriptID uuid.UUID, name string) ([]types.Scene, error) {
	if scriptID == uuid.Nil || name == "" {
		return nil, errkind.Validation("missing script_id or character name")
	}
	var out []types.Scene
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Joins("JOIN scene_characters sc ON sc.scene_id = scenes.id").
		Where("scenes.script_id = ? AND sc.name = ?", scriptID, name).
		Order("scenes.position ASC").
		Find(&out).Error
	return out, err
}
