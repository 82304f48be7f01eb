package analysis

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

// NamedDirtyState pairs a character name with its counter snapshot.
type NamedDirtyState struct {
	Name            string `gorm:"column:name"`
	DirtySceneCount int    `gorm:"column:dirty_scene_count"`
	IsStale         bool   `gorm:"column:is_stale"`
}

type CharacterSheetRepo interface {
	Get(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.CharacterSheet, error)
	GetOrCreate(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.CharacterSheet, error)
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.CharacterSheet, error)
	ListStale(dbc dbctx.Context, scriptID uuid.UUID) ([]types.CharacterSheet, error)
	// IncrementDirtyForNames bumps every named sheet in one round trip,
	// creating missing rows first, and reports each resulting counter.
	IncrementDirtyForNames(dbc dbctx.Context, scriptID uuid.UUID, names []string, threshold int) ([]NamedDirtyState, error)
	ResetAfterRefresh(dbc dbctx.Context, scriptID uuid.UUID, name, sheet string, tokenEstimate int) error
}

type characterSheetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCharacterSheetRepo(db *gorm.DB, log *logger.Logger) CharacterSheetRepo {
	return &characterSheetRepo{db: db, log: log.With("repo", "CharacterSheetRepo")}
}

func (r *characterSheetRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *characterSheetRepo) Get(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.CharacterSheet, error) {
	if scriptID == uuid.Nil || name == "" {
		return nil, errkind.Validation("missing script_id or character name")
	}
	var out types.CharacterSheet
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

func (r *characterSheetRepo) GetOrCreate(dbc dbctx.Context, scriptID uuid.UUID, name string) (*types.CharacterSheet, error) {
	ex, err := r.Get(dbc, scriptID, name)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		return ex, nil
	}
	row := &types.CharacterSheet{ID: uuid.New(), ScriptID: scriptID, Name: name}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		ex2, getErr := r.Get(dbc, scriptID, name)
		if getErr == nil && ex2 != nil {
			return ex2, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *characterSheetRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID) ([]types.CharacterSheet, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.CharacterSheet
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

func (r *characterSheetRepo) ListStale(dbc dbctx.Context, scriptID uuid.UUID) ([]types.CharacterSheet, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out []types.CharacterSheet
	err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ? AND is_stale = true", scriptID).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

func (r *characterSheetRepo) IncrementDirtyForNames(dbc dbctx.Context, scriptID uuid.UUID, names []string, threshold int) ([]NamedDirtyState, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	if len(names) == 0 {
		return nil, nil
	}
	for _, n := range names {
		if _, err := r.GetOrCreate(dbc, scriptID, n); err != nil {
			return nil, err
		}
	}
	var out []NamedDirtyState
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(`
		UPDATE character_sheets
		SET dirty_scene_count = dirty_scene_count + 1,
		    is_stale = is_stale OR (dirty_scene_count + 1 >= ?),
		    updated_at = now()
		WHERE script_id = ? AND name IN ?
		RETURNING name, dirty_scene_count, is_stale`,
		threshold, scriptID, names,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *characterSheetRepo) ResetAfterRefresh(dbc dbctx.Context, scriptID uuid.UUID, name, sheet string, tokenEstimate int) error {
	if scriptID == uuid.Nil || name == "" {
		return errkind.Validation("missing script_id or character name")
	}
	if _, err := r.GetOrCreate(dbc, scriptID, name); err != nil {
		return err
	}
	now := time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.CharacterSheet{}).
		Where("script_id = ? AND name = ?", scriptID, name).
		Updates(map[string]interface{}{
			"sheet":             sheet,
			"token_estimate":    tokenEstimate,
			"is_stale":          false,
			"dirty_scene_count": 0,
			"version":           gorm.Expr("version + 1"),
			"last_generated_at": now,
			"updated_at":        now,
		}).Error
}
