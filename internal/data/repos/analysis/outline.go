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

// DirtyState is the counter snapshot returned by an increment.
type DirtyState struct {
	DirtySceneCount int  `gorm:"column:dirty_scene_count"`
	IsStale         bool `gorm:"column:is_stale"`
}

type OutlineRepo interface {
	GetByScript(dbc dbctx.Context, scriptID uuid.UUID) (*types.ScriptOutline, error)
	GetOrCreate(dbc dbctx.Context, scriptID uuid.UUID) (*types.ScriptOutline, error)
	// IncrementDirty bumps the dirty counter by one and latches is_stale once
	// the counter reaches threshold, in a single statement.
	IncrementDirty(dbc dbctx.Context, scriptID uuid.UUID, threshold int) (*DirtyState, error)
	// ResetAfterRefresh persists new content and atomically clears staleness,
	// zeroes the counter, bumps the version and stamps last_generated_at.
	ResetAfterRefresh(dbc dbctx.Context, scriptID uuid.UUID, outline string, tokenEstimate int) error
}

type outlineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutlineRepo(db *gorm.DB, log *logger.Logger) OutlineRepo {
	return &outlineRepo{db: db, log: log.With("repo", "OutlineRepo")}
}

func (r *outlineRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *outlineRepo) GetByScript(dbc dbctx.Context, scriptID uuid.UUID) (*types.ScriptOutline, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	var out types.ScriptOutline
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("script_id = ?", scriptID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *outlineRepo) GetOrCreate(dbc dbctx.Context, scriptID uuid.UUID) (*types.ScriptOutline, error) {
	ex, err := r.GetByScript(dbc, scriptID)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		return ex, nil
	}
	row := &types.ScriptOutline{ID: uuid.New(), ScriptID: scriptID}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		// Possible race: another worker created it.
		ex2, getErr := r.GetByScript(dbc, scriptID)
		if getErr == nil && ex2 != nil {
			return ex2, nil
		}
		return nil, err
	}
	return row, nil
}

func (r *outlineRepo) IncrementDirty(dbc dbctx.Context, scriptID uuid.UUID, threshold int) (*DirtyState, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	if _, err := r.GetOrCreate(dbc, scriptID); err != nil {
		return nil, err
	}
	var out DirtyState
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(`
		UPDATE script_outlines
		SET dirty_scene_count = dirty_scene_count + 1,
		    is_stale = is_stale OR (dirty_scene_count + 1 >= ?),
		    updated_at = now()
		WHERE script_id = ?
		RETURNING dirty_scene_count, is_stale`,
		threshold, scriptID,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *outlineRepo) ResetAfterRefresh(dbc dbctx.Context, scriptID uuid.UUID, outline string, tokenEstimate int) error {
	if scriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if _, err := r.GetOrCreate(dbc, scriptID); err != nil {
		return err
	}
	now := time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.ScriptOutline{}).
		Where("script_id = ?", scriptID).
		Updates(map[string]interface{}{
			"outline":           outline,
			"token_estimate":    tokenEstimate,
			"is_stale":          false,
			"dirty_scene_count": 0,
			"version":           gorm.Expr("version + 1"),
			"last_generated_at": now,
			"updated_at":        now,
		}).Error
}
