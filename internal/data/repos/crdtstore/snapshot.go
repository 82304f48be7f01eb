package crdtstore

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type SnapshotMetadataRepo interface {
	Insert(dbc dbctx.Context, row *types.SnapshotMetadata) error
	ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.SnapshotMetadata, error)
}

type snapshotMetadataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotMetadataRepo(db *gorm.DB, log *logger.Logger) SnapshotMetadataRepo {
	return &snapshotMetadataRepo{db: db, log: log.With("repo", "SnapshotMetadataRepo")}
}

func (r *snapshotMetadataRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *snapshotMetadataRepo) Insert(dbc dbctx.Context, row *types.SnapshotMetadata) error {
	if row == nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing script_id")
	}
	if row.Source == "" {
		return errkind.Validation("missing snapshot source")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *snapshotMetadataRepo) ListByScript(dbc dbctx.Context, scriptID uuid.UUID, limit int) ([]types.SnapshotMetadata, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("script_id = ?", scriptID).
		Order("generated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.SnapshotMetadata
	err := q.Find(&out).Error
	return out, err
}
