package script

import (
	"errors"
	"time"

	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// WriteOpRepo is the idempotency ledger. Get before a CAS attempt, Put after
// commit; GC prunes entries past the retention window.
type WriteOpRepo interface {
	Get(dbc dbctx.Context, opID string) (*types.WriteOp, error)
	Put(dbc dbctx.Context, row *types.WriteOp) error
	DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type writeOpRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWriteOpRepo(db *gorm.DB, log *logger.Logger) WriteOpRepo {
	return &writeOpRepo{db: db, log: log.With("repo", "WriteOpRepo")}
}

func (r *writeOpRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *writeOpRepo) Get(dbc dbctx.Context, opID string) (*types.WriteOp, error) {
	if opID == "" {
		return nil, errkind.Validation("missing op_id")
	}
	var out types.WriteOp
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("op_id = ?", opID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *writeOpRepo) Put(dbc dbctx.Context, row *types.WriteOp) error {
	if row == nil || row.OpID == "" {
		return errkind.Validation("missing op_id")
	}
	return r.conn(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *writeOpRepo) DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := r.conn(dbc).WithContext(dbc.Ctx).
		Where("created_at < ?", cutoff).
		Delete(&types.WriteOp{})
	return res.RowsAffected, res.Error
}
