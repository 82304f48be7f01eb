package jobs

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

type JobRunRepo interface {
	// CreateQueued inserts the ledger row for a new job. Returns false when a
	// row with the same job_id is still pending or running, which callers
	// treat as a dedupe hit.
	CreateQueued(dbc dbctx.Context, row *types.JobRun) (bool, error)
	GetByJobID(dbc dbctx.Context, jobID string) (*types.JobRun, error)
	MarkRunning(dbc dbctx.Context, jobID string, attempt int) error
	MarkSucceeded(dbc dbctx.Context, jobID string) error
	MarkFailed(dbc dbctx.Context, jobID, stage, errMsg string) error
	MarkDead(dbc dbctx.Context, jobID, errMsg string) error
	ListDead(dbc dbctx.Context, limit int) ([]types.JobRun, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, log *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: log.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRunRepo) CreateQueued(dbc dbctx.Context, row *types.JobRun) (bool, error) {
	if row == nil || row.JobID == "" || row.JobType == "" {
		return false, errkind.Validation("missing job_id or job_type")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.Status = types.JobStatusQueued
	if row.EnqueuedAt.IsZero() {
		row.EnqueuedAt = time.Now().UTC()
	}
	tx := r.conn(dbc).WithContext(dbc.Ctx)

	ex, err := r.GetByJobID(dbc, row.JobID)
	if err != nil {
		return false, err
	}
	if ex != nil {
		if ex.Status == types.JobStatusQueued || ex.Status == types.JobStatusRunning {
			return false, nil
		}
		// Terminal predecessor: recycle the row for the new attempt cycle.
		err := tx.Model(&types.JobRun{}).
			Where("job_id = ?", row.JobID).
			Updates(map[string]interface{}{
				"status":      types.JobStatusQueued,
				"priority":    row.Priority,
				"payload":     row.Payload,
				"attempts":    0,
				"stage":       "",
				"error":       "",
				"enqueued_at": row.EnqueuedAt,
				"started_at":  nil,
				"finished_at": nil,
				"updated_at":  time.Now().UTC(),
			}).Error
		return err == nil, err
	}
	if err := tx.Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *jobRunRepo) GetByJobID(dbc dbctx.Context, jobID string) (*types.JobRun, error) {
	if jobID == "" {
		return nil, errkind.Validation("missing job_id")
	}
	var out types.JobRun
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("job_id = ?", jobID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *jobRunRepo) MarkRunning(dbc dbctx.Context, jobID string, attempt int) error {
	now := time.Now().UTC()
	return r.update(dbc, jobID, map[string]interface{}{
		"status":     types.JobStatusRunning,
		"attempts":   attempt,
		"started_at": now,
	})
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, jobID string) error {
	now := time.Now().UTC()
	return r.update(dbc, jobID, map[string]interface{}{
		"status":      types.JobStatusSucceeded,
		"error":       "",
		"finished_at": now,
	})
}

func (r *jobRunRepo) MarkFailed(dbc dbctx.Context, jobID, stage, errMsg string) error {
	return r.update(dbc, jobID, map[string]interface{}{
		"status": types.JobStatusFailed,
		"stage":  stage,
		"error":  errMsg,
	})
}

func (r *jobRunRepo) MarkDead(dbc dbctx.Context, jobID, errMsg string) error {
	now := time.Now().UTC()
	return r.update(dbc, jobID, map[string]interface{}{
		"status":      types.JobStatusDead,
		"error":       errMsg,
		"finished_at": now,
	})
}

func (r *jobRunRepo) update(dbc dbctx.Context, jobID string, updates map[string]interface{}) error {
	if jobID == "" {
		return errkind.Validation("missing job_id")
	}
	updates["updated_at"] = time.Now().UTC()
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.JobRun{}).
		Where("job_id = ?", jobID).
		Updates(updates).Error
}

func (r *jobRunRepo) ListDead(dbc dbctx.Context, limit int) ([]types.JobRun, error) {
	q := r.conn(dbc).WithContext(dbc.Ctx).
		Where("status = ?", types.JobStatusDead).
		Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []types.JobRun
	err := q.Find(&out).Error
	return out, err
}
