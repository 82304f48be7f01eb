// Package queue implements the three-level priority job queue over Redis
// lists. FIFO holds within a level; workers always drain urgent before
// normal before low. A deterministic job ID dedupes re-enqueues while the
// predecessor is still pending or running.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

const (
	PriorityUrgent = "urgent"
	PriorityNormal = "normal"
	PriorityLow    = "low"

	keyUrgent  = "jobs:urgent"
	keyNormal  = "jobs:normal"
	keyLow     = "jobs:low"
	keyPending = "jobs:pending"
	keyDead    = "jobs:dead"
)

// Job types handled by the workers.
const (
	TypeRefreshSceneSummary   = "refresh_scene_summary"
	TypeRefreshCharacterSheet = "refresh_character_sheet"
	TypeRefreshOutline        = "refresh_outline"
	TypeAnalyzeScript         = "analyze_script"
	TypeWriteOpGC             = "write_op_gc"
)

type Job struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Priority string            `json:"priority"`
	ScriptID uuid.UUID         `json:"script_id,omitempty"`
	Args     map[string]string `json:"args,omitempty"`

	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeterministicID builds the dedupe key for a job from its type and its
// identifying arguments.
func DeterministicID(jobType string, parts ...string) string {
	return jobType + ":" + strings.Join(parts, ":")
}

type DeadJob struct {
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

type Queue interface {
	// Enqueue pushes the job unless an identical job ID is already pending
	// or running. Returns false on a dedupe hit.
	Enqueue(ctx context.Context, job Job) (bool, error)
	// Dequeue blocks up to timeout for the next job, honoring priority.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	// Requeue puts a job back at the tail of its queue for a retry. The
	// pending marker is kept so duplicates stay suppressed.
	Requeue(ctx context.Context, job Job) error
	// Ack clears the pending marker after terminal handling.
	Ack(ctx context.Context, job Job) error
	// DeadLetter records the job on the dead list and clears its marker.
	DeadLetter(ctx context.Context, job Job, errMsg string) error
	DeadJobs(ctx context.Context, limit int64) ([]DeadJob, error)
}

type redisQueue struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewRedisQueue(rdb *redis.Client, log *logger.Logger) Queue {
	return &redisQueue{rdb: rdb, log: log.With("service", "JobQueue")}
}

func keyFor(priority string) string {
	switch priority {
	case PriorityUrgent:
		return keyUrgent
	case PriorityLow:
		return keyLow
	default:
		return keyNormal
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	if job.ID == "" || job.Type == "" {
		return false, errkind.Validation("job missing id or type")
	}
	if job.Priority == "" {
		job.Priority = PriorityNormal
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	added, err := q.rdb.SAdd(ctx, keyPending, job.ID).Result()
	if err != nil {
		return false, errkind.Transient(err, "queue enqueue: pending marker")
	}
	if added == 0 {
		q.log.Debug("duplicate job suppressed", "job_id", job.ID)
		return false, nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		_ = q.rdb.SRem(ctx, keyPending, job.ID).Err()
		return false, err
	}
	if err := q.rdb.LPush(ctx, keyFor(job.Priority), payload).Err(); err != nil {
		_ = q.rdb.SRem(ctx, keyPending, job.ID).Err()
		return false, errkind.Transient(err, "queue enqueue: push")
	}
	return true, nil
}

func (q *redisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, timeout, keyUrgent, keyNormal, keyLow).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.Transient(err, "queue dequeue")
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, errkind.Invariant("unexpected BRPOP reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, errkind.Invariant("undecodable job payload: %v", err)
	}
	return &job, nil
}

func (q *redisQueue) Requeue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, keyFor(job.Priority), payload).Err(); err != nil {
		return errkind.Transient(err, "queue requeue")
	}
	return nil
}

func (q *redisQueue) Ack(ctx context.Context, job Job) error {
	if err := q.rdb.SRem(ctx, keyPending, job.ID).Err(); err != nil {
		return errkind.Transient(err, "queue ack")
	}
	return nil
}

func (q *redisQueue) DeadLetter(ctx context.Context, job Job, errMsg string) error {
	dead := DeadJob{Job: job, Error: errMsg, FailedAt: time.Now().UTC()}
	payload, err := json.Marshal(dead)
	if err != nil {
		return err
	}
	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, keyDead, payload)
	pipe.SRem(ctx, keyPending, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errkind.Transient(err, "queue dead-letter")
	}
	q.log.Warn("job dead-lettered", "job_id", job.ID, "job_type", job.Type, "error", errMsg)
	return nil
}

func (q *redisQueue) DeadJobs(ctx context.Context, limit int64) ([]DeadJob, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := q.rdb.LRange(ctx, keyDead, 0, limit-1).Result()
	if err != nil {
		return nil, errkind.Transient(err, "queue dead list")
	}
	out := make([]DeadJob, 0, len(raw))
	for _, item := range raw {
		var d DeadJob
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
