// Package analysis owns the derived-artifact pipeline: scene summaries, the
// script outline, character sheets, and embeddings, plus the staleness
// bookkeeping that decides when each needs regenerating.
package analysis

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

type Deps struct {
	steps.Deps

	Queue   queue.Queue
	JobRuns repos.JobRunRepo
}

type Usecases struct {
	d Deps
}

func New(d Deps) *Usecases {
	return &Usecases{d: d}
}

// StepDeps exposes the inner step dependencies for job handlers.
func (u *Usecases) StepDeps() steps.Deps { return u.d.Deps }

// AnalyzeScript enqueues a full ingestion run and returns the job ID the
// caller can poll. Duplicate requests while a run is queued or running
// collapse onto the existing job.
func (u *Usecases) AnalyzeScript(ctx context.Context, scriptID uuid.UUID, depth string) (string, bool, error) {
	if depth != steps.DepthFull {
		depth = steps.DepthPartial
	}
	job := queue.Job{
		ID:       queue.DeterministicID(queue.TypeAnalyzeScript, scriptID.String()),
		Type:     queue.TypeAnalyzeScript,
		Priority: queue.PriorityLow,
		ScriptID: scriptID,
		Args:     map[string]string{"depth": depth},
	}
	accepted, err := u.enqueue(ctx, job)
	return job.ID, accepted, err
}

// EnqueueRefreshes turns a committed StaleReport into background work: the
// edited scene's summary refreshes urgently, stale character sheets at
// normal priority, and a stale outline at low priority.
func (u *Usecases) EnqueueRefreshes(ctx context.Context, report *StaleReport) {
	if report == nil {
		return
	}
	var jobs []queue.Job
	if report.ContentChanged {
		jobs = append(jobs, queue.Job{
			ID:       queue.DeterministicID(queue.TypeRefreshSceneSummary, report.SceneID.String()),
			Type:     queue.TypeRefreshSceneSummary,
			Priority: queue.PriorityUrgent,
			ScriptID: report.ScriptID,
			Args:     map[string]string{"scene_id": report.SceneID.String()},
		})
	}
	for _, sheet := range report.Sheets {
		if !sheet.IsStale {
			continue
		}
		jobs = append(jobs, queue.Job{
			ID:       queue.DeterministicID(queue.TypeRefreshCharacterSheet, report.ScriptID.String(), sheet.Name),
			Type:     queue.TypeRefreshCharacterSheet,
			Priority: queue.PriorityNormal,
			ScriptID: report.ScriptID,
			Args:     map[string]string{"name": sheet.Name},
		})
	}
	if report.Outline.IsStale {
		jobs = append(jobs, queue.Job{
			ID:       queue.DeterministicID(queue.TypeRefreshOutline, report.ScriptID.String()),
			Type:     queue.TypeRefreshOutline,
			Priority: queue.PriorityLow,
			ScriptID: report.ScriptID,
		})
	}
	for _, job := range jobs {
		if _, err := u.enqueue(ctx, job); err != nil {
			// The dirty counters persisted with the edit, so a missed enqueue
			// is recovered by the next edit or an explicit analyze run.
			u.d.Log.Error("refresh enqueue failed", "job_id", job.ID, "error", err.Error())
		}
	}
}

// EnqueueWriteOpGC schedules the periodic idempotency-ledger sweep.
func (u *Usecases) EnqueueWriteOpGC(ctx context.Context) error {
	_, err := u.enqueue(ctx, queue.Job{
		ID:       queue.DeterministicID(queue.TypeWriteOpGC, "global"),
		Type:     queue.TypeWriteOpGC,
		Priority: queue.PriorityLow,
	})
	return err
}

// enqueue pushes to Redis first, then records the run in the ledger. A row
// that fails to record does not block the job itself.
func (u *Usecases) enqueue(ctx context.Context, job queue.Job) (bool, error) {
	accepted, err := u.d.Queue.Enqueue(ctx, job)
	if err != nil || !accepted {
		return accepted, err
	}
	payload, _ := json.Marshal(job.Args)
	if _, err := u.d.JobRuns.CreateQueued(dbctx.Context{Ctx: ctx}, &types.JobRun{
		JobID:    job.ID,
		JobType:  job.Type,
		Priority: job.Priority,
		ScriptID: jobScriptID(job),
		Payload:  datatypes.JSON(payload),
	}); err != nil {
		u.d.Log.Warn("job ledger insert failed", "job_id", job.ID, "error", err.Error())
	}
	return true, nil
}

func jobScriptID(job queue.Job) *uuid.UUID {
	if job.ScriptID == uuid.Nil {
		return nil
	}
	id := job.ScriptID
	return &id
}
