// Package worker drains the priority queues and dispatches jobs to their
// registered handlers with per-type deadlines, retries, and dead-lettering.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// maxAttempts is the total tries a job gets before the dead-letter list.
const maxAttempts = 3

const dequeueWait = 5 * time.Second

type Handler func(ctx context.Context, job queue.Job) error

type Worker struct {
	q        queue.Queue
	jobRuns  repos.JobRunRepo
	log      *logger.Logger
	cfg      config.Config
	handlers map[string]Handler
}

func New(q queue.Queue, jobRuns repos.JobRunRepo, log *logger.Logger, cfg config.Config) *Worker {
	return &Worker{
		q:        q,
		jobRuns:  jobRuns,
		log:      log.With("service", "JobWorker"),
		cfg:      cfg,
		handlers: make(map[string]Handler),
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

// Run drains the queues until ctx is cancelled. Dequeue errors back off
// briefly instead of spinning.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopping")
			return
		}
		job, err := w.q.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn("dequeue failed", "error", err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	dbc := dbctx.Context{Ctx: ctx}
	h, ok := w.handlers[job.Type]
	if !ok {
		w.log.Error("no handler registered", "job_type", job.Type, "job_id", job.ID)
		_ = w.q.DeadLetter(ctx, job, "no handler for job type")
		_ = w.jobRuns.MarkDead(dbc, job.ID, "no handler for job type")
		return
	}

	attempt := job.Attempt + 1
	if err := w.jobRuns.MarkRunning(dbc, job.ID, attempt); err != nil {
		w.log.Warn("mark running failed", "job_id", job.ID, "error", err.Error())
	}

	jctx, cancel := context.WithTimeout(ctx, w.timeoutFor(job.Type))
	err := w.runSafely(jctx, h, job)
	cancel()

	if err == nil {
		_ = w.q.Ack(ctx, job)
		if mErr := w.jobRuns.MarkSucceeded(dbc, job.ID); mErr != nil {
			w.log.Warn("mark succeeded failed", "job_id", job.ID, "error", mErr.Error())
		}
		return
	}

	w.log.Error("job failed",
		"job_id", job.ID,
		"job_type", job.Type,
		"attempt", attempt,
		"error", err.Error(),
	)
	if mErr := w.jobRuns.MarkFailed(dbc, job.ID, job.Type, err.Error()); mErr != nil {
		w.log.Warn("mark failed failed", "job_id", job.ID, "error", mErr.Error())
	}

	if attempt < maxAttempts && retryable(err) {
		job.Attempt = attempt
		if rErr := w.q.Requeue(ctx, job); rErr != nil {
			w.log.Error("requeue failed, dead-lettering", "job_id", job.ID, "error", rErr.Error())
			w.deadLetter(ctx, job, err)
		}
		return
	}
	w.deadLetter(ctx, job, err)
}

func (w *Worker) deadLetter(ctx context.Context, job queue.Job, cause error) {
	if err := w.q.DeadLetter(ctx, job, cause.Error()); err != nil {
		w.log.Error("dead-letter failed", "job_id", job.ID, "error", err.Error())
	}
	if err := w.jobRuns.MarkDead(dbctx.Context{Ctx: ctx}, job.ID, cause.Error()); err != nil {
		w.log.Warn("mark dead failed", "job_id", job.ID, "error", err.Error())
	}
}

// runSafely converts handler panics into errors so one bad job never takes
// the worker down.
func (w *Worker) runSafely(ctx context.Context, h Handler, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("job handler panicked",
				"job_id", job.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			err = errkind.Invariant("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func (w *Worker) timeoutFor(jobType string) time.Duration {
	if jobType == queue.TypeAnalyzeScript {
		return w.cfg.IngestionJobTimeout
	}
	return w.cfg.RefreshJobTimeout
}

// Fatal input and invariant failures skip the retry loop; everything else
// gets its three attempts.
func retryable(err error) bool {
	switch errkind.KindOf(err) {
	case errkind.KindValidation, errkind.KindDependencyFatal, errkind.KindInternalInvariant, errkind.KindNotFound:
		return false
	}
	return true
}
