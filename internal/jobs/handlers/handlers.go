// Package handlers binds queue job types to the module operations that
// service them.
package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/jobs/queue"
	"github.com/scriptwell/scriptwell-backend/internal/jobs/worker"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	analysissteps "github.com/scriptwell/scriptwell-backend/internal/modules/analysis/steps"
	"github.com/scriptwell/scriptwell-backend/internal/modules/script"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

// Register wires every known job type into the worker.
func Register(w *worker.Worker, an *analysis.Usecases, sc *script.Usecases) {
	d := an.StepDeps()

	w.Register(queue.TypeRefreshSceneSummary, func(ctx context.Context, job queue.Job) error {
		sceneID, err := uuidArg(job, "scene_id")
		if err != nil {
			return err
		}
		return analysissteps.RefreshSceneSummary(ctx, d, sceneID)
	})

	w.Register(queue.TypeRefreshCharacterSheet, func(ctx context.Context, job queue.Job) error {
		name := job.Args["name"]
		if name == "" {
			return errkind.Validation("character sheet job %s missing name arg", job.ID)
		}
		return analysissteps.RefreshCharacterSheet(ctx, d, job.ScriptID, name)
	})

	w.Register(queue.TypeRefreshOutline, func(ctx context.Context, job queue.Job) error {
		return analysissteps.RefreshOutline(ctx, d, job.ScriptID)
	})

	w.Register(queue.TypeAnalyzeScript, func(ctx context.Context, job queue.Job) error {
		depth := job.Args["depth"]
		if depth == "" {
			depth = analysissteps.DepthPartial
		}
		return analysissteps.AnalyzeScript(ctx, d, job.ScriptID, depth)
	})

	w.Register(queue.TypeWriteOpGC, func(ctx context.Context, job queue.Job) error {
		_, err := sc.GCWriteOps(ctx)
		return err
	})
}

func uuidArg(job queue.Job, key string) (uuid.UUID, error) {
	raw := job.Args[key]
	if raw == "" {
		return uuid.Nil, errkind.Validation("job %s missing %s arg", job.ID, key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errkind.Validation("job %s has bad %s: %v", job.ID, key, err)
	}
	return id, nil
}
