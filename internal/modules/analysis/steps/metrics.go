package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

// recordRefreshMetric writes one latency row for a completed refresh. The
// refresh already succeeded, so a failed insert only warns.
func recordRefreshMetric(ctx context.Context, d Deps, operation string, scriptID uuid.UUID, start time.Time) {
	if d.Metrics == nil {
		return
	}
	sid := scriptID
	if err := d.Metrics.Insert(dbctx.Context{Ctx: ctx}, &types.OperationMetric{
		ScriptID:  &sid,
		Operation: operation,
		LatencyMS: time.Since(start).Milliseconds(),
	}); err != nil {
		d.Log.Warn("operation metric insert failed", "operation", operation, "error", err.Error())
	}
}
