package steps

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

// writeOpRetention is how long committed op-ids stay replayable.
const writeOpRetention = 30 * 24 * time.Hour

// SceneDelta is one scene-level change riding on a script CAS write. Nil
// fields are left untouched.
type SceneDelta struct {
	SceneID  uuid.UUID       `json:"scene_id"`
	Heading  *string         `json:"heading,omitempty"`
	Position *int            `json:"position,omitempty"`
	Blocks   *datatypes.JSON `json:"blocks,omitempty"`
}

// CASResult is what a successful write returns and what the idempotency
// ledger caches.
type CASResult struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Replayed  bool      `json:"-"`
}

// UpdateWithCAS applies a script-level block write guarded by the version
// check, with any scene deltas, in one transaction. Staleness counters for
// changed scenes commit with it. A replayed op-id short-circuits to the
// cached result before any locking.
func UpdateWithCAS(ctx context.Context, d Deps, scriptID, userID uuid.UUID, baseVersion int64, newBlocks datatypes.JSON, deltas []SceneDelta, opID string) (*CASResult, error) {
	if opID != "" {
		cached, err := d.WriteOps.Get(dbctx.Context{Ctx: ctx}, opID)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			var res CASResult
			if err := json.Unmarshal(cached.Result, &res); err != nil {
				return nil, errkind.Invariant("undecodable write-op result for %s: %v", opID, err)
			}
			res.Replayed = true
			return &res, nil
		}
	}

	var (
		result  CASResult
		reports []*analysis.StaleReport
	)
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}

		s, err := d.Scripts.GetByIDForUpdate(txc, scriptID)
		if err != nil {
			return err
		}
		if s.Version != baseVersion {
			return errkind.Conflict("script", s)
		}

		newVersion := s.Version + 1
		if err := d.Scripts.SetBlocksCAS(txc, scriptID, newVersion, newBlocks, userID); err != nil {
			return err
		}
		if err := d.Versions.Append(txc, &types.ScriptVersion{
			ScriptID:  scriptID,
			Version:   newVersion,
			Update:    []byte(newBlocks),
			CreatedBy: userID,
		}); err != nil {
			return err
		}

		for _, delta := range deltas {
			report, err := applySceneDelta(txc, d, scriptID, delta)
			if err != nil {
				return err
			}
			if report != nil {
				reports = append(reports, report)
			}
		}

		result = CASResult{Version: newVersion, UpdatedAt: time.Now().UTC()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Post-commit: cache the result for replay, then kick off refreshes. A
	// rolled-back or cancelled attempt never reaches this point.
	if opID != "" {
		payload, _ := json.Marshal(result)
		if err := d.WriteOps.Put(dbctx.Context{Ctx: ctx}, &types.WriteOp{
			OpID:     opID,
			ScriptID: scriptID,
			UserID:   userID,
			Result:   datatypes.JSON(payload),
		}); err != nil {
			d.Log.Warn("write-op ledger insert failed", "op_id", opID, "error", err.Error())
		}
	}
	for _, report := range reports {
		d.Analysis.EnqueueRefreshes(ctx, report)
	}
	return &result, nil
}

func applySceneDelta(txc dbctx.Context, d Deps, scriptID uuid.UUID, delta SceneDelta) (*analysis.StaleReport, error) {
	sc, err := d.Scenes.GetByIDForUpdate(txc, delta.SceneID)
	if err != nil {
		return nil, err
	}
	if sc.ScriptID != scriptID {
		return nil, errkind.Validation("scene %s does not belong to script %s", delta.SceneID, scriptID)
	}

	updates := map[string]interface{}{}
	if delta.Heading != nil {
		updates["heading"] = *delta.Heading
	}
	if delta.Position != nil {
		updates["position"] = *delta.Position
	}
	contentChanged := false
	if delta.Blocks != nil {
		list, err := blocks.ParseList(*delta.Blocks)
		if err != nil {
			return nil, err
		}
		updates["blocks"] = *delta.Blocks
		updates["raw_text"] = blocks.Text(list)
		if delta.Heading == nil {
			if h := firstHeading(list); h != "" {
				updates["heading"] = h
			}
		}
		contentChanged = true
	}
	if len(updates) == 0 {
		return nil, nil
	}
	updates["version"] = gorm.Expr("version + 1")
	if err := d.Scenes.UpdateFields(txc, sc.ID, updates); err != nil {
		return nil, err
	}
	if !contentChanged && delta.Heading == nil {
		return nil, nil
	}
	return d.Analysis.OnSceneChanged(txc, sc.ID)
}

func firstHeading(list []blocks.Block) string {
	for _, b := range list {
		if b.Type == blocks.TypeSceneHeading {
			return b.Text
		}
	}
	return ""
}

// GCWriteOps deletes ledger rows older than the retention window.
func GCWriteOps(ctx context.Context, d Deps) (int64, error) {
	cutoff := time.Now().UTC().Add(-writeOpRetention)
	return d.WriteOps.DeleteOlderThan(dbctx.Context{Ctx: ctx}, cutoff)
}
