// Package script owns the write paths for script content: CAS-guarded block
// updates, the CRDT update log, and snapshot derivation.
package script

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/crdt"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/modules/script/steps"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

type Deps struct {
	steps.Deps
}

type Usecases struct {
	d Deps
}

func New(d Deps) *Usecases {
	return &Usecases{d: d}
}

// UpdateScriptWithCAS is the version-guarded write entrypoint. A version
// mismatch returns a conflict error carrying the latest script row; a
// replayed op-id returns the cached result without re-applying.
func (u *Usecases) UpdateScriptWithCAS(ctx context.Context, scriptID, userID uuid.UUID, baseVersion int64, newBlocks datatypes.JSON, deltas []steps.SceneDelta, opID string) (*steps.CASResult, error) {
	return steps.UpdateWithCAS(ctx, u.d.Deps, scriptID, userID, baseVersion, newBlocks, deltas, opID)
}

// OnSceneChanged runs the synchronous staleness update in its own
// transaction, then enqueues whatever refreshes the change warranted.
func (u *Usecases) OnSceneChanged(ctx context.Context, sceneID uuid.UUID) error {
	var report *analysis.StaleReport
	err := u.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := u.d.Analysis.OnSceneChanged(dbctx.Context{Ctx: ctx, Tx: tx}, sceneID)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		return err
	}
	u.d.Analysis.EnqueueRefreshes(ctx, report)
	return nil
}

// StoreCRDTUpdate appends one opaque update to the script's log.
func (u *Usecases) StoreCRDTUpdate(ctx context.Context, scriptID uuid.UUID, data []byte, actor string) error {
	return steps.StoreUpdate(ctx, u.d.Deps, scriptID, data, actor)
}

// LoadCRDT replays the script's log into doc, compacting when the log has
// outgrown the configured threshold.
func (u *Usecases) LoadCRDT(ctx context.Context, scriptID uuid.UUID, doc *crdt.Doc) (applied int, compacted bool, err error) {
	return steps.LoadAndCompactIfNeeded(ctx, u.d.Deps, scriptID, doc, 0)
}

// StoreSceneCRDTUpdate appends one opaque update to a scene's own log.
func (u *Usecases) StoreSceneCRDTUpdate(ctx context.Context, scriptID, sceneID uuid.UUID, data []byte, actor string) error {
	return steps.StoreSceneUpdate(ctx, u.d.Deps, scriptID, sceneID, data, actor)
}

// LoadSceneCRDT replays one scene's log into doc, compacting past the
// configured threshold.
func (u *Usecases) LoadSceneCRDT(ctx context.Context, sceneID uuid.UUID, doc *crdt.Doc) (applied int, compacted bool, err error) {
	return steps.LoadSceneAndCompactIfNeeded(ctx, u.d.Deps, sceneID, doc, 0)
}

// DeriveSnapshot returns the block list the CRDT document currently
// describes.
func (u *Usecases) DeriveSnapshot(ctx context.Context, scriptID uuid.UUID) ([]blocks.Block, error) {
	return steps.DeriveSnapshot(ctx, u.d.Deps, scriptID)
}

// PopulateFromBlocks seeds the CRDT log from existing block content.
func (u *Usecases) PopulateFromBlocks(ctx context.Context, scriptID uuid.UUID, list []blocks.Block, actor string) error {
	return steps.PopulateFromBlocks(ctx, u.d.Deps, scriptID, list, actor)
}

// GCWriteOps sweeps expired idempotency-ledger rows.
func (u *Usecases) GCWriteOps(ctx context.Context) (int64, error) {
	return steps.GCWriteOps(ctx, u.d.Deps)
}
