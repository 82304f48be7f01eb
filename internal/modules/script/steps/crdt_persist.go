package steps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/crdt"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

// StoreUpdate appends one opaque CRDT update to the script's log.
func StoreUpdate(ctx context.Context, d Deps, scriptID uuid.UUID, data []byte, actor string) error {
	if len(data) == 0 {
		return errkind.Validation("empty crdt update")
	}
	return d.ScriptUpdates.Append(dbctx.Context{Ctx: ctx}, &types.ScriptCRDTUpdate{
		ScriptID: scriptID,
		Update:   data,
		Actor:    actor,
	})
}

// LoadAndCompactIfNeeded replays the script's update log into doc in
// creation order. When the log has grown past the threshold, the document
// state is folded into a single update that replaces the log atomically,
// with a snapshot-metadata row recording the event.
func LoadAndCompactIfNeeded(ctx context.Context, d Deps, scriptID uuid.UUID, doc *crdt.Doc, threshold int) (applied int, compacted bool, err error) {
	if threshold <= 0 {
		threshold = d.Cfg.CRDTCompactThreshold
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := d.ScriptUpdates.ListInOrder(dbc, scriptID)
	if err != nil {
		return 0, false, err
	}
	for i := range rows {
		if err := doc.ApplyUpdate(rows[i].Update); err != nil {
			// A single bad update is skipped rather than wedging the log.
			d.Log.Warn("skipping undecodable crdt update",
				"script_id", scriptID.String(),
				"update_id", rows[i].ID.String(),
				"error", err.Error(),
			)
			continue
		}
		applied++
	}
	if len(rows) <= threshold {
		return applied, false, nil
	}

	state, err := doc.EncodeState()
	if err != nil {
		return applied, false, err
	}
	priorIDs := make([]uuid.UUID, len(rows))
	for i := range rows {
		priorIDs[i] = rows[i].ID
	}

	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := d.ScriptUpdates.CompactReplace(txc, scriptID, state, priorIDs); err != nil {
			return err
		}
		sum := sha256.Sum256(state)
		return d.Snapshots.Insert(txc, &types.SnapshotMetadata{
			ScriptID:    scriptID,
			Source:      types.SnapshotSourceCompacted,
			UpdateCount: len(rows),
			StateSHA256: hex.EncodeToString(sum[:]),
			SizeBytes:   len(state),
			GeneratedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return applied, false, err
	}
	return applied, true, nil
}

// StoreSceneUpdate appends one opaque CRDT update to a scene's own log.
// The scene-scoped log lets an editor open a single scene without
// replaying the whole script.
func StoreSceneUpdate(ctx context.Context, d Deps, scriptID, sceneID uuid.UUID, data []byte, actor string) error {
	if len(data) == 0 {
		return errkind.Validation("empty crdt update")
	}
	return d.SceneUpdates.Append(dbctx.Context{Ctx: ctx}, &types.SceneCRDTUpdate{
		SceneID:  sceneID,
		ScriptID: scriptID,
		Update:   data,
		Actor:    actor,
	})
}

// LoadSceneAndCompactIfNeeded is the scene-scoped counterpart of
// LoadAndCompactIfNeeded.
func LoadSceneAndCompactIfNeeded(ctx context.Context, d Deps, sceneID uuid.UUID, doc *crdt.Doc, threshold int) (applied int, compacted bool, err error) {
	if threshold <= 0 {
		threshold = d.Cfg.CRDTCompactThreshold
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := d.SceneUpdates.ListInOrder(dbc, sceneID)
	if err != nil {
		return 0, false, err
	}
	for i := range rows {
		if err := doc.ApplyUpdate(rows[i].Update); err != nil {
			d.Log.Warn("skipping undecodable crdt update",
				"scene_id", sceneID.String(),
				"update_id", rows[i].ID.String(),
				"error", err.Error(),
			)
			continue
		}
		applied++
	}
	if len(rows) <= threshold {
		return applied, false, nil
	}

	state, err := doc.EncodeState()
	if err != nil {
		return applied, false, err
	}
	priorIDs := make([]uuid.UUID, len(rows))
	for i := range rows {
		priorIDs[i] = rows[i].ID
	}
	scriptID := rows[0].ScriptID
	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return d.SceneUpdates.CompactReplace(dbctx.Context{Ctx: ctx, Tx: tx}, sceneID, scriptID, state, priorIDs)
	})
	if err != nil {
		return applied, false, err
	}
	return applied, true, nil
}
