package steps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/crdt"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

// DeriveSnapshot replays the script's CRDT log and returns the block list
// the document currently describes, recording a snapshot-metadata row for
// the derivation.
func DeriveSnapshot(ctx context.Context, d Deps, scriptID uuid.UUID) ([]blocks.Block, error) {
	doc := crdt.NewDoc()
	applied, compacted, err := LoadAndCompactIfNeeded(ctx, d, scriptID, doc, 0)
	if err != nil {
		return nil, err
	}
	list := doc.Blocks()

	source := types.SnapshotSourceLive
	if compacted {
		// Compaction already wrote its own metadata row inside the replace
		// transaction; this derivation row records the read.
		source = types.SnapshotSourceCompacted
	}
	state, err := doc.EncodeState()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(state)
	if err := d.Snapshots.Insert(dbctx.Context{Ctx: ctx}, &types.SnapshotMetadata{
		ScriptID:    scriptID,
		Source:      source,
		UpdateCount: applied,
		StateSHA256: hex.EncodeToString(sum[:]),
		SizeBytes:   len(state),
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		d.Log.Warn("snapshot metadata insert failed", "script_id", scriptID.String(), "error", err.Error())
	}
	return list, nil
}

// PopulateFromBlocks seeds an empty CRDT log from an existing block list,
// the inverse of DeriveSnapshot. Used for migration and import.
func PopulateFromBlocks(ctx context.Context, d Deps, scriptID uuid.UUID, list []blocks.Block, actor string) error {
	doc := crdt.NewDoc()
	update, err := doc.PopulateFromBlocks(actor, list)
	if err != nil {
		return err
	}
	if err := StoreUpdate(ctx, d, scriptID, update, actor); err != nil {
		return err
	}
	sum := sha256.Sum256(update)
	if err := d.Snapshots.Insert(dbctx.Context{Ctx: ctx}, &types.SnapshotMetadata{
		ScriptID:    scriptID,
		Source:      types.SnapshotSourceImport,
		UpdateCount: 1,
		StateSHA256: hex.EncodeToString(sum[:]),
		SizeBytes:   len(update),
		GeneratedAt: time.Now().UTC(),
	}); err != nil {
		d.Log.Warn("snapshot metadata insert failed", "script_id", scriptID.String(), "error", err.Error())
	}
	return nil
}
