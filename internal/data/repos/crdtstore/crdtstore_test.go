package crdtstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos/testutil"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

func TestScriptUpdateAppendAndOrder(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	repo := NewScriptUpdateRepo(db, testutil.Logger(t))

	for i := 0; i < 5; i++ {
		err := repo.Append(dbc, &types.ScriptCRDTUpdate{
			ScriptID: s.ID,
			Update:   []byte(fmt.Sprintf("u%d", i)),
			Actor:    "alice",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	rows, err := repo.ListInOrder(dbc, s.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d", len(rows))
	}
	for i, row := range rows {
		if string(row.Update) != fmt.Sprintf("u%d", i) {
			t.Fatalf("row %d out of order: %s", i, row.Update)
		}
	}
}

func TestCompactReplaceLeavesSingleSnapshotRow(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	repo := NewScriptUpdateRepo(db, testutil.Logger(t))

	var ids []uuid.UUID
	for i := 0; i < 150; i++ {
		row := &types.ScriptCRDTUpdate{ScriptID: s.ID, Update: []byte(fmt.Sprintf("u%d", i))}
		if err := repo.Append(dbc, row); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		ids = append(ids, row.ID)
	}

	if err := repo.CompactReplace(dbc, s.ID, []byte("snapshot-state"), ids); err != nil {
		t.Fatalf("compact: %v", err)
	}

	rows, err := repo.ListInOrder(dbc, s.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows after compaction = %d, want 1", len(rows))
	}
	if !rows[0].IsSnapshot || string(rows[0].Update) != "snapshot-state" {
		t.Fatalf("snapshot row = %+v", rows[0])
	}
}

func TestCompactReplaceRequiresTransaction(t *testing.T) {
	db := testutil.DB(t)
	repo := NewScriptUpdateRepo(db, testutil.Logger(t))
	err := repo.CompactReplace(dbctx.Context{Ctx: context.Background()}, uuid.New(), []byte("x"), []uuid.UUID{uuid.New()})
	if err == nil {
		t.Fatal("want invariant error outside a transaction")
	}
}

func TestSnapshotMetadataInsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	repo := NewSnapshotMetadataRepo(db, testutil.Logger(t))

	err := repo.Insert(dbc, &types.SnapshotMetadata{
		ScriptID:    s.ID,
		Source:      types.SnapshotSourceCompacted,
		UpdateCount: 150,
		StateSHA256: "abc",
		SizeBytes:   1024,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := repo.ListByScript(dbc, s.ID, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list = %v, %v", rows, err)
	}
	if rows[0].Source != types.SnapshotSourceCompacted {
		t.Fatalf("source = %q", rows[0].Source)
	}
}
