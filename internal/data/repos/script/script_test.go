package script

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos/testutil"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

func TestSceneUpdateContentBumpsVersionWithHash(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	sc := testutil.SeedScene(t, ctx, tx, s.ID, 1, "John walks in.")
	repo := NewSceneRepo(db, testutil.Logger(t))

	blocks := datatypes.JSON(`[{"type":"action","text":"John runs in."}]`)
	if err := repo.UpdateContent(dbc, sc.ID, blocks, "", sc.Heading, "newhash"); err != nil {
		t.Fatalf("update content: %v", err)
	}

	got, err := repo.GetByID(dbc, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != sc.Version+1 {
		t.Fatalf("version = %d, want %d", got.Version, sc.Version+1)
	}
	if got.ContentHash == nil || *got.ContentHash != "newhash" {
		t.Fatalf("hash = %v", got.ContentHash)
	}
}

func TestSceneCharactersRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	sc1 := testutil.SeedScene(t, ctx, tx, s.ID, 1, "a")
	sc2 := testutil.SeedScene(t, ctx, tx, s.ID, 2, "b")
	repo := NewSceneRepo(db, testutil.Logger(t))

	if err := repo.ReplaceCharacters(dbc, sc1.ID, s.ID, []string{"JOHN", "MARY"}); err != nil {
		t.Fatalf("replace 1: %v", err)
	}
	if err := repo.ReplaceCharacters(dbc, sc2.ID, s.ID, []string{"JOHN"}); err != nil {
		t.Fatalf("replace 2: %v", err)
	}

	scenes, err := repo.ScenesForCharacter(dbc, s.ID, "JOHN")
	if err != nil {
		t.Fatalf("scenes for character: %v", err)
	}
	if len(scenes) != 2 || scenes[0].Position != 1 {
		t.Fatalf("scenes = %+v", scenes)
	}

	all, err := repo.CharactersForScript(dbc, s.ID)
	if err != nil {
		t.Fatalf("characters for script: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("characters = %v", all)
	}

	// Replace drops stale links.
	if err := repo.ReplaceCharacters(dbc, sc1.ID, s.ID, []string{"JOHN"}); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	names, err := repo.CharactersForScene(dbc, sc1.ID)
	if err != nil || len(names) != 1 || names[0] != "JOHN" {
		t.Fatalf("scene characters = %v, %v", names, err)
	}
}

func TestWriteOpLedgerAndGC(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	s := testutil.SeedScript(t, ctx, tx, uuid.New())
	repo := NewWriteOpRepo(db, testutil.Logger(t))

	missing, err := repo.Get(dbc, "op-42")
	if err != nil || missing != nil {
		t.Fatalf("unexpected ledger hit: %v, %v", missing, err)
	}

	row := &types.WriteOp{
		OpID:     "op-42",
		ScriptID: s.ID,
		UserID:   uuid.New(),
		Result:   datatypes.JSON(`{"version":1}`),
	}
	if err := repo.Put(dbc, row); err != nil {
		t.Fatalf("put: %v", err)
	}

	hit, err := repo.Get(dbc, "op-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit == nil || string(hit.Result) != `{"version":1}` {
		t.Fatalf("hit = %+v", hit)
	}

	// Entries younger than the cutoff survive GC.
	n, err := repo.DeleteOlderThan(dbc, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if n != 0 {
		t.Fatalf("gc removed %d fresh rows", n)
	}
}

func TestScriptGetByIDNotFound(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewScriptRepo(db, testutil.Logger(t))
	_, err := repo.GetByID(dbc, uuid.New())
	if errkind.KindOf(err) != errkind.KindNotFound {
		t.Fatalf("kind = %v, want not_found", errkind.KindOf(err))
	}
}
