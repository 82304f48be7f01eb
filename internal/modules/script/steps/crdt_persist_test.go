package steps

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/crdt"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

func TestLoadTriggersCompactionPastThreshold(t *testing.T) {
	d, db := casDeps(t)
	ctx := context.Background()
	s := seedCommittedScript(t, db)

	writer := crdt.NewDoc()
	for i := 0; i < 150; i++ {
		update, err := writer.LocalInsert("alice", i, blocks.Block{
			Type: blocks.TypeAction,
			Text: fmt.Sprintf("Beat %d.", i),
		})
		if err != nil {
			t.Fatalf("local insert %d: %v", i, err)
		}
		if err := StoreUpdate(ctx, d, s.ID, update, "alice"); err != nil {
			t.Fatalf("store update %d: %v", i, err)
		}
	}
	before := writer.Blocks()

	doc := crdt.NewDoc()
	applied, compacted, err := LoadAndCompactIfNeeded(ctx, d, s.ID, doc, 100)
	if err != nil {
		t.Fatalf("load and compact: %v", err)
	}
	if applied != 150 || !compacted {
		t.Fatalf("applied=%d compacted=%v, want 150/true", applied, compacted)
	}

	count, err := d.ScriptUpdates.Count(dbctx.Context{Ctx: ctx}, s.ID)
	if err != nil {
		t.Fatalf("count updates: %v", err)
	}
	if count != 1 {
		t.Fatalf("log has %d rows after compaction, want 1", count)
	}

	reload := crdt.NewDoc()
	if _, _, err := LoadAndCompactIfNeeded(ctx, d, s.ID, reload, 1000); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(reload.Blocks(), before) {
		t.Fatal("derived blocks changed across compaction")
	}
}

func TestPopulateThenDeriveRoundTrips(t *testing.T) {
	d, db := casDeps(t)
	ctx := context.Background()
	s := seedCommittedScript(t, db)

	in := []blocks.Block{
		{Type: blocks.TypeSceneHeading, Text: "INT. HOUSE - DAY"},
		{Type: blocks.TypeAction, Text: "John walks in.", Meta: map[string]any{"mood": "tense"}},
		{Type: blocks.TypeCharacter, Text: "JOHN", Children: []blocks.Block{
			{Type: blocks.TypeDialogue, Text: "Anybody home?"},
		}},
	}
	if err := PopulateFromBlocks(ctx, d, s.ID, in, "import"); err != nil {
		t.Fatalf("populate: %v", err)
	}
	out, err := DeriveSnapshot(ctx, d, s.ID)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}

	rows, err := d.Snapshots.ListByScript(dbctx.Context{Ctx: ctx}, s.ID, 10)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("want import and live metadata rows, got %d", len(rows))
	}
}
