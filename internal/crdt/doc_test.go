package crdt

import (
	"reflect"
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

func blockList(texts ...string) []blocks.Block {
	out := make([]blocks.Block, len(texts))
	for i, t := range texts {
		out[i] = blocks.Block{Type: blocks.TypeAction, Text: t}
	}
	return out
}

func TestPopulateDeriveRoundTrip(t *testing.T) {
	in := []blocks.Block{
		{Type: blocks.TypeSceneHeading, Text: "INT. HOUSE - DAY", Meta: map[string]any{"sceneNumber": float64(3)}},
		{Type: blocks.TypeAction, Text: "John walks in."},
		{Type: blocks.TypeCharacter, Text: "JOHN", Children: []blocks.Block{
			{Type: blocks.TypeDialogue, Text: "Hello."},
		}},
	}
	d := NewDoc()
	if _, err := d.PopulateFromBlocks("import", in); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := d.Blocks(); !reflect.DeepEqual(got, in) {
		t.Fatalf("round trip:\nwant %+v\ngot  %+v", in, got)
	}
}

func TestConcurrentInsertsConverge(t *testing.T) {
	base := NewDoc()
	seed, err := base.PopulateFromBlocks("seed", blockList("a", "b"))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r1, r2 := NewDoc(), NewDoc()
	for _, r := range []*Doc{r1, r2} {
		if err := r.ApplyUpdate(seed); err != nil {
			t.Fatalf("apply seed: %v", err)
		}
	}

	// Both replicas insert concurrently at position 1.
	u1, err := r1.LocalInsert("alice", 1, blocks.Block{Type: blocks.TypeAction, Text: "x"})
	if err != nil {
		t.Fatalf("alice insert: %v", err)
	}
	u2, err := r2.LocalInsert("bob", 1, blocks.Block{Type: blocks.TypeAction, Text: "y"})
	if err != nil {
		t.Fatalf("bob insert: %v", err)
	}

	if err := r1.ApplyUpdate(u2); err != nil {
		t.Fatalf("r1 apply: %v", err)
	}
	if err := r2.ApplyUpdate(u1); err != nil {
		t.Fatalf("r2 apply: %v", err)
	}

	if !reflect.DeepEqual(r1.Blocks(), r2.Blocks()) {
		t.Fatalf("replicas diverged:\n%+v\n%+v", r1.Blocks(), r2.Blocks())
	}
	if r1.Len() != 4 {
		t.Fatalf("len = %d, want 4", r1.Len())
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	d := NewDoc()
	u, err := d.PopulateFromBlocks("seed", blockList("a", "b", "c"))
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := d.ApplyUpdate(u); err != nil {
			t.Fatalf("re-apply %d: %v", i, err)
		}
	}
	if d.Len() != 3 {
		t.Fatalf("len = %d after replays, want 3", d.Len())
	}
}

func TestDeleteBeforeInsertArrives(t *testing.T) {
	src := NewDoc()
	ins, err := src.PopulateFromBlocks("seed", blockList("a"))
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	del, err := src.LocalDelete("seed", 0)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Receiver sees the delete first.
	d := NewDoc()
	if err := d.ApplyUpdate(del); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if err := d.ApplyUpdate(ins); err != nil {
		t.Fatalf("apply insert: %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("len = %d, want 0", d.Len())
	}
}

func TestEncodeStateRebuildsEquivalentReplica(t *testing.T) {
	d := NewDoc()
	if _, err := d.PopulateFromBlocks("seed", blockList("a", "b", "c", "d")); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if _, err := d.LocalDelete("seed", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	state, err := d.EncodeState()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fresh := NewDoc()
	if err := fresh.ApplyUpdate(state); err != nil {
		t.Fatalf("apply state: %v", err)
	}
	if !reflect.DeepEqual(fresh.Blocks(), d.Blocks()) {
		t.Fatalf("state rebuild diverged:\n%+v\n%+v", fresh.Blocks(), d.Blocks())
	}

	// A replica that already saw everything treats the state as a no-op.
	if err := d.ApplyUpdate(state); err != nil {
		t.Fatalf("self apply: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("len = %d, want 3", d.Len())
	}
}

func TestLocalInsertRejectsOutOfRange(t *testing.T) {
	d := NewDoc()
	if _, err := d.LocalInsert("a", 1, blocks.Block{Type: blocks.TypeAction, Text: "x"}); err == nil {
		t.Fatal("want out-of-range error")
	}
}
