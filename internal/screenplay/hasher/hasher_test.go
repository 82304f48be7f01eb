package hasher

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/scriptwell/scriptwell-backend/internal/domain/script"
)

func TestNormalizeCollapsesWhitespaceAndCase(t *testing.T) {
	a := Normalize("  INT. House - DAY  \n\n  John   walks in. \n")
	b := Normalize("int. house - day\njohn walks in.")
	if a != b {
		t.Fatalf("normalized forms differ:\n%q\n%q", a, b)
	}
}

func TestSceneHashIgnoresCosmeticChanges(t *testing.T) {
	sc := &script.Scene{
		Heading: "INT. HOUSE - DAY",
		Blocks:  datatypes.JSON(`[{"type":"action","text":"John walks in."}]`),
	}
	h := SceneHash(sc)
	if len(h) != 64 {
		t.Fatalf("hash length = %d", len(h))
	}

	// Heading whitespace does not participate while blocks are present.
	sc.Heading = "INT.   HOUSE - DAY"
	if got := SceneHash(sc); got != h {
		t.Fatalf("heading whitespace changed hash")
	}

	sc.Blocks = datatypes.JSON(`[{"type":"action","text":"  JOHN WALKS IN.  "}]`)
	if got := SceneHash(sc); got != h {
		t.Fatalf("case/whitespace change altered hash")
	}

	sc.Blocks = datatypes.JSON(`[{"type":"action","text":"John runs in."}]`)
	if got := SceneHash(sc); got == h {
		t.Fatalf("content change did not alter hash")
	}
}

func TestSceneTextFallbacks(t *testing.T) {
	sc := &script.Scene{Heading: "EXT. FIELD - NIGHT"}
	if got := SceneText(sc); got != "EXT. FIELD - NIGHT" {
		t.Fatalf("heading fallback = %q", got)
	}
	sc.RawText = "raw body"
	if got := SceneText(sc); got != "raw body" {
		t.Fatalf("raw text fallback = %q", got)
	}
	sc.Blocks = datatypes.JSON(`[{"type":"action","text":"from blocks"}]`)
	if got := SceneText(sc); got != "from blocks" {
		t.Fatalf("blocks text = %q", got)
	}
}
