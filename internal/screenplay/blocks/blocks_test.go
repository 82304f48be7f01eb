package blocks

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

func TestRoundTripPreservesUnknownKeys(t *testing.T) {
	in := []byte(`[
		{"type":"scene_heading","text":"INT. HOUSE - DAY","sceneNumber":12},
		{"type":"custom_widget","text":"???","vendor":{"a":1},"children":[{"type":"action","text":"nested"}]}
	]`)
	list, err := ParseList(in)
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if list[0].Meta["sceneNumber"] != float64(12) {
		t.Fatalf("meta lost: %+v", list[0].Meta)
	}
	if IsKnownType(list[1].Type) {
		t.Fatalf("custom_widget should be unknown")
	}

	out, err := EncodeList(list)
	if err != nil {
		t.Fatalf("EncodeList: %v", err)
	}
	again, err := ParseList(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(list, again) {
		t.Fatalf("round trip changed blocks:\n%+v\n%+v", list, again)
	}
}

func TestParseRejectsMissingTypeOrText(t *testing.T) {
	for _, raw := range []string{
		`[{"text":"no type"}]`,
		`[{"type":"action"}]`,
	} {
		_, err := ParseList([]byte(raw))
		if errkind.KindOf(err) != errkind.KindValidation {
			t.Fatalf("%s: kind = %v, want validation", raw, errkind.KindOf(err))
		}
	}
}

func TestParseEmptyInputs(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null")} {
		list, err := ParseList(raw)
		if err != nil || list != nil {
			t.Fatalf("ParseList(%q) = %v, %v", raw, list, err)
		}
	}
}

func TestTextAndWordCount(t *testing.T) {
	list := []Block{
		{Type: TypeSceneHeading, Text: "INT. HOUSE - DAY"},
		{Type: TypeAction, Text: "John walks in.", Children: []Block{
			{Type: TypeGeneral, Text: "quietly"},
		}},
	}
	if got := Text(list); got != "INT. HOUSE - DAY\nJohn walks in.\nquietly" {
		t.Fatalf("Text = %q", got)
	}
	if got := WordCount(list); got != 8 {
		t.Fatalf("WordCount = %d, want 8", got)
	}
}

func TestCharacterNames(t *testing.T) {
	list := []Block{
		{Type: TypeCharacter, Text: "John (V.O.)"},
		{Type: TypeDialogue, Text: "Hello."},
		{Type: TypeCharacter, Text: "MARY"},
		{Type: TypeCharacter, Text: "john"},
	}
	got := CharacterNames(list)
	want := []string{"JOHN", "MARY"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CharacterNames = %v, want %v", got, want)
	}
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	out, err := EncodeList(nil)
	if err != nil {
		t.Fatalf("EncodeList: %v", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(out, &arr); err != nil || len(arr) != 0 {
		t.Fatalf("encoded nil = %s", out)
	}
}
