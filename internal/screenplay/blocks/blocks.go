// Package blocks models screenplay content as an ordered list of typed
// blocks. Unknown block types and extra keys survive a decode/encode
// round-trip untouched so foreign documents are never lossy.
package blocks

import (
	"encoding/json"
	"strings"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

const (
	TypeSceneHeading  = "scene_heading"
	TypeAction        = "action"
	TypeCharacter     = "character"
	TypeDialogue      = "dialogue"
	TypeParenthetical = "parenthetical"
	TypeTransition    = "transition"
	TypeShot          = "shot"
	TypeGeneral       = "general"
	TypeCastList      = "cast_list"
	TypeNewAct        = "new_act"
	TypeEndOfAct      = "end_of_act"
	TypeSummary       = "summary"
)

var knownTypes = map[string]bool{
	TypeSceneHeading:  true,
	TypeAction:        true,
	TypeCharacter:     true,
	TypeDialogue:      true,
	TypeParenthetical: true,
	TypeTransition:    true,
	TypeShot:          true,
	TypeGeneral:       true,
	TypeCastList:      true,
	TypeNewAct:        true,
	TypeEndOfAct:      true,
	TypeSummary:       true,
}

func IsKnownType(t string) bool { return knownTypes[t] }

// Block is one element of screenplay content. Meta holds every key that is
// not type, text or children; those keys are carried but never interpreted.
type Block struct {
	Type     string
	Text     string
	Children []Block
	Meta     map[string]any
}

func (b Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Meta)+3)
	for k, v := range b.Meta {
		out[k] = v
	}
	out["type"] = b.Type
	out["text"] = b.Text
	if len(b.Children) > 0 {
		out["children"] = b.Children
	}
	return json.Marshal(out)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typRaw, hasType := raw["type"]
	textRaw, hasText := raw["text"]
	if !hasType || !hasText {
		return errkind.Validation("block missing type or text")
	}
	if err := json.Unmarshal(typRaw, &b.Type); err != nil {
		return errkind.Validation("block type is not a string")
	}
	if err := json.Unmarshal(textRaw, &b.Text); err != nil {
		return errkind.Validation("block text is not a string")
	}
	b.Children = nil
	if childRaw, ok := raw["children"]; ok {
		if err := json.Unmarshal(childRaw, &b.Children); err != nil {
			return err
		}
	}
	b.Meta = nil
	for k, v := range raw {
		if k == "type" || k == "text" || k == "children" {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if b.Meta == nil {
			b.Meta = map[string]any{}
		}
		b.Meta[k] = val
	}
	return nil
}

// ParseList decodes a JSON array of blocks. A nil or empty input yields an
// empty list.
func ParseList(data []byte) ([]Block, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var out []Block
	if err := json.Unmarshal(data, &out); err != nil {
		if ke, ok := err.(*errkind.Error); ok {
			return nil, ke
		}
		return nil, errkind.Validation("invalid block list: %v", err)
	}
	return out, nil
}

func EncodeList(list []Block) ([]byte, error) {
	if list == nil {
		list = []Block{}
	}
	return json.Marshal(list)
}

// Text joins the text of every block with newlines, depth first.
func Text(list []Block) string {
	var sb strings.Builder
	appendText(&sb, list)
	return sb.String()
}

func appendText(sb *strings.Builder, list []Block) {
	for _, b := range list {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(b.Text)
		appendText(sb, b.Children)
	}
}

// WordCount counts whitespace-separated words across the whole list,
// children included.
func WordCount(list []Block) int {
	n := 0
	for _, b := range list {
		n += len(strings.Fields(b.Text))
		n += WordCount(b.Children)
	}
	return n
}

// CharacterNames extracts uppercased speaker names from character cue blocks,
// deduplicated in order of first appearance. Parentheticals in the cue, like
// "JOHN (V.O.)", are stripped.
func CharacterNames(list []Block) []string {
	seen := map[string]bool{}
	var out []string
	walkCharacters(list, seen, &out)
	return out
}

func walkCharacters(list []Block, seen map[string]bool, out *[]string) {
	for _, b := range list {
		if b.Type == TypeCharacter {
			name := strings.TrimSpace(b.Text)
			if i := strings.IndexByte(name, '('); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			name = strings.ToUpper(name)
			if name != "" && !seen[name] {
				seen[name] = true
				*out = append(*out, name)
			}
		}
		walkCharacters(b.Children, seen, out)
	}
}
