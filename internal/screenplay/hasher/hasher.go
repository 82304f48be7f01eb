// Package hasher fingerprints scene content for change detection.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/scriptwell/scriptwell-backend/internal/domain/script"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

// Normalize strips per-line whitespace, drops empty lines and lowercases so
// cosmetic edits do not change the fingerprint.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return strings.Join(out, "\n")
}

// Hash returns the 64-hex SHA-256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// SceneText is the canonical text a scene is hashed and summarized over:
// block texts joined by newlines, falling back to raw text, then heading.
func SceneText(sc *script.Scene) string {
	if sc == nil {
		return ""
	}
	if len(sc.Blocks) > 0 {
		list, err := blocks.ParseList(sc.Blocks)
		if err == nil && len(list) > 0 {
			return blocks.Text(list)
		}
	}
	if strings.TrimSpace(sc.RawText) != "" {
		return sc.RawText
	}
	return sc.Heading
}

// SceneHash fingerprints the scene's current content.
func SceneHash(sc *script.Scene) string {
	return Hash(SceneText(sc))
}
