package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
)

func SeedScript(tb testing.TB, ctx context.Context, tx *gorm.DB, owner uuid.UUID) *types.Script {
	tb.Helper()
	s := &types.Script{
		ID:            uuid.New(),
		OwnerUserID:   owner,
		Title:         "Untitled Draft",
		AnalysisState: types.StateEmpty,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed script: %v", err)
	}
	return s
}

func SeedScene(tb testing.TB, ctx context.Context, tx *gorm.DB, scriptID uuid.UUID, position int, text string) *types.Scene {
	tb.Helper()
	sc := &types.Scene{
		ID:       uuid.New(),
		ScriptID: scriptID,
		Position: position,
		Heading:  fmt.Sprintf("INT. LOCATION %d - DAY", position),
		Blocks:   datatypes.JSON(fmt.Sprintf(`[{"type":"action","text":%q}]`, text)),
	}
	if err := tx.WithContext(ctx).Create(sc).Error; err != nil {
		tb.Fatalf("seed scene: %v", err)
	}
	return sc
}

func SeedSceneCharacters(tb testing.TB, ctx context.Context, tx *gorm.DB, sceneID, scriptID uuid.UUID, names ...string) {
	tb.Helper()
	for _, n := range names {
		row := &types.SceneCharacter{SceneID: sceneID, ScriptID: scriptID, Name: n}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed scene character %s: %v", n, err)
		}
	}
}

func SeedSceneSummary(tb testing.TB, ctx context.Context, tx *gorm.DB, sceneID, scriptID uuid.UUID, summary string) *types.SceneSummary {
	tb.Helper()
	row := &types.SceneSummary{
		ID:          uuid.New(),
		SceneID:     sceneID,
		ScriptID:    scriptID,
		Summary:     summary,
		ContentHash: "seed",
		Version:     1,
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed scene summary: %v", err)
	}
	return row
}
