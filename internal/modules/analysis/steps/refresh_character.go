package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
)

// RefreshCharacterSheet rebuilds one (script, name) sheet from the scenes
// the character appears in, then atomically clears its staleness.
func RefreshCharacterSheet(ctx context.Context, d Deps, scriptID uuid.UUID, name string) error {
	if name == "" {
		return errkind.Validation("missing character name")
	}
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}
	scenes, err := d.Scenes.ScenesForCharacter(dbc, scriptID, name)
	if err != nil {
		return err
	}
	if len(scenes) == 0 {
		// Character no longer appears anywhere; clear staleness without a
		// model call.
		if err := d.Sheets.ResetAfterRefresh(dbc, scriptID, name, "", 0); err != nil {
			return err
		}
		recordRefreshMetric(ctx, d, types.OpRefreshCharacterSheet, scriptID, start)
		return nil
	}

	ids := make([]uuid.UUID, len(scenes))
	for i := range scenes {
		ids[i] = scenes[i].ID
	}
	summaries, err := d.Summaries.ListForScenes(dbc, ids)
	if err != nil {
		return err
	}
	byScene := make(map[string]string, len(summaries))
	for _, s := range summaries {
		byScene[s.SceneID.String()] = s.Summary
	}

	res, err := d.LLM.Complete(ctx, anthropic.Request{
		System:    characterSheetSystem,
		Messages:  []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, buildCharacterSheetPrompt(name, scenes, byScene))},
		MaxTokens: 1024,
	})
	if err != nil {
		return err
	}
	sheet := strings.TrimSpace(res.Text)
	if err := d.Sheets.ResetAfterRefresh(dbc, scriptID, name, sheet, EstimateTokens(sheet)); err != nil {
		return err
	}
	recordRefreshMetric(ctx, d, types.OpRefreshCharacterSheet, scriptID, start)
	return nil
}
