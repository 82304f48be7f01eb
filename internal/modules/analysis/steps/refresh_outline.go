package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
)

// RefreshOutline regenerates the script-level outline from every scene
// summary in position order, then atomically clears outline staleness.
func RefreshOutline(ctx context.Context, d Deps, scriptID uuid.UUID) error {
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}
	s, err := d.Scripts.GetByID(dbc, scriptID)
	if err != nil {
		return err
	}
	scenes, err := d.Scenes.ListByScript(dbc, scriptID)
	if err != nil {
		return err
	}
	summaries, err := d.Summaries.ListByScript(dbc, scriptID)
	if err != nil {
		return err
	}
	positions := make(map[string]int, len(scenes))
	for _, sc := range scenes {
		positions[sc.ID.String()] = sc.Position
	}

	res, err := d.LLM.Complete(ctx, anthropic.Request{
		System:    outlineSystem,
		Messages:  []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, buildOutlinePrompt(s.Title, summaries, positions))},
		MaxTokens: 2048,
	})
	if err != nil {
		return err
	}
	outline := strings.TrimSpace(res.Text)
	if err := d.Outlines.ResetAfterRefresh(dbc, scriptID, outline, EstimateTokens(outline)); err != nil {
		return err
	}
	recordRefreshMetric(ctx, d, types.OpRefreshOutline, scriptID, start)
	return nil
}
