package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

// NextState decides the script lifecycle state from scene count and estimated
// page count. Transitions only move forward: a script never regresses from
// analyzed even if scenes are deleted.
func NextState(cfg config.Config, current string, sceneCount, pages int) string {
	switch current {
	case types.StateEmpty:
		if sceneCount >= cfg.EmptyToPartialMinScenes || pages >= cfg.EmptyToPartialMinPages {
			current = types.StatePartial
		}
	}
	if current == types.StatePartial {
		if sceneCount >= cfg.PartialToAnalyzedMinScenes || pages >= cfg.PartialToAnalyzedMinPages {
			current = types.StateAnalyzed
		}
	}
	return current
}

// AdvanceScriptState recomputes the lifecycle state from the stored scenes
// and persists it when it moved.
func AdvanceScriptState(ctx context.Context, d Deps, scriptID uuid.UUID) (string, error) {
	dbc := dbctx.Context{Ctx: ctx}
	s, err := d.Scripts.GetByID(dbc, scriptID)
	if err != nil {
		return "", err
	}
	scenes, err := d.Scenes.ListByScript(dbc, scriptID)
	if err != nil {
		return "", err
	}

	words := 0
	for i := range scenes {
		if list, perr := blocks.ParseList(scenes[i].Blocks); perr == nil {
			words += blocks.WordCount(list)
		}
	}

	next := NextState(d.Cfg, s.AnalysisState, len(scenes), EstimatePages(words))
	if next == s.AnalysisState {
		return next, nil
	}
	if err := d.Scripts.SetState(dbc, scriptID, next, time.Now().UTC()); err != nil {
		return "", err
	}
	d.Log.Info("script state advanced", "script_id", scriptID.String(), "from", s.AnalysisState, "to", next)
	return next, nil
}
