package analysis

import (
	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/hasher"
)

// StaleReport describes what a scene change invalidated. Callers commit
// their transaction first, then hand the report to EnqueueRefreshes.
type StaleReport struct {
	SceneID        uuid.UUID
	ScriptID       uuid.UUID
	ContentChanged bool
	Outline        repos.DirtyState
	Sheets         []repos.NamedDirtyState
}

// OnSceneChanged bumps the outline and per-character dirty counters for one
// change notification, and recomputes the scene's content hash to decide
// whether the summary itself needs refreshing. The counters move on every
// invocation; only the summary refresh is gated on actual content movement.
// It must run inside the caller's transaction so the counters commit
// atomically with the edit; the script row is locked first to serialize
// concurrent edits to one script.
func (u *Usecases) OnSceneChanged(dbc dbctx.Context, sceneID uuid.UUID) (*StaleReport, error) {
	sc, err := u.d.Scenes.GetByID(dbc, sceneID)
	if err != nil {
		return nil, err
	}
	if _, err := u.d.Scripts.GetByIDForUpdate(dbc, sc.ScriptID); err != nil {
		return nil, err
	}

	hash := hasher.SceneHash(sc)
	report := &StaleReport{SceneID: sc.ID, ScriptID: sc.ScriptID}
	if sc.ContentHash == nil || *sc.ContentHash != hash {
		report.ContentChanged = true
		if err := u.d.Scenes.SetContentHash(dbc, sc.ID, hash); err != nil {
			return nil, err
		}
	}

	outline, err := u.d.Outlines.IncrementDirty(dbc, sc.ScriptID, u.d.Cfg.OutlineStaleThreshold)
	if err != nil {
		return nil, err
	}
	report.Outline = *outline

	names, err := u.d.Scenes.CharactersForScene(dbc, sc.ID)
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		sheets, err := u.d.Sheets.IncrementDirtyForNames(dbc, sc.ScriptID, names, u.d.Cfg.CharacterStaleThreshold)
		if err != nil {
			return nil, err
		}
		report.Sheets = sheets
	}
	return report, nil
}
