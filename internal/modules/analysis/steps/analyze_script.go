package steps

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/hasher"
)

const (
	// DepthPartial refreshes only scenes whose content hash moved since
	// their last summary.
	DepthPartial = "partial"
	// DepthFull refreshes every scene regardless of hash.
	DepthFull = "full"
)

// AnalyzeScript runs the whole ingestion pipeline for one script: scene
// summaries first (the outline and sheets read them), then the outline,
// character sheets, and embeddings in parallel, then the lifecycle state.
//
// A single scene failing to summarize is logged and skipped; the rest of the
// pipeline proceeds with whatever summaries exist.
func AnalyzeScript(ctx context.Context, d Deps, scriptID uuid.UUID, depth string) error {
	dbc := dbctx.Context{Ctx: ctx}
	scenes, err := d.Scenes.ListByScript(dbc, scriptID)
	if err != nil {
		return err
	}

	targets, err := summaryTargets(dbc, d, scenes, depth)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Cfg.SummaryConcurrency)
	for _, id := range targets {
		id := id
		g.Go(func() error {
			if err := RefreshSceneSummary(gctx, d, id); err != nil {
				d.Log.Warn("scene summary refresh failed, skipping",
					"script_id", scriptID.String(),
					"scene_id", id.String(),
					"error", err.Error(),
				)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	g2, g2ctx := errgroup.WithContext(ctx)
	g2.Go(func() error { return RefreshOutline(g2ctx, d, scriptID) })
	g2.Go(func() error { return refreshAllSheets(g2ctx, d, scriptID) })
	g2.Go(func() error { return backfillEmbeddings(g2ctx, d, scriptID) })
	if err := g2.Wait(); err != nil {
		return err
	}

	_, err = AdvanceScriptState(ctx, d, scriptID)
	return err
}

// summaryTargets selects the scenes whose summaries need regenerating.
func summaryTargets(dbc dbctx.Context, d Deps, scenes []types.Scene, depth string) ([]uuid.UUID, error) {
	if depth == DepthFull {
		ids := make([]uuid.UUID, len(scenes))
		for i := range scenes {
			ids[i] = scenes[i].ID
		}
		return ids, nil
	}
	ids := make([]uuid.UUID, len(scenes))
	for i := range scenes {
		ids[i] = scenes[i].ID
	}
	summaries, err := d.Summaries.ListForScenes(dbc, ids)
	if err != nil {
		return nil, err
	}
	hashBySummary := make(map[uuid.UUID]string, len(summaries))
	for _, s := range summaries {
		hashBySummary[s.SceneID] = s.ContentHash
	}

	var out []uuid.UUID
	for i := range scenes {
		sc := &scenes[i]
		prev, ok := hashBySummary[sc.ID]
		if !ok || prev != hasher.SceneHash(sc) {
			out = append(out, sc.ID)
		}
	}
	return out, nil
}

func refreshAllSheets(ctx context.Context, d Deps, scriptID uuid.UUID) error {
	names, err := d.Scenes.CharactersForScript(dbctx.Context{Ctx: ctx}, scriptID)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Cfg.SheetConcurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := RefreshCharacterSheet(gctx, d, scriptID, name); err != nil {
				d.Log.Warn("character sheet refresh failed, skipping",
					"script_id", scriptID.String(),
					"name", name,
					"error", err.Error(),
				)
			}
			return gctx.Err()
		})
	}
	return g.Wait()
}

// backfillEmbeddings embeds every scene whose stored embedding is missing or
// built from stale content, batching requests up to the configured size.
func backfillEmbeddings(ctx context.Context, d Deps, scriptID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	scenes, err := d.Scenes.ListByScript(dbc, scriptID)
	if err != nil {
		return err
	}

	type pending struct {
		scene *types.Scene
		hash  string
		text  string
	}
	var todo []pending
	for i := range scenes {
		sc := &scenes[i]
		hash := hasher.SceneHash(sc)
		existing, err := d.Embeddings.GetBySceneID(dbc, sc.ID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ContentHash == hash {
			continue
		}
		summary := ""
		if s, err := d.Summaries.GetBySceneID(dbc, sc.ID); err == nil && s != nil {
			summary = s.Summary
		}
		todo = append(todo, pending{scene: sc, hash: hash, text: embeddingText(sc.Heading, summary)})
	}

	batch := d.Cfg.EmbeddingBatchSize
	if batch <= 0 {
		batch = 96
	}
	for start := 0; start < len(todo); start += batch {
		end := start + batch
		if end > len(todo) {
			end = len(todo)
		}
		chunk := todo[start:end]
		texts := make([]string, len(chunk))
		for i := range chunk {
			texts[i] = chunk[i].text
		}
		vecs, err := d.Embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		for i := range chunk {
			if err := d.Embeddings.Upsert(dbc, &types.SceneEmbedding{
				SceneID:     chunk[i].scene.ID,
				ScriptID:    scriptID,
				Embedding:   pgvector.NewVector(vecs[i]),
				ContentHash: chunk[i].hash,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
