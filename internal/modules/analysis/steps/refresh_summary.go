package steps

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/hasher"
)

// RefreshSceneSummary regenerates the summary for one scene, persists it
// with the scene's new content hash in one transaction, and refreshes the
// scene embedding when the content actually changed.
func RefreshSceneSummary(ctx context.Context, d Deps, sceneID uuid.UUID) error {
	start := time.Now()
	dbc := dbctx.Context{Ctx: ctx}
	sc, err := d.Scenes.GetByID(dbc, sceneID)
	if err != nil {
		return err
	}

	text := hasher.SceneText(sc)
	hash := hasher.Hash(text)

	res, err := d.LLM.Complete(ctx, anthropic.Request{
		Model:     d.LLM.FastModel(),
		System:    sceneSummarySystem,
		Messages:  []anthropic.Message{anthropic.TextMessage(anthropic.RoleUser, buildSceneSummaryPrompt(sc.Position, sc.Heading, text))},
		MaxTokens: 600,
	})
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(res.Text)

	var names []string
	if list, perr := blocks.ParseList(sc.Blocks); perr == nil {
		names = blocks.CharacterNames(list)
	}

	err = d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := d.Summaries.Upsert(txc, &types.SceneSummary{
			SceneID:       sc.ID,
			ScriptID:      sc.ScriptID,
			Summary:       summary,
			TokenEstimate: EstimateTokens(summary),
			ContentHash:   hash,
		}); err != nil {
			return err
		}
		if err := d.Scenes.SetContentHash(txc, sc.ID, hash); err != nil {
			return err
		}
		if len(names) > 0 {
			if err := d.Scenes.ReplaceCharacters(txc, sc.ID, sc.ScriptID, names); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := refreshSceneEmbedding(ctx, d, sc, summary, hash); err != nil {
		return err
	}
	recordRefreshMetric(ctx, d, types.OpRefreshSceneSummary, sc.ScriptID, start)
	return nil
}

func refreshSceneEmbedding(ctx context.Context, d Deps, sc *types.Scene, summary, hash string) error {
	dbc := dbctx.Context{Ctx: ctx}
	existing, err := d.Embeddings.GetBySceneID(dbc, sc.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ContentHash == hash {
		return nil
	}
	vecs, err := d.Embedder.Embed(ctx, []string{embeddingText(sc.Heading, summary)})
	if err != nil {
		return err
	}
	return d.Embeddings.Upsert(dbc, &types.SceneEmbedding{
		SceneID:     sc.ID,
		ScriptID:    sc.ScriptID,
		Embedding:   pgvector.NewVector(vecs[0]),
		ContentHash: hash,
	})
}

func embeddingText(heading, summary string) string {
	if summary == "" {
		return heading
	}
	return heading + "\n" + summary
}
