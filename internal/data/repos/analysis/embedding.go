package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/scriptwell/scriptwell-backend/internal/domain"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// VectorHit is one nearest-neighbor result joined with the scene it points
// at. Score is cosine similarity in [0,1].
type VectorHit struct {
	SceneID  uuid.UUID `gorm:"column:scene_id"`
	Position int       `gorm:"column:position"`
	Heading  string    `gorm:"column:heading"`
	Summary  string    `gorm:"column:summary"`
	Score    float64   `gorm:"column:score"`
}

type SceneEmbeddingRepo interface {
	Upsert(dbc dbctx.Context, row *types.SceneEmbedding) error
	GetBySceneID(dbc dbctx.Context, sceneID uuid.UUID) (*types.SceneEmbedding, error)
	// Search returns up to k scenes ordered by cosine similarity to the query
	// vector, filtered to score >= minScore.
	Search(dbc dbctx.Context, scriptID uuid.UUID, query []float32, k int, minScore float64) ([]VectorHit, error)
	NearestToScene(dbc dbctx.Context, scriptID, sceneID uuid.UUID, k int) ([]VectorHit, error)
}

type sceneEmbeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSceneEmbeddingRepo(db *gorm.DB, log *logger.Logger) SceneEmbeddingRepo {
	return &sceneEmbeddingRepo{db: db, log: log.With("repo", "SceneEmbeddingRepo")}
}

func (r *sceneEmbeddingRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *sceneEmbeddingRepo) Upsert(dbc dbctx.Context, row *types.SceneEmbedding) error {
	if row == nil || row.SceneID == uuid.Nil || row.ScriptID == uuid.Nil {
		return errkind.Validation("missing scene_id or script_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.GeneratedAt.IsZero() {
		row.GeneratedAt = time.Now().UTC()
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "scene_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"embedding":    row.Embedding,
				"content_hash": row.ContentHash,
				"generated_at": row.GeneratedAt,
			}),
		}).
		Create(row).Error
}

func (r *sceneEmbeddingRepo) GetBySceneID(dbc dbctx.Context, sceneID uuid.UUID) (*types.SceneEmbedding, error) {
	if sceneID == uuid.Nil {
		return nil, errkind.Validation("missing scene_id")
	}
	var out types.SceneEmbedding
	err := r.conn(dbc).WithContext(dbc.Ctx).Where("scene_id = ?", sceneID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sceneEmbeddingRepo) Search(dbc dbctx.Context, scriptID uuid.UUID, query []float32, k int, minScore float64) ([]VectorHit, error) {
	if scriptID == uuid.Nil {
		return nil, errkind.Validation("missing script_id")
	}
	if len(query) == 0 {
		return nil, errkind.Validation("missing query vector")
	}
	if k <= 0 {
		k = 8
	}
	vec := pgvector.NewVector(query)
	var out []VectorHit
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(`
		SELECT sc.id AS scene_id,
		       sc.position,
		       sc.heading,
		       COALESCE(ss.summary, '') AS summary,
		       1 - (se.embedding <=> ?) AS score
		FROM scene_embeddings se
		JOIN scenes sc ON sc.id = se.scene_id
		LEFT JOIN scene_summaries ss ON ss.scene_id = se.scene_id
		WHERE se.script_id = ?
		  AND 1 - (se.embedding <=> ?) >= ?
		ORDER BY se.embedding <=> ?
		LIMIT ?`,
		vec, scriptID, vec, minScore, vec, k,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sceneEmbeddingRepo) NearestToScene(dbc dbctx.Context, scriptID, sceneID uuid.UUID, k int) ([]VectorHit, error) {
	if scriptID == uuid.Nil || sceneID == uuid.Nil {
		return nil, errkind.Validation("missing script_id or scene_id")
	}
	if k <= 0 {
		k = 3
	}
	var out []VectorHit
	err := r.conn(dbc).WithContext(dbc.Ctx).Raw(`
		SELECT sc.id AS scene_id,
		       sc.position,
		       sc.heading,
		       COALESCE(ss.summary, '') AS summary,
		       1 - (se.embedding <=> anchor.embedding) AS score
		FROM scene_embeddings se
		JOIN scene_embeddings anchor ON anchor.scene_id = ?
		JOIN scenes sc ON sc.id = se.scene_id
		LEFT JOIN scene_summaries ss ON ss.scene_id = se.scene_id
		WHERE se.script_id = ? AND se.scene_id <> ?
		ORDER BY se.embedding <=> anchor.embedding
		LIMIT ?`,
		sceneID, scriptID, sceneID, k,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
