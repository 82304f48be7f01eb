package steps

import (
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
	"github.com/scriptwell/scriptwell-backend/internal/platform/openai"
)

// Deps carries everything a refresh step needs. Steps open their own
// transactions; callers pass plain contexts.
type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger
	Cfg config.Config

	LLM      anthropic.Client
	Embedder openai.Client

	Scripts    repos.ScriptRepo
	Scenes     repos.SceneRepo
	Summaries  repos.SceneSummaryRepo
	Outlines   repos.OutlineRepo
	Sheets     repos.CharacterSheetRepo
	Embeddings repos.SceneEmbeddingRepo
	Metrics    repos.OperationMetricRepo
}
