package steps

import (
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/platform/anthropic"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
	"github.com/scriptwell/scriptwell-backend/internal/platform/openai"
)

// Deps carries everything the chat pipeline needs. Steps never open
// transactions; every operation here is read-mostly and the message append
// path is a single insert.
type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger
	Cfg config.Config

	LLM      anthropic.Client
	Embedder openai.Client

	Scripts        repos.ScriptRepo
	Scenes         repos.SceneRepo
	SceneSummaries repos.SceneSummaryRepo
	Outlines       repos.OutlineRepo
	Sheets         repos.CharacterSheetRepo
	Embeddings     repos.SceneEmbeddingRepo
	Threads        repos.PlotThreadRepo
	Relationships  repos.SceneRelationshipRepo

	Messages      repos.ChatMessageRepo
	States        repos.ConversationStateRepo
	ConvSummaries repos.ConversationSummaryRepo
	Metrics       repos.OperationMetricRepo
}
