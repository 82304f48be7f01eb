package repos

import (
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/chat"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/crdtstore"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/jobs"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos/script"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type ScriptRepo = script.ScriptRepo
type SceneRepo = script.SceneRepo
type WriteOpRepo = script.WriteOpRepo
type ScriptVersionRepo = script.ScriptVersionRepo
type PlotThreadRepo = script.PlotThreadRepo
type SceneRelationshipRepo = script.SceneRelationshipRepo

type SceneSummaryRepo = analysis.SceneSummaryRepo
type OutlineRepo = analysis.OutlineRepo
type CharacterSheetRepo = analysis.CharacterSheetRepo
type SceneEmbeddingRepo = analysis.SceneEmbeddingRepo
type TokenUsageRepo = analysis.TokenUsageRepo
type OperationMetricRepo = analysis.OperationMetricRepo

type ChatMessageRepo = chat.ChatMessageRepo
type ConversationStateRepo = chat.ConversationStateRepo
type ConversationSummaryRepo = chat.ConversationSummaryRepo

type ScriptUpdateRepo = crdtstore.ScriptUpdateRepo
type SceneUpdateRepo = crdtstore.SceneUpdateRepo
type SnapshotMetadataRepo = crdtstore.SnapshotMetadataRepo

type JobRunRepo = jobs.JobRunRepo

type DirtyState = analysis.DirtyState
type NamedDirtyState = analysis.NamedDirtyState
type VectorHit = analysis.VectorHit

func NewScriptRepo(db *gorm.DB, baseLog *logger.Logger) ScriptRepo {
	return script.NewScriptRepo(db, baseLog)
}
func NewSceneRepo(db *gorm.DB, baseLog *logger.Logger) SceneRepo {
	return script.NewSceneRepo(db, baseLog)
}
func NewWriteOpRepo(db *gorm.DB, baseLog *logger.Logger) WriteOpRepo {
	return script.NewWriteOpRepo(db, baseLog)
}
func NewScriptVersionRepo(db *gorm.DB, baseLog *logger.Logger) ScriptVersionRepo {
	return script.NewScriptVersionRepo(db, baseLog)
}
func NewPlotThreadRepo(db *gorm.DB, baseLog *logger.Logger) PlotThreadRepo {
	return script.NewPlotThreadRepo(db, baseLog)
}
func NewSceneRelationshipRepo(db *gorm.DB, baseLog *logger.Logger) SceneRelationshipRepo {
	return script.NewSceneRelationshipRepo(db, baseLog)
}

func NewSceneSummaryRepo(db *gorm.DB, baseLog *logger.Logger) SceneSummaryRepo {
	return analysis.NewSceneSummaryRepo(db, baseLog)
}
func NewOutlineRepo(db *gorm.DB, baseLog *logger.Logger) OutlineRepo {
	return analysis.NewOutlineRepo(db, baseLog)
}
func NewCharacterSheetRepo(db *gorm.DB, baseLog *logger.Logger) CharacterSheetRepo {
	return analysis.NewCharacterSheetRepo(db, baseLog)
}
func NewSceneEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) SceneEmbeddingRepo {
	return analysis.NewSceneEmbeddingRepo(db, baseLog)
}
func NewTokenUsageRepo(db *gorm.DB, baseLog *logger.Logger) TokenUsageRepo {
	return analysis.NewTokenUsageRepo(db, baseLog)
}
func NewOperationMetricRepo(db *gorm.DB, baseLog *logger.Logger) OperationMetricRepo {
	return analysis.NewOperationMetricRepo(db, baseLog)
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return chat.NewChatMessageRepo(db, baseLog)
}
func NewConversationStateRepo(db *gorm.DB, baseLog *logger.Logger) ConversationStateRepo {
	return chat.NewConversationStateRepo(db, baseLog)
}
func NewConversationSummaryRepo(db *gorm.DB, baseLog *logger.Logger) ConversationSummaryRepo {
	return chat.NewConversationSummaryRepo(db, baseLog)
}

func NewScriptUpdateRepo(db *gorm.DB, baseLog *logger.Logger) ScriptUpdateRepo {
	return crdtstore.NewScriptUpdateRepo(db, baseLog)
}
func NewSceneUpdateRepo(db *gorm.DB, baseLog *logger.Logger) SceneUpdateRepo {
	return crdtstore.NewSceneUpdateRepo(db, baseLog)
}
func NewSnapshotMetadataRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotMetadataRepo {
	return crdtstore.NewSnapshotMetadataRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

// All bundles every repo over one database handle.
type All struct {
	Scripts            ScriptRepo
	Scenes             SceneRepo
	WriteOps           WriteOpRepo
	ScriptVersions     ScriptVersionRepo
	PlotThreads        PlotThreadRepo
	SceneRelationships SceneRelationshipRepo

	SceneSummaries   SceneSummaryRepo
	Outlines         OutlineRepo
	CharacterSheets  CharacterSheetRepo
	SceneEmbeddings  SceneEmbeddingRepo
	TokenUsage       TokenUsageRepo
	OperationMetrics OperationMetricRepo

	ChatMessages          ChatMessageRepo
	ConversationStates    ConversationStateRepo
	ConversationSummaries ConversationSummaryRepo

	ScriptUpdates    ScriptUpdateRepo
	SceneUpdates     SceneUpdateRepo
	SnapshotMetadata SnapshotMetadataRepo

	JobRuns JobRunRepo
}

func NewAll(db *gorm.DB, baseLog *logger.Logger) *All {
	return &All{
		Scripts:            NewScriptRepo(db, baseLog),
		Scenes:             NewSceneRepo(db, baseLog),
		WriteOps:           NewWriteOpRepo(db, baseLog),
		ScriptVersions:     NewScriptVersionRepo(db, baseLog),
		PlotThreads:        NewPlotThreadRepo(db, baseLog),
		SceneRelationships: NewSceneRelationshipRepo(db, baseLog),

		SceneSummaries:   NewSceneSummaryRepo(db, baseLog),
		Outlines:         NewOutlineRepo(db, baseLog),
		CharacterSheets:  NewCharacterSheetRepo(db, baseLog),
		SceneEmbeddings:  NewSceneEmbeddingRepo(db, baseLog),
		TokenUsage:       NewTokenUsageRepo(db, baseLog),
		OperationMetrics: NewOperationMetricRepo(db, baseLog),

		ChatMessages:          NewChatMessageRepo(db, baseLog),
		ConversationStates:    NewConversationStateRepo(db, baseLog),
		ConversationSummaries: NewConversationSummaryRepo(db, baseLog),

		ScriptUpdates:    NewScriptUpdateRepo(db, baseLog),
		SceneUpdates:     NewSceneUpdateRepo(db, baseLog),
		SnapshotMetadata: NewSnapshotMetadataRepo(db, baseLog),

		JobRuns: NewJobRunRepo(db, baseLog),
	}
}
