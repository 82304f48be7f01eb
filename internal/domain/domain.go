// Package domain re-exports the persistence model so callers can reference
// every table type through a single import.
package domain

import (
	"github.com/scriptwell/scriptwell-backend/internal/domain/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/domain/chat"
	"github.com/scriptwell/scriptwell-backend/internal/domain/crdt"
	"github.com/scriptwell/scriptwell-backend/internal/domain/jobs"
	"github.com/scriptwell/scriptwell-backend/internal/domain/script"
)

// Script and scene content.
type (
	Script            = script.Script
	Scene             = script.Scene
	SceneCharacter    = script.SceneCharacter
	PlotThread        = script.PlotThread
	SceneRelationship = script.SceneRelationship
	WriteOp           = script.WriteOp
	ScriptVersion     = script.ScriptVersion
)

const (
	StateEmpty    = script.StateEmpty
	StatePartial  = script.StatePartial
	StateAnalyzed = script.StateAnalyzed

	ThreadKindCharacterArc = script.ThreadKindCharacterArc
	ThreadKindPlot         = script.ThreadKindPlot
	ThreadKindSubplot      = script.ThreadKindSubplot
	ThreadKindTheme        = script.ThreadKindTheme

	RelationSetupPayoff = script.RelationSetupPayoff
	RelationCallback    = script.RelationCallback
	RelationParallel    = script.RelationParallel
	RelationEcho        = script.RelationEcho
)

// Derived analysis artifacts and accounting.
type (
	SceneSummary    = analysis.SceneSummary
	ScriptOutline   = analysis.ScriptOutline
	CharacterSheet  = analysis.CharacterSheet
	SceneEmbedding  = analysis.SceneEmbedding
	TokenUsage      = analysis.TokenUsage
	OperationMetric = analysis.OperationMetric
)

const (
	OpChatToolCall  = analysis.OpChatToolCall
	OpChatSynthesis = analysis.OpChatSynthesis

	OpRefreshSceneSummary   = analysis.OpRefreshSceneSummary
	OpRefreshOutline        = analysis.OpRefreshOutline
	OpRefreshCharacterSheet = analysis.OpRefreshCharacterSheet
)

// Conversation persistence.
type (
	ChatMessage         = chat.ChatMessage
	ConversationState   = chat.ConversationState
	ConversationSummary = chat.ConversationSummary
)

const (
	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant
	RoleSystem    = chat.RoleSystem
)

// Collaborative editing log.
type (
	ScriptCRDTUpdate = crdt.ScriptCRDTUpdate
	SceneCRDTUpdate  = crdt.SceneCRDTUpdate
	SnapshotMetadata = crdt.SnapshotMetadata
)

const (
	SnapshotSourceLive      = crdt.SnapshotSourceLive
	SnapshotSourceCompacted = crdt.SnapshotSourceCompacted
	SnapshotSourceImport    = crdt.SnapshotSourceImport
	SnapshotSourceMigrated  = crdt.SnapshotSourceMigrated
)

// Background work ledger.
type JobRun = jobs.JobRun

const (
	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusDead      = jobs.StatusDead

	JobPriorityUrgent = jobs.PriorityUrgent
	JobPriorityNormal = jobs.PriorityNormal
	JobPriorityLow    = jobs.PriorityLow
)

// AllModels is the migration set, ordered so foreign-key parents come first.
func AllModels() []any {
	return []any{
		&Script{},
		&Scene{},
		&SceneCharacter{},
		&PlotThread{},
		&SceneRelationship{},
		&WriteOp{},
		&ScriptVersion{},
		&SceneSummary{},
		&ScriptOutline{},
		&CharacterSheet{},
		&SceneEmbedding{},
		&TokenUsage{},
		&OperationMetric{},
		&ChatMessage{},
		&ConversationState{},
		&ConversationSummary{},
		&ScriptCRDTUpdate{},
		&SceneCRDTUpdate{},
		&SnapshotMetadata{},
		&JobRun{},
	}
}
