package steps

import (
	"gorm.io/gorm"

	"github.com/scriptwell/scriptwell-backend/internal/config"
	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

// Deps carries what the write paths need. Analysis participates in every
// content write so staleness counters commit atomically with the edit.
type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger
	Cfg config.Config

	Scripts  repos.ScriptRepo
	Scenes   repos.SceneRepo
	WriteOps repos.WriteOpRepo
	Versions repos.ScriptVersionRepo

	ScriptUpdates repos.ScriptUpdateRepo
	SceneUpdates  repos.SceneUpdateRepo
	Snapshots     repos.SnapshotMetadataRepo

	Analysis *analysis.Usecases
}
