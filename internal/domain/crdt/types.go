package crdt

import (
	"time"

	"github.com/google/uuid"
)

// ScriptCRDTUpdate is one append-only log entry for the script-level
// document. Rows are only removed by compaction, which replaces the prefix
// with a snapshot row.
type ScriptCRDTUpdate struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Update     []byte `gorm:"type:bytea;not null" json:"-"`
	Actor      string `gorm:"type:text;not null;default:''" json:"actor"`
	IsSnapshot bool   `gorm:"not null;default:false" json:"is_snapshot"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ScriptCRDTUpdate) TableName() string { return "script_crdt_updates" }

// SceneCRDTUpdate mirrors ScriptCRDTUpdate for per-scene documents.
type SceneCRDTUpdate struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SceneID  uuid.UUID `gorm:"type:uuid;not null;index" json:"scene_id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`

	Update     []byte `gorm:"type:bytea;not null" json:"-"`
	Actor      string `gorm:"type:text;not null;default:''" json:"actor"`
	IsSnapshot bool   `gorm:"not null;default:false" json:"is_snapshot"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (SceneCRDTUpdate) TableName() string { return "scene_crdt_updates" }

const (
	SnapshotSourceLive      = "live"
	SnapshotSourceCompacted = "compacted"
	SnapshotSourceImport    = "import"
	SnapshotSourceMigrated  = "migrated"
)

// SnapshotMetadata records each snapshot derivation event. SceneID is null
// for script-level snapshots.
type SnapshotMetadata struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID  `gorm:"type:uuid;not null;index" json:"script_id"`
	SceneID  *uuid.UUID `gorm:"type:uuid;index" json:"scene_id,omitempty"`

	Source      string `gorm:"type:text;not null" json:"source"`
	UpdateCount int    `gorm:"not null;default:0" json:"update_count"`
	StateSHA256 string `gorm:"type:text;not null" json:"state_sha256"`
	SizeBytes   int    `gorm:"not null;default:0" json:"size_bytes"`

	GeneratedAt time.Time `gorm:"not null;default:now()" json:"generated_at"`
}

func (SnapshotMetadata) TableName() string { return "crdt_snapshot_metadata" }
