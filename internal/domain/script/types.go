package script

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Analysis lifecycle states. Transitions are monotonic forward.
const (
	StateEmpty    = "empty"
	StatePartial  = "partial"
	StateAnalyzed = "analyzed"
)

// Script is the root of ownership: deleting a script releases every scene,
// artifact, CRDT update and usage record under it.
type Script struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	Title         string `gorm:"type:text;not null" json:"title"`
	AnalysisState string `gorm:"type:text;not null;default:'empty'" json:"analysis_state"`

	// Version guards script-level block content under CAS.
	Version int64 `gorm:"not null;default:0" json:"version"`

	Blocks      datatypes.JSON `gorm:"type:jsonb" json:"blocks,omitempty"`
	CRDTState   []byte         `gorm:"type:bytea" json:"-"`
	ContentHash *string        `gorm:"type:text" json:"content_hash,omitempty"`

	LastStateTransition *time.Time `json:"last_state_transition,omitempty"`

	UpdatedBy *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Script) TableName() string { return "scripts" }

// Scene positions are unique per script; deletion may renumber or leave gaps
// at the caller's discretion.
type Scene struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_scene_script_position" json:"script_id"`
	Position int       `gorm:"not null;uniqueIndex:idx_scene_script_position" json:"position"`

	Heading string         `gorm:"type:text;not null;default:''" json:"heading"`
	Blocks  datatypes.JSON `gorm:"type:jsonb" json:"blocks,omitempty"`
	RawText string         `gorm:"type:text;not null;default:''" json:"raw_text"`

	Version int64 `gorm:"not null;default:0" json:"version"`

	// ContentHash is the fingerprint of the current content; null means the
	// scene has never been analyzed.
	ContentHash *string `gorm:"type:text" json:"content_hash,omitempty"`

	IsKeyScene bool `gorm:"not null;default:false" json:"is_key_scene"`
	YjsDerived bool `gorm:"not null;default:false" json:"yjs_derived"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Scene) TableName() string { return "scenes" }

// SceneCharacter links a scene to a character name. The pair is the key.
type SceneCharacter struct {
	SceneID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"scene_id"`
	Name     string    `gorm:"type:text;primaryKey" json:"name"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`
}

func (SceneCharacter) TableName() string { return "scene_characters" }

const (
	ThreadKindCharacterArc = "character_arc"
	ThreadKindPlot         = "plot"
	ThreadKindSubplot      = "subplot"
	ThreadKindTheme        = "theme"
)

type PlotThread struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_thread_script_name" json:"script_id"`
	Name     string    `gorm:"type:text;not null;uniqueIndex:idx_thread_script_name" json:"name"`

	Kind        string `gorm:"type:text;not null" json:"kind"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PlotThread) TableName() string { return "plot_threads" }

const (
	RelationSetupPayoff = "setup_payoff"
	RelationCallback    = "callback"
	RelationParallel    = "parallel"
	RelationEcho        = "echo"
)

type SceneRelationship struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID    uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`
	FromSceneID uuid.UUID `gorm:"type:uuid;not null;index" json:"from_scene_id"`
	ToSceneID   uuid.UUID `gorm:"type:uuid;not null;index" json:"to_scene_id"`

	Kind string `gorm:"type:text;not null" json:"kind"`
	Note string `gorm:"type:text;not null;default:''" json:"note"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (SceneRelationship) TableName() string { return "scene_relationships" }

// WriteOp is the idempotency ledger for CAS writes. A replayed op-id returns
// the cached result instead of re-applying the write.
type WriteOp struct {
	OpID     string    `gorm:"type:text;primaryKey" json:"op_id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`

	Result datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"result"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (WriteOp) TableName() string { return "write_ops" }

// ScriptVersion is the append-only history written on every CAS success.
type ScriptVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ScriptID uuid.UUID `gorm:"type:uuid;not null;index" json:"script_id"`
	Version  int64     `gorm:"not null" json:"version"`

	Update []byte `gorm:"type:bytea" json:"-"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (ScriptVersion) TableName() string { return "script_versions" }
