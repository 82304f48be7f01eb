package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusDead      = "dead"
)

const (
	PriorityUrgent = "urgent"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// JobRun is the durable record of a queued job across its attempts. JobID is
// the deterministic dedupe key, so a requeue of identical work reuses the row.
type JobRun struct {
	ID    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID string    `gorm:"type:text;not null;uniqueIndex" json:"job_id"`

	JobType  string     `gorm:"type:text;not null;index" json:"job_type"`
	Priority string     `gorm:"type:text;not null;default:'normal'" json:"priority"`
	ScriptID *uuid.UUID `gorm:"type:uuid;index" json:"script_id,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`

	Status   string `gorm:"type:text;not null;default:'queued';index" json:"status"`
	Attempts int    `gorm:"not null;default:0" json:"attempts"`
	Stage    string `gorm:"type:text;not null;default:''" json:"stage"`
	Error    string `gorm:"type:text;not null;default:''" json:"error"`

	EnqueuedAt time.Time  `gorm:"not null;default:now()" json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_runs" }
