package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportStatus is the orchestrator state machine. complete, failed and
// cancelled are terminal; exactly one is reached per job, never exited.
type ImportStatus string

const (
	StatusQueued      ImportStatus = "queued"
	StatusDownloading ImportStatus = "downloading"
	StatusExtracting  ImportStatus = "extracting"
	StatusEnriching   ImportStatus = "enriching"
	StatusValidating  ImportStatus = "validating"
	StatusComplete    ImportStatus = "complete"
	StatusFailed      ImportStatus = "failed"
	StatusCancelled   ImportStatus = "cancelled"
)

func (s ImportStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCancelled
}

// ValidImportStatus reports whether s names a known state.
func ValidImportStatus(s ImportStatus) bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusExtracting, StatusEnriching,
		StatusValidating, StatusComplete, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageRunning  StageStatus = "running"
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageState tracks one enrichment sub-stage inside a job.
type StageState struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"`
	Detail   string      `json:"detail,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// LogEntry is one line in a job's append-only log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ImportJob is the persistent job row. It is mutated only by the orchestrator
// that owns it; everything else reads snapshots.
type ImportJob struct {
	ID       uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID string       `gorm:"column:source_id;not null;index" json:"source_id"`
	CourseID string       `gorm:"column:course_id;not null;index" json:"course_id"`
	Status   ImportStatus `gorm:"column:status;not null;index" json:"status"`
	Stage    string       `gorm:"column:stage" json:"stage,omitempty"`
	Progress int          `gorm:"column:progress;not null;default:0" json:"progress"`
	Message  string       `gorm:"column:message" json:"message,omitempty"`
	Error    string       `gorm:"column:error" json:"error,omitempty"`

	Config datatypes.JSON `gorm:"column:config;type:jsonb" json:"config"`
	Stages datatypes.JSON `gorm:"column:stages;type:jsonb" json:"stages"`
	Log    datatypes.JSON `gorm:"column:log;type:jsonb" json:"log"`
	Result datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`

	CancelRequested bool       `gorm:"column:cancel_requested;not null;default:false" json:"cancel_requested"`
	HeartbeatAt     *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	StartedAt       *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time `gorm:"column:finished_at;index" json:"finished_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ImportJob) TableName() string { return "import_job" }
