package analysis

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued analysis run, processed by the worker binary.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID    uint64 `gorm:"not null;index;index:uniq_analysis_user_idempo,unique,priority:1"`
	SessionID string `gorm:"size:26;index;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_analysis_user_idempo,unique,priority:2" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultAnalysisID *uint64 `gorm:"index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "analysis_jobs" }
