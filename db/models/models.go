package models

import "time"

// SyncRun is one execution of the target: counters plus lifecycle
// timestamps, keyed by a uuid assigned at start.
type SyncRun struct {
	ID            string `gorm:"primaryKey;size:36"`
	Stream        string `gorm:"index"`
	StartedAt     time.Time
	FinishedAt    *time.Time
	RecordsSynced int
	RecordsFailed int
}

// StreamState holds the most recent checkpoint blob emitted by the
// ingestion stream, one row per stream.
type StreamState struct {
	Stream    string `gorm:"primaryKey;size:128"`
	State     string
	UpdatedAt time.Time
}
