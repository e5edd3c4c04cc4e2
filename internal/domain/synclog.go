package domain

import "time"

// SyncStatus is the lifecycle state of one webhook/backfill sync attempt.
type SyncStatus string

const (
	// SyncStatusQueued marks a request accepted and handed to the job queue.
	SyncStatusQueued SyncStatus = "queued"
	// SyncStatusSuccess marks a completed sync.
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusError marks a failed sync needing operator follow-up.
	SyncStatusError SyncStatus = "error"
	// SyncStatusInvalid marks a request that was valid transport-wise but not
	// actionable, such as an order that already exists.
	SyncStatusInvalid SyncStatus = "invalid"
)

// SyncLog is one audit record of a sync attempt, keyed by request id so the
// queued job and its outcome share a trail.
type SyncLog struct {
	ID            string
	Method        string
	Status        SyncStatus
	Message       string
	OrderID       string
	Topic         string
	EventID       string
	PayloadDigest string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
