package repositories

import (
	"context"
	"time"

	domain "github.com/storebridge/erpsync/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// SyncLogFilter narrows sync log listings.
type SyncLogFilter struct {
	Status  domain.SyncStatus
	OrderID string
	Since   time.Time
	Limit   int
}

// SyncLogRepository persists the audit trail of webhook and backfill sync
// attempts. Every queued job gets one entry at dispatch time; the worker
// updates the same entry with the outcome.
type SyncLogRepository interface {
	Insert(ctx context.Context, entry domain.SyncLog) (domain.SyncLog, error)
	UpdateStatus(ctx context.Context, id string, status domain.SyncStatus, message string) (domain.SyncLog, error)
	FindByID(ctx context.Context, id string) (domain.SyncLog, error)
	List(ctx context.Context, filter SyncLogFilter) ([]domain.SyncLog, error)
}
