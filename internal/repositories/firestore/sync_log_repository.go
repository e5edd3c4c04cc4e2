package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/storebridge/erpsync/internal/domain"
	pfirestore "github.com/storebridge/erpsync/internal/platform/firestore"
	"github.com/storebridge/erpsync/internal/repositories"
)

const syncLogCollection = "sync_logs"

// SyncLogRepository persists the sync audit trail in Firestore.
type SyncLogRepository struct {
	base  *pfirestore.BaseRepository[syncLogDocument]
	clock func() time.Time
}

// NewSyncLogRepository constructs a Firestore-backed sync log repository.
func NewSyncLogRepository(provider *pfirestore.Provider, clock func() time.Time) (*SyncLogRepository, error) {
	if provider == nil {
		return nil, errors.New("sync log repository requires firestore provider")
	}
	if clock == nil {
		clock = time.Now
	}
	return &SyncLogRepository{
		base: pfirestore.NewBaseRepository[syncLogDocument](provider, syncLogCollection, nil, nil),
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

type syncLogDocument struct {
	Method        string    `firestore:"method,omitempty"`
	Status        string    `firestore:"status"`
	Message       string    `firestore:"message,omitempty"`
	OrderID       string    `firestore:"orderId,omitempty"`
	Topic         string    `firestore:"topic,omitempty"`
	EventID       string    `firestore:"eventId,omitempty"`
	PayloadDigest string    `firestore:"payloadDigest,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func (d syncLogDocument) toDomain(id string) domain.SyncLog {
	return domain.SyncLog{
		ID:            id,
		Method:        d.Method,
		Status:        domain.SyncStatus(d.Status),
		Message:       d.Message,
		OrderID:       d.OrderID,
		Topic:         d.Topic,
		EventID:       d.EventID,
		PayloadDigest: d.PayloadDigest,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Insert creates a new log entry keyed by its id. Inserting an id that already
// exists fails with a conflict error.
func (r *SyncLogRepository) Insert(ctx context.Context, entry domain.SyncLog) (domain.SyncLog, error) {
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return domain.SyncLog{}, errors.New("sync log repository: id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.SyncLog{}, err
	}

	now := r.clock()
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := syncLogDocument{
		Method:        entry.Method,
		Status:        string(entry.Status),
		Message:       entry.Message,
		OrderID:       entry.OrderID,
		Topic:         entry.Topic,
		EventID:       entry.EventID,
		PayloadDigest: entry.PayloadDigest,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     now,
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.SyncLog{}, pfirestore.WrapError("synclogs.insert", err)
	}
	return doc.toDomain(id), nil
}

// UpdateStatus records the outcome on an existing entry.
func (r *SyncLogRepository) UpdateStatus(ctx context.Context, id string, status domain.SyncStatus, message string) (domain.SyncLog, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SyncLog{}, errors.New("sync log repository: id is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "message", Value: message},
		{Path: "updatedAt", Value: r.clock()},
	}
	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return domain.SyncLog{}, err
	}
	return r.FindByID(ctx, id)
}

// FindByID fetches one entry.
func (r *SyncLogRepository) FindByID(ctx context.Context, id string) (domain.SyncLog, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SyncLog{}, errors.New("sync log repository: id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.SyncLog{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns entries matching the filter, newest first.
func (r *SyncLogRepository) List(ctx context.Context, filter repositories.SyncLogFilter) ([]domain.SyncLog, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		if filter.OrderID != "" {
			query = query.Where("orderId", "==", filter.OrderID)
		}
		if !filter.Since.IsZero() {
			query = query.Where("createdAt", ">=", filter.Since.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		return query
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.SyncLog, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, doc.Data.toDomain(doc.ID))
	}
	return entries, nil
}

// Ensure interface compliance.
var _ repositories.SyncLogRepository = (*SyncLogRepository)(nil)
