package chat

import (
	"context"
)

// Page is a cursor-paginated slice of results.
type Page[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"hasMore"`
	After   string `json:"after,omitempty"`
}

// Order values accepted by LoadThreadItems.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Store persists threads and their items. The built-in MemoryStore keeps
// everything process-local; gormstore provides the durable variant. Both
// return errmodel not-found errors for missing threads/items.
type Store interface {
	LoadThread(ctx context.Context, threadID string) (ThreadMetadata, error)
	SaveThread(ctx context.Context, thread ThreadMetadata) error
	LoadThreads(ctx context.Context, limit int, after, order string) (Page[ThreadMetadata], error)
	DeleteThread(ctx context.Context, threadID string) error

	AddThreadItem(ctx context.Context, threadID string, item ThreadItem) error
	SaveItem(ctx context.Context, threadID string, item ThreadItem) error
	LoadItem(ctx context.Context, threadID, itemID string) (ThreadItem, error)
	LoadThreadItems(ctx context.Context, threadID string, after string, limit int, order string) (Page[ThreadItem], error)
}
