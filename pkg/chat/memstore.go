package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/wilhg/parlor/pkg/errmodel"
)

// MemoryStore is the in-memory Store used by the examples. A production
// deployment would inject the gormstore variant instead.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]ThreadMetadata
	items   map[string][]ThreadItem
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]ThreadMetadata),
		items:   make(map[string][]ThreadItem),
	}
}

func (s *MemoryStore) LoadThread(_ context.Context, threadID string) (ThreadMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ThreadMetadata{}, errmodel.NotFound("thread not found", map[string]any{"thread": threadID})
	}
	return t, nil
}

func (s *MemoryStore) SaveThread(_ context.Context, thread ThreadMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = thread
	return nil
}

func (s *MemoryStore) LoadThreads(_ context.Context, limit int, after, order string) (Page[ThreadMetadata], error) {
	s.mu.RLock()
	rows := make([]ThreadMetadata, 0, len(s.threads))
	for _, t := range s.threads {
		rows = append(rows, t)
	}
	s.mu.RUnlock()
	return paginate(rows, after, limit, order,
		func(t ThreadMetadata) int64 { return t.CreatedAt.UnixNano() },
		func(t ThreadMetadata) string { return t.ID },
	), nil
}

func (s *MemoryStore) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	delete(s.items, threadID)
	return nil
}

func (s *MemoryStore) AddThreadItem(_ context.Context, threadID string, item ThreadItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[threadID] = append(s.items[threadID], item.Clone())
	return nil
}

// SaveItem replaces an item with a matching id or appends it.
func (s *MemoryStore) SaveItem(_ context.Context, threadID string, item ThreadItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.items[threadID]
	for i, existing := range rows {
		if existing.ID == item.ID {
			rows[i] = item.Clone()
			return nil
		}
	}
	s.items[threadID] = append(rows, item.Clone())
	return nil
}

func (s *MemoryStore) LoadItem(_ context.Context, threadID, itemID string) (ThreadItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items[threadID] {
		if item.ID == itemID {
			return item.Clone(), nil
		}
	}
	return ThreadItem{}, errmodel.NotFound("item not found", map[string]any{"thread": threadID, "item": itemID})
}

func (s *MemoryStore) LoadThreadItems(_ context.Context, threadID string, after string, limit int, order string) (Page[ThreadItem], error) {
	s.mu.RLock()
	rows := make([]ThreadItem, 0, len(s.items[threadID]))
	for _, item := range s.items[threadID] {
		rows = append(rows, item.Clone())
	}
	s.mu.RUnlock()
	return paginate(rows, after, limit, order,
		func(it ThreadItem) int64 { return it.CreatedAt.UnixNano() },
		func(it ThreadItem) string { return it.ID },
	), nil
}

// paginate sorts by creation time, seeks past the cursor, and slices a page.
func paginate[T any](rows []T, after string, limit int, order string, sortKey func(T) int64, cursorKey func(T) string) Page[T] {
	sort.SliceStable(rows, func(i, j int) bool {
		if order == OrderDesc {
			return sortKey(rows[i]) > sortKey(rows[j])
		}
		return sortKey(rows[i]) < sortKey(rows[j])
	})
	start := 0
	if after != "" {
		for i, row := range rows {
			if cursorKey(row) == after {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = len(rows) - start
	}
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	data := rows[start:end]
	hasMore := end < len(rows)
	next := ""
	if hasMore && len(data) > 0 {
		next = cursorKey(data[len(data)-1])
	}
	return Page[T]{Data: data, HasMore: hasMore, After: next}
}
