// Package gormstore provides a Postgres-backed chat.Store for deployments
// that outlive a single process. The in-memory store remains the default for
// the demo backends.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/errmodel"
)

// Option allows configuring the DB connection.
type Option func(*config)

type config struct {
	Logger logger.Interface
}

// WithLogger sets a custom GORM logger.
func WithLogger(l logger.Interface) Option { return func(c *config) { c.Logger = l } }

// Open opens a Postgres-backed GORM DB connection using the provided DSN and
// migrates the thread tables.
func Open(dsn string, opts ...Option) (*Store, error) {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	gormCfg := &gorm.Config{}
	if cfg.Logger != nil {
		gormCfg.Logger = cfg.Logger
	}
	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ThreadModel{}, &ItemModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// ThreadModel is the GORM model for thread metadata.
type ThreadModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Title     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (ThreadModel) TableName() string { return "chat_threads" }

// ItemModel is the GORM model for thread items. Body carries the full item as
// JSON so widget payloads and tags round-trip without per-field columns.
type ItemModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	ThreadID  string    `gorm:"index;type:text;not null"`
	Type      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index;not null"`
	Body      []byte    `gorm:"type:bytea;not null"`
}

func (ItemModel) TableName() string { return "chat_items" }

// Store implements chat.Store using GORM.
type Store struct{ db *gorm.DB }

func (s *Store) LoadThread(ctx context.Context, threadID string) (chat.ThreadMetadata, error) {
	var m ThreadModel
	err := s.db.WithContext(ctx).Where("id = ?", threadID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.ThreadMetadata{}, errmodel.NotFound("thread not found", map[string]any{"thread": threadID})
	}
	if err != nil {
		return chat.ThreadMetadata{}, err
	}
	return chat.ThreadMetadata{ID: m.ID, Title: m.Title, CreatedAt: m.CreatedAt}, nil
}

func (s *Store) SaveThread(ctx context.Context, thread chat.ThreadMetadata) error {
	m := ThreadModel{ID: thread.ID, Title: thread.Title, CreatedAt: thread.CreatedAt}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *Store) LoadThreads(ctx context.Context, limit int, after, order string) (chat.Page[chat.ThreadMetadata], error) {
	var models []ThreadModel
	q := s.db.WithContext(ctx).Order("created_at " + sqlOrder(order) + ", id")
	if err := q.Find(&models).Error; err != nil {
		return chat.Page[chat.ThreadMetadata]{}, err
	}
	rows := make([]chat.ThreadMetadata, 0, len(models))
	for _, m := range models {
		rows = append(rows, chat.ThreadMetadata{ID: m.ID, Title: m.Title, CreatedAt: m.CreatedAt})
	}
	return pageAfter(rows, after, limit, func(t chat.ThreadMetadata) string { return t.ID }), nil
}

func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	if err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&ItemModel{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("id = ?", threadID).Delete(&ThreadModel{}).Error
}

func (s *Store) AddThreadItem(ctx context.Context, threadID string, item chat.ThreadItem) error {
	m, err := toModel(threadID, item)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) SaveItem(ctx context.Context, threadID string, item chat.ThreadItem) error {
	m, err := toModel(threadID, item)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *Store) LoadItem(ctx context.Context, threadID, itemID string) (chat.ThreadItem, error) {
	var m ItemModel
	err := s.db.WithContext(ctx).Where("thread_id = ? AND id = ?", threadID, itemID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.ThreadItem{}, errmodel.NotFound("item not found", map[string]any{"thread": threadID, "item": itemID})
	}
	if err != nil {
		return chat.ThreadItem{}, err
	}
	return fromModel(m)
}

func (s *Store) LoadThreadItems(ctx context.Context, threadID string, after string, limit int, order string) (chat.Page[chat.ThreadItem], error) {
	var models []ItemModel
	q := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at " + sqlOrder(order) + ", id")
	if err := q.Find(&models).Error; err != nil {
		return chat.Page[chat.ThreadItem]{}, err
	}
	rows := make([]chat.ThreadItem, 0, len(models))
	for _, m := range models {
		item, err := fromModel(m)
		if err != nil {
			return chat.Page[chat.ThreadItem]{}, err
		}
		rows = append(rows, item)
	}
	return pageAfter(rows, after, limit, func(it chat.ThreadItem) string { return it.ID }), nil
}

func toModel(threadID string, item chat.ThreadItem) (ItemModel, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return ItemModel{}, err
	}
	return ItemModel{
		ID:        item.ID,
		ThreadID:  threadID,
		Type:      string(item.Type),
		CreatedAt: item.CreatedAt,
		Body:      body,
	}, nil
}

func fromModel(m ItemModel) (chat.ThreadItem, error) {
	var item chat.ThreadItem
	if err := json.Unmarshal(m.Body, &item); err != nil {
		return chat.ThreadItem{}, err
	}
	return item, nil
}

func sqlOrder(order string) string {
	if order == chat.OrderDesc {
		return "desc"
	}
	return "asc"
}

// pageAfter applies the cursor and limit to pre-sorted rows.
func pageAfter[T any](rows []T, after string, limit int, cursorKey func(T) string) chat.Page[T] {
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
	return chat.Page[T]{Data: data, HasMore: hasMore, After: next}
}
