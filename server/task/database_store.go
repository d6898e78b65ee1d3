// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/go-a2a/orchestra"
)

// DatabaseTaskStore is a database implementation of TaskStore using GORM.
type DatabaseTaskStore struct {
	db *gorm.DB
}

var _ TaskStore = (*DatabaseTaskStore)(nil)

// DatabaseStoreConfig holds configuration shared by the GORM-backed stores.
type DatabaseStoreConfig struct {
	DB *gorm.DB

	// CreateTables controls whether AutoMigrate runs on Initialize.
	CreateTables bool
}

// NewDatabaseTaskStore creates a new DatabaseTaskStore.
func NewDatabaseTaskStore(config DatabaseStoreConfig) (*DatabaseTaskStore, error) {
	if config.DB == nil {
		return nil, errors.New("database connection cannot be nil")
	}

	store := &DatabaseTaskStore{db: config.DB}
	if config.CreateTables {
		if err := config.DB.AutoMigrate(&TaskModel{}); err != nil {
			return nil, NewStoreError("initialize", "", err)
		}
	}
	return store, nil
}

// Create persists a new task.
func (s *DatabaseTaskStore) Create(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error) {
	if task == nil {
		return nil, ErrNilEntity
	}

	if err := s.db.WithContext(ctx).Create(NewTaskModelFromTask(task)).Error; err != nil {
		return nil, NewStoreError("create", task.ID, err)
	}
	return task, nil
}

// Get returns the task with the given id, or nil if absent.
func (s *DatabaseTaskStore) Get(ctx context.Context, taskID string) (*orchestra.Task, error) {
	if taskID == "" {
		return nil, ErrEmptyID
	}

	var model TaskModel
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, NewStoreError("get", taskID, err)
	}
	return model.ToTask(), nil
}

// Update persists changes to an existing task. Unknown ids are a silent
// no-op and the input is returned unchanged.
func (s *DatabaseTaskStore) Update(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error) {
	if task == nil {
		return nil, ErrNilEntity
	}

	task.UpdatedAt = time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", task.ID).
		Updates(NewTaskModelFromTask(task))
	if result.Error != nil {
		return nil, NewStoreError("update", task.ID, result.Error)
	}
	return task, nil
}

// List returns tasks matching the filter, newest created first.
func (s *DatabaseTaskStore) List(ctx context.Context, filter TaskFilter, limit int) ([]*orchestra.Task, error) {
	db := s.db.WithContext(ctx).Order("created_at DESC")
	if filter.ContextID != "" {
		db = db.Where("context_id = ?", filter.ContextID)
	}
	if filter.State != "" {
		db = db.Where("state = ?", string(filter.State))
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	var models []TaskModel
	if err := db.Find(&models).Error; err != nil {
		return nil, NewStoreError("list", "", err)
	}

	tasks := make([]*orchestra.Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToTask()
	}
	return tasks, nil
}

// Delete removes a task, reporting whether it existed.
func (s *DatabaseTaskStore) Delete(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, ErrEmptyID
	}

	result := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&TaskModel{})
	if result.Error != nil {
		return false, NewStoreError("delete", taskID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CleanupOlderThan removes tasks created before now-maxAge.
func (s *DatabaseTaskStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&TaskModel{})
	if result.Error != nil {
		return 0, NewStoreError("cleanup", "", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Transaction executes fn with a store bound to a database transaction.
func (s *DatabaseTaskStore) Transaction(ctx context.Context, fn func(TaskStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DatabaseTaskStore{db: tx})
	})
}

// DatabaseContextStore is a database implementation of ContextStore using GORM.
type DatabaseContextStore struct {
	db *gorm.DB
}

var _ ContextStore = (*DatabaseContextStore)(nil)

// NewDatabaseContextStore creates a new DatabaseContextStore.
func NewDatabaseContextStore(config DatabaseStoreConfig) (*DatabaseContextStore, error) {
	if config.DB == nil {
		return nil, errors.New("database connection cannot be nil")
	}

	store := &DatabaseContextStore{db: config.DB}
	if config.CreateTables {
		if err := config.DB.AutoMigrate(&ContextModel{}); err != nil {
			return nil, NewStoreError("initialize", "", err)
		}
	}
	return store, nil
}

// Create persists a new context.
func (s *DatabaseContextStore) Create(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error) {
	if c == nil {
		return nil, ErrNilEntity
	}

	if err := s.db.WithContext(ctx).Create(NewContextModelFromContext(c)).Error; err != nil {
		return nil, NewStoreError("create", c.ID, err)
	}
	return c, nil
}

// Get returns the context with the given id, or nil if absent.
func (s *DatabaseContextStore) Get(ctx context.Context, contextID string) (*orchestra.Context, error) {
	if contextID == "" {
		return nil, ErrEmptyID
	}

	var model ContextModel
	err := s.db.WithContext(ctx).Where("id = ?", contextID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, NewStoreError("get", contextID, err)
	}
	return model.ToContext(), nil
}

// Update persists changes to an existing context. Unknown ids are a silent
// no-op and the input is returned unchanged.
func (s *DatabaseContextStore) Update(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error) {
	if c == nil {
		return nil, ErrNilEntity
	}

	c.UpdatedAt = time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&ContextModel{}).
		Where("id = ?", c.ID).
		Updates(NewContextModelFromContext(c))
	if result.Error != nil {
		return nil, NewStoreError("update", c.ID, result.Error)
	}
	return c, nil
}

// List returns contexts, optionally filtered by owning user, newest created
// first.
func (s *DatabaseContextStore) List(ctx context.Context, userID string, limit int) ([]*orchestra.Context, error) {
	db := s.db.WithContext(ctx).Order("created_at DESC")
	if userID != "" {
		db = db.Where("user_id = ?", userID)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	var models []ContextModel
	if err := db.Find(&models).Error; err != nil {
		return nil, NewStoreError("list", "", err)
	}

	contexts := make([]*orchestra.Context, len(models))
	for i := range models {
		contexts[i] = models[i].ToContext()
	}
	return contexts, nil
}

// Delete removes a context, reporting whether it existed.
func (s *DatabaseContextStore) Delete(ctx context.Context, contextID string) (bool, error) {
	if contextID == "" {
		return false, ErrEmptyID
	}

	result := s.db.WithContext(ctx).Where("id = ?", contextID).Delete(&ContextModel{})
	if result.Error != nil {
		return false, NewStoreError("delete", contextID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CleanupOlderThan removes contexts created before now-maxAge.
func (s *DatabaseContextStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&ContextModel{})
	if result.Error != nil {
		return 0, NewStoreError("cleanup", "", result.Error)
	}
	return int(result.RowsAffected), nil
}
