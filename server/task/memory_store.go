// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-a2a/orchestra"
)

// InMemoryTaskStore is an in-memory implementation of TaskStore.
// Task data is lost when the server process stops. All operations are
// guarded by a single store-wide mutex; a secondary index by context id
// supports cascade deletes and listing.
type InMemoryTaskStore struct {
	mu           sync.Mutex
	tasks        map[string]*orchestra.Task
	contextTasks map[string]map[string]struct{}
}

var _ TaskStore = (*InMemoryTaskStore)(nil)

// NewInMemoryTaskStore creates a new InMemoryTaskStore.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:        make(map[string]*orchestra.Task),
		contextTasks: make(map[string]map[string]struct{}),
	}
}

// Create persists a new task.
func (s *InMemoryTaskStore) Create(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error) {
	if task == nil {
		return nil, ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task.Clone()
	if s.contextTasks[task.ContextID] == nil {
		s.contextTasks[task.ContextID] = make(map[string]struct{})
	}
	s.contextTasks[task.ContextID][task.ID] = struct{}{}

	return task, nil
}

// Get returns the task with the given id, or nil if absent.
func (s *InMemoryTaskStore) Get(ctx context.Context, taskID string) (*orchestra.Task, error) {
	if taskID == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, nil
	}
	return task.Clone(), nil
}

// Update persists changes to an existing task. Unknown ids are a silent
// no-op and the input is returned unchanged.
func (s *InMemoryTaskStore) Update(ctx context.Context, task *orchestra.Task) (*orchestra.Task, error) {
	if task == nil {
		return nil, ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return task, nil
	}
	task.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = task.Clone()

	return task, nil
}

// List returns tasks matching the filter, newest created first.
func (s *InMemoryTaskStore) List(ctx context.Context, filter TaskFilter, limit int) ([]*orchestra.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*orchestra.Task
	for _, task := range s.tasks {
		if filter.ContextID != "" && task.ContextID != filter.ContextID {
			continue
		}
		if filter.State != "" && task.State != filter.State {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	slices.SortFunc(tasks, func(a, b *orchestra.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Delete removes a task, reporting whether it existed.
func (s *InMemoryTaskStore) Delete(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	delete(s.tasks, taskID)
	s.dropContextIndexLocked(task.ContextID, taskID)

	return true, nil
}

// CleanupOlderThan removes tasks created before now-maxAge.
func (s *InMemoryTaskStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
			s.dropContextIndexLocked(task.ContextID, id)
			removed++
		}
	}
	return removed, nil
}

// Size returns the current number of stored tasks. Useful for tests and
// monitoring.
func (s *InMemoryTaskStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *InMemoryTaskStore) dropContextIndexLocked(contextID, taskID string) {
	if ids := s.contextTasks[contextID]; ids != nil {
		delete(ids, taskID)
		if len(ids) == 0 {
			delete(s.contextTasks, contextID)
		}
	}
}

// InMemoryContextStore is an in-memory implementation of ContextStore with a
// secondary index by owning user.
type InMemoryContextStore struct {
	mu           sync.Mutex
	contexts     map[string]*orchestra.Context
	userContexts map[string]map[string]struct{}
}

var _ ContextStore = (*InMemoryContextStore)(nil)

// NewInMemoryContextStore creates a new InMemoryContextStore.
func NewInMemoryContextStore() *InMemoryContextStore {
	return &InMemoryContextStore{
		contexts:     make(map[string]*orchestra.Context),
		userContexts: make(map[string]map[string]struct{}),
	}
}

// Create persists a new context.
func (s *InMemoryContextStore) Create(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error) {
	if c == nil {
		return nil, ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts[c.ID] = copyContext(c)
	if c.UserID != "" {
		if s.userContexts[c.UserID] == nil {
			s.userContexts[c.UserID] = make(map[string]struct{})
		}
		s.userContexts[c.UserID][c.ID] = struct{}{}
	}

	return c, nil
}

// Get returns the context with the given id, or nil if absent.
func (s *InMemoryContextStore) Get(ctx context.Context, contextID string) (*orchestra.Context, error) {
	if contextID == "" {
		return nil, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[contextID]
	if !ok {
		return nil, nil
	}
	return copyContext(c), nil
}

// Update persists changes to an existing context. Unknown ids are a silent
// no-op and the input is returned unchanged.
func (s *InMemoryContextStore) Update(ctx context.Context, c *orchestra.Context) (*orchestra.Context, error) {
	if c == nil {
		return nil, ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[c.ID]; !ok {
		return c, nil
	}
	c.UpdatedAt = time.Now().UTC()
	s.contexts[c.ID] = copyContext(c)

	return c, nil
}

// List returns contexts, optionally filtered by owning user, newest created
// first.
func (s *InMemoryContextStore) List(ctx context.Context, userID string, limit int) ([]*orchestra.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var contexts []*orchestra.Context
	for _, c := range s.contexts {
		if userID != "" && c.UserID != userID {
			continue
		}
		contexts = append(contexts, copyContext(c))
	}

	slices.SortFunc(contexts, func(a, b *orchestra.Context) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if limit > 0 && len(contexts) > limit {
		contexts = contexts[:limit]
	}
	return contexts, nil
}

// Delete removes a context, reporting whether it existed.
func (s *InMemoryContextStore) Delete(ctx context.Context, contextID string) (bool, error) {
	if contextID == "" {
		return false, ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[contextID]
	if !ok {
		return false, nil
	}
	delete(s.contexts, contextID)
	s.dropUserIndexLocked(c.UserID, contextID)

	return true, nil
}

// CleanupOlderThan removes contexts created before now-maxAge.
func (s *InMemoryContextStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.contexts {
		if c.CreatedAt.Before(cutoff) {
			delete(s.contexts, id)
			s.dropUserIndexLocked(c.UserID, id)
			removed++
		}
	}
	return removed, nil
}

// Size returns the current number of stored contexts.
func (s *InMemoryContextStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

func (s *InMemoryContextStore) dropUserIndexLocked(userID, contextID string) {
	if userID == "" {
		return
	}
	if ids := s.userContexts[userID]; ids != nil {
		delete(ids, contextID)
		if len(ids) == 0 {
			delete(s.userContexts, userID)
		}
	}
}

// copyContext creates a deep copy of a context.
func copyContext(c *orchestra.Context) *orchestra.Context {
	if c == nil {
		return nil
	}

	cp := *c
	cp.History = slices.Clone(c.History)
	cp.Shared = maps.Clone(c.Shared)
	return &cp
}
