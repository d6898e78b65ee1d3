// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"testing"
	"time"

	"github.com/go-a2a/orchestra"
)

func newStoredTask(t *testing.T, store *InMemoryTaskStore, contextID, content string) *orchestra.Task {
	t.Helper()
	msg := orchestra.NewAgentTextMessage(content, contextID, "", "user")
	created, err := store.Create(context.Background(), orchestra.NewTask(msg))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestInMemoryTaskStoreCreateGet(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	created := newStoredTask(t, store, "ctx-1", "crop this image")

	got, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("Get returned %+v", got)
	}

	// The store hands out copies, not shared references.
	got.Title = "mutated"
	got.Metadata["injected"] = true
	again, _ := store.Get(context.Background(), created.ID)
	if again.Title == "mutated" {
		t.Error("mutating a returned task must not affect the stored task")
	}
	if _, ok := again.Metadata["injected"]; ok {
		t.Error("mutating returned metadata must not affect the stored task")
	}
}

func TestInMemoryTaskStoreGetMissing(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	got, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get missing = %+v, want nil", got)
	}
}

func TestInMemoryTaskStoreUpdateUnknownIsNoOp(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	ghost := orchestra.NewTask(orchestra.NewAgentTextMessage("hi", "ctx-1", "", "user"))
	got, err := store.Update(context.Background(), ghost)
	if err != nil {
		t.Fatalf("Update unknown: %v", err)
	}
	if got == nil {
		t.Fatal("Update unknown should return the input unchanged")
	}
	if store.Size() != 0 {
		t.Error("Update unknown must not insert")
	}
}

func TestInMemoryTaskStoreUpdate(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	created := newStoredTask(t, store, "ctx-1", "crop this image")
	created.State = orchestra.TaskStateWorking
	created.AssignedAgent = "cropping_agent"

	if _, err := store.Update(context.Background(), created); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Get(context.Background(), created.ID)
	if got.State != orchestra.TaskStateWorking {
		t.Errorf("state = %s, want working", got.State)
	}
	if got.AssignedAgent != "cropping_agent" {
		t.Errorf("assigned agent = %s", got.AssignedAgent)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Error("UpdatedAt not refreshed")
	}
}

func TestInMemoryTaskStoreList(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	first := newStoredTask(t, store, "ctx-1", "first")
	time.Sleep(2 * time.Millisecond)
	second := newStoredTask(t, store, "ctx-1", "second")
	time.Sleep(2 * time.Millisecond)
	other := newStoredTask(t, store, "ctx-2", "other")

	second.State = orchestra.TaskStateCompleted
	store.Update(context.Background(), second)

	all, err := store.List(context.Background(), TaskFilter{}, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List all = %d, want 3", len(all))
	}
	// Newest created first.
	if all[0].ID != other.ID || all[2].ID != first.ID {
		t.Error("List should order newest created first")
	}

	byContext, _ := store.List(context.Background(), TaskFilter{ContextID: "ctx-1"}, 0)
	if len(byContext) != 2 {
		t.Errorf("List by context = %d, want 2", len(byContext))
	}

	byState, _ := store.List(context.Background(), TaskFilter{State: orchestra.TaskStateCompleted}, 0)
	if len(byState) != 1 || byState[0].ID != second.ID {
		t.Error("List by state should return only the completed task")
	}

	limited, _ := store.List(context.Background(), TaskFilter{}, 2)
	if len(limited) != 2 {
		t.Errorf("List limited = %d, want 2", len(limited))
	}
}

func TestInMemoryTaskStoreDelete(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	created := newStoredTask(t, store, "ctx-1", "delete me")

	existed, err := store.Delete(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("Delete existing should report true")
	}

	existed, _ = store.Delete(context.Background(), created.ID)
	if existed {
		t.Error("Delete missing should report false")
	}
}

func TestInMemoryTaskStoreCleanupOlderThan(t *testing.T) {
	t.Parallel()
	store := NewInMemoryTaskStore()

	newStoredTask(t, store, "ctx-1", "old")
	newStoredTask(t, store, "ctx-1", "older")

	removed, err := store.CleanupOlderThan(context.Background(), 0)
	if err != nil {
		t.Fatalf("CleanupOlderThan: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if store.Size() != 0 {
		t.Errorf("size after cleanup = %d, want 0", store.Size())
	}

	// Young entries survive.
	newStoredTask(t, store, "ctx-1", "fresh")
	removed, _ = store.CleanupOlderThan(context.Background(), time.Hour)
	if removed != 0 {
		t.Errorf("removed young = %d, want 0", removed)
	}
}

func TestInMemoryContextStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store := NewInMemoryContextStore()

	c := orchestra.NewContext("session-1", "user-1", map[string]any{"cart": []any{}})
	created, err := store.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SessionID != "session-1" || got.UserID != "user-1" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Copies, not references.
	got.AppendHistory("user", "hello")
	again, _ := store.Get(context.Background(), created.ID)
	if len(again.History) != 0 {
		t.Error("mutating a returned context must not affect the stored context")
	}

	got2, _ := store.Get(context.Background(), "missing")
	if got2 != nil {
		t.Errorf("Get missing = %+v, want nil", got2)
	}
}

func TestInMemoryContextStoreListByUser(t *testing.T) {
	t.Parallel()
	store := NewInMemoryContextStore()

	store.Create(context.Background(), orchestra.NewContext("s1", "alice", nil))
	time.Sleep(2 * time.Millisecond)
	store.Create(context.Background(), orchestra.NewContext("s2", "alice", nil))
	store.Create(context.Background(), orchestra.NewContext("s3", "bob", nil))

	all, err := store.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List all = %d, want 3", len(all))
	}

	alice, _ := store.List(context.Background(), "alice", 0)
	if len(alice) != 2 {
		t.Fatalf("List alice = %d, want 2", len(alice))
	}
	if alice[0].SessionID != "s2" {
		t.Error("List should order newest created first")
	}
}

func TestInMemoryContextStoreDelete(t *testing.T) {
	t.Parallel()
	store := NewInMemoryContextStore()

	created, _ := store.Create(context.Background(), orchestra.NewContext("s1", "", nil))

	if existed, _ := store.Delete(context.Background(), created.ID); !existed {
		t.Error("Delete existing should report true")
	}
	if existed, _ := store.Delete(context.Background(), created.ID); existed {
		t.Error("Delete missing should report false")
	}
}
