// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/go-a2a/orchestra/config"
	"github.com/go-a2a/orchestra/server/task"
)

func TestBuildStoresDefaultsToMemory(t *testing.T) {
	t.Parallel()

	tasks, contexts, err := buildStores(config.StoreConfig{})
	if err != nil {
		t.Fatalf("buildStores: %v", err)
	}
	if _, ok := tasks.(*task.InMemoryTaskStore); !ok {
		t.Errorf("task store = %T, want in-memory without a DSN", tasks)
	}
	if _, ok := contexts.(*task.InMemoryContextStore); !ok {
		t.Errorf("context store = %T, want in-memory without a DSN", contexts)
	}
}
