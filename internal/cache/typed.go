// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Namespace keeps JSON-encoded values of T under keys that share one
// prefix, so a whole family of entries can be purged at once.
type Namespace[T any] struct {
	backend Cache
	prefix  string
	ttl     time.Duration
}

// NewNamespace returns a Namespace writing to backend. Entries live for ttl;
// zero defers to the backend default.
func NewNamespace[T any](backend Cache, prefix string, ttl time.Duration) *Namespace[T] {
	return &Namespace[T]{backend: backend, prefix: prefix, ttl: ttl}
}

// Key returns the backend key for id.
func (n *Namespace[T]) Key(id string) string {
	return n.prefix + id
}

// Load returns the value stored under id. An entry that no longer decodes
// as T is dropped and reported as a miss.
func (n *Namespace[T]) Load(ctx context.Context, id string) (T, bool) {
	var v T
	data, err := n.backend.Get(ctx, n.Key(id))
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		_ = n.backend.Delete(ctx, n.Key(id))
		var zero T
		return zero, false
	}
	return v, true
}

// Store writes v under id.
func (n *Namespace[T]) Store(ctx context.Context, id string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", n.Key(id), err)
	}
	return n.backend.Set(ctx, n.Key(id), data, n.ttl)
}

// Forget removes the entry under id. A missing entry is not an error.
func (n *Namespace[T]) Forget(ctx context.Context, id string) error {
	err := n.backend.Delete(ctx, n.Key(id))
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	return err
}

// Purge removes every entry in the namespace.
func (n *Namespace[T]) Purge(ctx context.Context) error {
	return n.backend.DeleteByPrefix(ctx, n.prefix)
}

// Fetch returns the value under id, calling load and storing its result on
// a miss. Load errors are returned and nothing is cached; a failed store is
// ignored because the loaded value is still good.
func (n *Namespace[T]) Fetch(ctx context.Context, id string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := n.Load(ctx, id); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = n.Store(ctx, id, v)
	return v, nil
}
