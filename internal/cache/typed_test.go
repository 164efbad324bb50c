// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// navEntry has the shape of a cached navigation tree node.
type navEntry struct {
	ID       int64      `json:"id"`
	Label    string     `json:"label"`
	URL      string     `json:"url"`
	Children []navEntry `json:"children"`
}

// challenge has the shape of a pending two-factor login.
type challenge struct {
	UserID   int64     `json:"userId"`
	IssuedAt time.Time `json:"issuedAt"`
}

func TestNamespace_NavigationTree(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	ns := NewNamespace[[]navEntry](backend, "nav:", time.Hour)
	ctx := context.Background()

	tree := []navEntry{
		{ID: 1, Label: "Services", URL: "/services", Children: []navEntry{
			{ID: 3, Label: "Bookkeeping", URL: "/page/bookkeeping"},
			{ID: 4, Label: "Payroll", URL: "/page/payroll"},
		}},
		{ID: 2, Label: "Contact", URL: "/contact"},
	}
	if err := ns.Store(ctx, "tree:visible", tree); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if ok, _ := backend.Has(ctx, "nav:tree:visible"); !ok {
		t.Error("entry should live under the namespace prefix")
	}

	got, ok := ns.Load(ctx, "tree:visible")
	if !ok {
		t.Fatal("expected a hit")
	}
	if len(got) != 2 || len(got[0].Children) != 2 {
		t.Fatalf("tree shape lost: %+v", got)
	}
	if got[0].Children[1].URL != "/page/payroll" {
		t.Errorf("child URL = %q, want /page/payroll", got[0].Children[1].URL)
	}

	if err := ns.Forget(ctx, "tree:visible"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := ns.Load(ctx, "tree:visible"); ok {
		t.Error("tree should be gone after Forget")
	}
	if err := ns.Forget(ctx, "tree:visible"); err != nil {
		t.Errorf("Forget of a missing entry: %v", err)
	}
}

func TestNamespace_FetchPublicSettings(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	ns := NewNamespace[map[string]string](backend, "settings:", time.Hour)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (map[string]string, error) {
		loads++
		return map[string]string{"site_name": "TEG Finance", "contact_phone": "+44 20 7946 0000"}, nil
	}

	for range 3 {
		got, err := ns.Fetch(ctx, "public", load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if got["site_name"] != "TEG Finance" {
			t.Errorf("site_name = %q", got["site_name"])
		}
	}
	if loads != 1 {
		t.Errorf("loader ran %d times, want 1", loads)
	}

	// Saving settings forgets the entry, so the next read reloads.
	_ = ns.Forget(ctx, "public")
	if _, err := ns.Fetch(ctx, "public", load); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if loads != 2 {
		t.Errorf("loader ran %d times after Forget, want 2", loads)
	}
}

func TestNamespace_FetchErrorIsNotCached(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	ns := NewNamespace[map[string]string](backend, "settings:", time.Hour)
	ctx := context.Background()

	dbErr := errors.New("database is locked")
	got, err := ns.Fetch(ctx, "public", func(context.Context) (map[string]string, error) {
		return map[string]string{"partial": "value"}, dbErr
	})
	if !errors.Is(err, dbErr) {
		t.Fatalf("Fetch error = %v, want %v", err, dbErr)
	}
	if got != nil {
		t.Errorf("Fetch returned %v alongside an error", got)
	}
	if ok, _ := backend.Has(ctx, ns.Key("public")); ok {
		t.Error("failed load should not be cached")
	}
}

func TestNamespace_ChallengeExpires(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	ns := NewNamespace[challenge](backend, "2fa:challenge:", 50*time.Millisecond)
	ctx := context.Background()

	issued := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := ns.Store(ctx, "7", challenge{UserID: 7, IssuedAt: issued}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok := ns.Load(ctx, "7")
	if !ok {
		t.Fatal("challenge should be pending")
	}
	if got.UserID != 7 || !got.IssuedAt.Equal(issued) {
		t.Errorf("challenge = %+v", got)
	}
	if _, ok := ns.Load(ctx, "8"); ok {
		t.Error("another user has no challenge")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := ns.Load(ctx, "7"); ok {
		t.Error("challenge should expire with the namespace ttl")
	}
}

func TestNamespace_UndecodableEntryIsDropped(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	ns := NewNamespace[challenge](backend, "2fa:challenge:", time.Hour)
	ctx := context.Background()

	if err := backend.Set(ctx, ns.Key("7"), []byte(`{"userId":"seven"}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, ok := ns.Load(ctx, "7"); ok || got.UserID != 0 {
		t.Errorf("Load = %+v, %v; want a miss", got, ok)
	}
	if ok, _ := backend.Has(ctx, ns.Key("7")); ok {
		t.Error("undecodable entry should be removed")
	}
}

func TestNamespace_PurgeLeavesOtherNamespaces(t *testing.T) {
	backend := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = backend.Close() }()

	challenges := NewNamespace[challenge](backend, "2fa:challenge:", time.Hour)
	settings := NewNamespace[map[string]string](backend, "settings:", time.Hour)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := challenges.Store(ctx, id, challenge{}); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}
	if err := settings.Store(ctx, "public", map[string]string{"site_name": "TEG Finance"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := challenges.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	for _, id := range []string{"1", "2", "3"} {
		if _, ok := challenges.Load(ctx, id); ok {
			t.Errorf("challenge %s survived Purge", id)
		}
	}
	if _, ok := settings.Load(ctx, "public"); !ok {
		t.Error("Purge should not touch other prefixes")
	}
}
