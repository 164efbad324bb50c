// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/testutil"
)

func createPage(t *testing.T, pages *PageService, slug, title string, published bool) PageView {
	t.Helper()
	p, err := pages.Create(context.Background(), PageInput{Slug: slug, Title: title, IsPublished: published}, Actor{})
	require.NoError(t, err)
	return p
}

func TestPageCreate_DerivesSlugAndSanitizes(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	admin := testutil.CreateUser(t, env.db, "admin", testPassword)

	p, err := pages.Create(context.Background(), PageInput{
		Title:   "Tax Services & Planning",
		Content: `<p onclick="x()">Hello</p><script>alert(1)</script>`,
	}, Actor{UserID: admin.ID})
	require.NoError(t, err)

	assert.Equal(t, "tax-services-planning", p.Slug)
	assert.Equal(t, "Tax Services & Planning", p.Title)
	assert.Equal(t, "<p>Hello</p>", p.Content)
	assert.Equal(t, "en", p.Language)
	assert.False(t, p.IsPublished)

	events, err := env.events.ListEvents(context.Background(), "page", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Page created", events[0].Message)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, admin.ID, *events[0].UserID)
}

func TestPageCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	missing := int64(999)

	tests := []struct {
		name  string
		in    PageInput
		field string
	}{
		{"missing title", PageInput{Slug: "about"}, "title"},
		{"bad slug", PageInput{Title: "About", Slug: "About Us"}, "slug"},
		{"slug from symbols only", PageInput{Title: "!!!"}, "slug"},
		{"unknown hero image", PageInput{Title: "About", HeroImageID: &missing}, "heroImageId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pages.Create(context.Background(), tt.in, Actor{})
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, validationFields(t, err), tt.field)
		})
	}
	assert.Equal(t, 0, countRows(t, env.db, "pages"))
}

func TestPageSlugConflict(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	ctx := context.Background()

	original := createPage(t, pages, "tax-services", "Tax Services", true)

	_, err := pages.Create(ctx, PageInput{Slug: "tax-services", Title: "Another"}, Actor{})
	require.ErrorIs(t, err, ErrSlugConflict)

	other := createPage(t, pages, "advisory", "Advisory", false)
	in := other.Input()
	in.Slug = "tax-services"
	_, err = pages.Update(ctx, other.ID, in, Actor{})
	require.ErrorIs(t, err, ErrSlugConflict)

	got, err := pages.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tax Services", got.Title)
	assert.Equal(t, "tax-services", got.Slug)

	got, err = pages.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "advisory", got.Slug, "failed update leaves the page untouched")
	assert.Equal(t, 2, countRows(t, env.db, "pages"))
}

func TestPageUpdate_KeepsOwnSlug(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	p := createPage(t, pages, "about", "About", false)

	in := p.Input()
	in.Title = "About Us"
	updated, err := pages.Update(context.Background(), p.ID, in, Actor{})
	require.NoError(t, err)
	assert.Equal(t, "about", updated.Slug)
	assert.Equal(t, "About Us", updated.Title)

	_, err = pages.Update(context.Background(), 12345, in, Actor{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPagePublishing(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	ctx := context.Background()
	p := createPage(t, pages, "careers", "Careers", false)

	_, err := pages.GetPublishedBySlug(ctx, "careers")
	require.ErrorIs(t, err, ErrNotFound, "drafts are hidden")

	published, err := pages.TogglePublish(ctx, p.ID, Actor{})
	require.NoError(t, err)
	assert.True(t, published)

	got, err := pages.GetPublishedBySlug(ctx, "careers")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	published, err = pages.TogglePublish(ctx, p.ID, Actor{})
	require.NoError(t, err)
	assert.False(t, published)

	_, err = pages.TogglePublish(ctx, 999, Actor{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListServicePages(t *testing.T) {
	env := newTestEnv(t)
	pages := env.pages(env.navigation())
	ctx := context.Background()

	for _, in := range []PageInput{
		{Title: "Payroll", IsServicePage: true, IsPublished: true, ServiceOrder: 2},
		{Title: "Bookkeeping", IsServicePage: true, IsPublished: true, ServiceOrder: 1},
		{Title: "Audit", IsServicePage: true, IsPublished: true, ServiceOrder: 2},
		{Title: "Draft Service", IsServicePage: true, ServiceOrder: 0},
		{Title: "About", IsPublished: true},
	} {
		_, err := pages.Create(ctx, in, Actor{})
		require.NoError(t, err)
	}

	services, err := pages.ListServicePages(ctx)
	require.NoError(t, err)
	titles := make([]string, 0, len(services))
	for _, s := range services {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Bookkeeping", "Audit", "Payroll"}, titles)
}

func TestPageDelete_NullsNavigationReference(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	pages := env.pages(nav)
	ctx := context.Background()

	p := createPage(t, pages, "tax-services", "Tax Services", true)
	in := NewNavItemInput()
	in.Label = "Tax"
	in.PageID = &p.ID
	item, err := nav.Create(ctx, in, Actor{})
	require.NoError(t, err)

	tree, err := nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "/page/tax-services", tree[0].URL)

	require.NoError(t, pages.Delete(ctx, p.ID, Actor{}))

	got, err := nav.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PageID)

	tree, err = nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "", tree[0].URL, "deleting the page invalidates the cached tree")

	assert.ErrorIs(t, pages.Delete(ctx, p.ID, Actor{}), ErrNotFound)
}

func navItem(id int64, parent int64, visible bool) store.NavigationItem {
	item := store.NavigationItem{ID: id, Label: "item", IsVisible: visible, Position: id}
	if parent != 0 {
		item.ParentID = sql.NullInt64{Int64: parent, Valid: true}
	}
	return item
}

// flatten walks the tree and returns ids in visit order.
func flatten(nodes []NavNode) []int64 {
	var ids []int64
	for _, n := range nodes {
		ids = append(ids, n.ID)
		ids = append(ids, flatten(n.Children)...)
	}
	return ids
}

func TestBuildNavigationTree(t *testing.T) {
	tests := []struct {
		name        string
		items       []store.NavigationItem
		visibleOnly bool
		roots       []int64
		order       []int64
	}{
		{
			name:  "nested",
			items: []store.NavigationItem{navItem(1, 0, true), navItem(2, 1, true), navItem(3, 2, true), navItem(4, 0, true)},
			roots: []int64{1, 4},
			order: []int64{1, 2, 3, 4},
		},
		{
			name:  "orphan becomes top level",
			items: []store.NavigationItem{navItem(1, 0, true), navItem(2, 99, true)},
			roots: []int64{1, 2},
			order: []int64{1, 2},
		},
		{
			name:        "child of hidden parent becomes top level",
			items:       []store.NavigationItem{navItem(1, 0, false), navItem(2, 1, true)},
			visibleOnly: true,
			roots:       []int64{2},
			order:       []int64{2},
		},
		{
			name:  "hidden items kept for admin view",
			items: []store.NavigationItem{navItem(1, 0, false), navItem(2, 1, true)},
			roots: []int64{1},
			order: []int64{1, 2},
		},
		{
			name:  "two-node cycle emitted once",
			items: []store.NavigationItem{navItem(1, 2, true), navItem(2, 1, true), navItem(3, 0, true)},
			roots: []int64{3, 1},
			order: []int64{3, 1, 2},
		},
		{
			name:  "self parent",
			items: []store.NavigationItem{navItem(1, 1, true)},
			roots: []int64{1},
			order: []int64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := BuildNavigationTree(tt.items, tt.visibleOnly)

			roots := make([]int64, 0, len(tree))
			for _, n := range tree {
				roots = append(roots, n.ID)
			}
			assert.Equal(t, tt.roots, roots)
			assert.Equal(t, tt.order, flatten(tree))
		})
	}
}

func TestNavURLPrefersPage(t *testing.T) {
	item := store.NavigationItem{
		Url:      "https://example.com",
		PageID:   sql.NullInt64{Int64: 1, Valid: true},
		PageSlug: sql.NullString{String: "about", Valid: true},
	}
	assert.Equal(t, "/page/about", navURL(item))

	item.PageID = sql.NullInt64{}
	assert.Equal(t, "https://example.com", navURL(item))
}

func createNav(t *testing.T, nav *NavigationService, label string, parent *int64, position int64) NavItemView {
	t.Helper()
	in := NewNavItemInput()
	in.Label = label
	in.URL = "/" + label
	in.ParentID = parent
	in.Position = position
	item, err := nav.Create(context.Background(), in, Actor{})
	require.NoError(t, err)
	return item
}

func TestNavigationCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	missing := int64(42)

	tests := []struct {
		name  string
		in    NavItemInput
		field string
	}{
		{"missing label", NavItemInput{URL: "/x"}, "label"},
		{"javascript url", NavItemInput{Label: "x", URL: "javascript:alert(1)"}, "url"},
		{"protocol relative url", NavItemInput{Label: "x", URL: "//evil.example"}, "url"},
		{"unknown page", NavItemInput{Label: "x", PageID: &missing}, "pageId"},
		{"unknown parent", NavItemInput{Label: "x", ParentID: &missing}, "parentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := nav.Create(context.Background(), tt.in, Actor{})
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, validationFields(t, err), tt.field)
		})
	}
}

func TestIsSafeNavURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"/contact", true},
		{"#services", true},
		{"https://example.com/x", true},
		{"http://example.com", true},
		{"mailto:info@example.com", true},
		{"tel:+15551234567", true},
		{"https://", false},
		{"javascript:alert(1)", false},
		{"data:text/html,hi", false},
		{"//example.com", false},
		{"relative/path", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, isSafeNavURL(tt.url))
		})
	}
}

func TestNavigationUpdate_RejectsCycle(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	ctx := context.Background()

	parent := createNav(t, nav, "services", nil, 0)
	child := createNav(t, nav, "tax", &parent.ID, 0)

	in := parent.Input()
	in.ParentID = &child.ID
	_, err := nav.Update(ctx, parent.ID, in, Actor{})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, validationFields(t, err), "parentId")

	in.ParentID = &parent.ID
	_, err = nav.Update(ctx, parent.ID, in, Actor{})
	require.ErrorIs(t, err, ErrValidation)

	got, err := nav.Get(ctx, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	_, err = nav.Update(ctx, 999, NavItemInput{Label: "x"}, Actor{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNavigationReorder(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	ctx := context.Background()

	a := createNav(t, nav, "a", nil, 0)
	b := createNav(t, nav, "b", nil, 1)
	c := createNav(t, nav, "c", nil, 2)

	// Prime the cache, then reorder: c first, b under c.
	_, err := nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)

	require.NoError(t, nav.Reorder(ctx, []NavMove{
		{ID: c.ID, Position: 0},
		{ID: a.ID, Position: 1},
		{ID: b.ID, Position: 0, ParentID: &c.ID},
	}, Actor{}))

	tree, err := nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, c.ID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, b.ID, tree[0].Children[0].ID)
	assert.Equal(t, a.ID, tree[1].ID)
}

func TestNavigationReorder_RejectsWholeRequest(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	ctx := context.Background()

	a := createNav(t, nav, "a", nil, 0)
	b := createNav(t, nav, "b", &a.ID, 0)
	unknown := int64(777)

	tests := []struct {
		name  string
		moves []NavMove
	}{
		{"empty", nil},
		{"cycle", []NavMove{{ID: a.ID, Position: 5, ParentID: &b.ID}}},
		{"unknown id", []NavMove{{ID: b.ID, Position: 3}, {ID: unknown, Position: 0}}},
		{"unknown parent", []NavMove{{ID: b.ID, Position: 3, ParentID: &unknown}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nav.Reorder(ctx, tt.moves, Actor{})
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	gotA, err := nav.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotA.Position)
	assert.Nil(t, gotA.ParentID)
	gotB, err := nav.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gotB.Position)
}

func TestNavigationDelete_Cascades(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	ctx := context.Background()

	parent := createNav(t, nav, "services", nil, 0)
	child := createNav(t, nav, "tax", &parent.ID, 0)
	createNav(t, nav, "about", nil, 1)

	require.NoError(t, nav.Delete(ctx, parent.ID, Actor{}))

	_, err := nav.Get(ctx, child.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := nav.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "about", items[0].Label)

	assert.ErrorIs(t, nav.Delete(ctx, parent.ID, Actor{}), ErrNotFound)
}

func TestNavigationTreeCache(t *testing.T) {
	env := newTestEnv(t)
	nav := env.navigation()
	ctx := context.Background()

	createNav(t, nav, "home", nil, 0)
	tree, err := nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	require.Len(t, tree, 1)

	// A write behind the service's back is not seen until invalidation.
	_, err = store.New(env.db).CreateNavigationItem(ctx, store.CreateNavigationItemParams{
		Label: "raw", IsVisible: true, Position: 5, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	tree, err = nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	assert.Len(t, tree, 1)

	nav.InvalidateCache(ctx)
	tree, err = nav.ResolveNavigationTree(ctx, true)
	require.NoError(t, err)
	assert.Len(t, tree, 2)
}
