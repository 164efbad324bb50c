// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/tegsite/internal/cache"
	"github.com/olegiv/tegsite/internal/model"
	"github.com/olegiv/tegsite/internal/store"
	"github.com/olegiv/tegsite/internal/util"
)

const (
	navigationCachePrefix = "nav:"
	navigationTreeID      = "tree:visible"
	navigationTreeTTL     = 10 * time.Minute

	maxNavLabelLength = 100
	maxNavURLLength   = 500
)

// NavNode is a navigation item with its nested children, as served to the
// public site.
type NavNode struct {
	ID           int64     `json:"id"`
	Label        string    `json:"label"`
	URL          string    `json:"url"`
	PageID       *int64    `json:"pageId,omitempty"`
	ParentID     *int64    `json:"parentId,omitempty"`
	Position     int64     `json:"position"`
	IsVisible    bool      `json:"isVisible"`
	OpenInNewTab bool      `json:"openInNewTab"`
	Children     []NavNode `json:"children"`
}

// NavItemView is a flat navigation item for the admin UI.
type NavItemView struct {
	ID           int64     `json:"id"`
	Label        string    `json:"label"`
	URL          string    `json:"url"`
	PageID       *int64    `json:"pageId"`
	PageSlug     *string   `json:"pageSlug"`
	ParentID     *int64    `json:"parentId"`
	Position     int64     `json:"position"`
	IsVisible    bool      `json:"isVisible"`
	OpenInNewTab bool      `json:"openInNewTab"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NavItemInput holds the editable fields of a navigation item.
type NavItemInput struct {
	Label        string `json:"label"`
	URL          string `json:"url"`
	PageID       *int64 `json:"pageId"`
	ParentID     *int64 `json:"parentId"`
	Position     int64  `json:"position"`
	IsVisible    bool   `json:"isVisible"`
	OpenInNewTab bool   `json:"openInNewTab"`
}

// NewNavItemInput returns the defaults for a new item.
func NewNavItemInput() NavItemInput {
	return NavItemInput{IsVisible: true}
}

// Input returns the editable fields of v, for partial updates.
func (v NavItemView) Input() NavItemInput {
	return NavItemInput{
		Label:        v.Label,
		URL:          v.URL,
		PageID:       v.PageID,
		ParentID:     v.ParentID,
		Position:     v.Position,
		IsVisible:    v.IsVisible,
		OpenInNewTab: v.OpenInNewTab,
	}
}

// NavMove is one entry of a reorder request.
type NavMove struct {
	ID       int64  `json:"id"`
	Position int64  `json:"position"`
	ParentID *int64 `json:"parentId"`
}

// NavigationService manages the navigation tree.
type NavigationService struct {
	db        *sql.DB
	queries   *store.Queries
	sanitizer *Sanitizer
	events    *EventService
	tree      *cache.Namespace[[]NavNode]
	logger    *slog.Logger
}

// NewNavigationService creates a NavigationService. The visible tree is
// cached in c.
func NewNavigationService(db *sql.DB, c cache.Cache, sanitizer *Sanitizer, events *EventService, logger *slog.Logger) *NavigationService {
	return &NavigationService{
		db:        db,
		queries:   store.New(db),
		sanitizer: sanitizer,
		events:    events,
		tree:      cache.NewNamespace[[]NavNode](c, navigationCachePrefix, navigationTreeTTL),
		logger:    logger,
	}
}

// ResolveNavigationTree returns the navigation as a tree. With visibleOnly,
// hidden items are left out and their children move to the top level; that
// tree is served from cache.
func (s *NavigationService) ResolveNavigationTree(ctx context.Context, visibleOnly bool) ([]NavNode, error) {
	if !visibleOnly {
		items, err := s.queries.ListNavigationItems(ctx)
		if err != nil {
			return nil, err
		}
		return BuildNavigationTree(items, false), nil
	}

	return s.tree.Fetch(ctx, navigationTreeID, func(ctx context.Context) ([]NavNode, error) {
		items, err := s.queries.ListNavigationItems(ctx)
		if err != nil {
			return nil, err
		}
		return BuildNavigationTree(items, true), nil
	})
}

// InvalidateCache drops the cached visible tree.
func (s *NavigationService) InvalidateCache(ctx context.Context) {
	if err := s.tree.Forget(ctx, navigationTreeID); err != nil {
		s.logger.Warn("failed to invalidate navigation cache", "error", err)
	}
}

// BuildNavigationTree nests items under their parents, keeping input order
// among siblings. Items whose parent is missing (or hidden, with
// visibleOnly) are placed at the top level. No item appears twice, so the
// result is acyclic even when the stored parent links are not.
func BuildNavigationTree(items []store.NavigationItem, visibleOnly bool) []NavNode {
	included := make(map[int64]bool, len(items))
	for _, item := range items {
		if !visibleOnly || item.IsVisible {
			included[item.ID] = true
		}
	}

	children := make(map[int64][]store.NavigationItem)
	var roots []store.NavigationItem
	for _, item := range items {
		if !included[item.ID] {
			continue
		}
		parent := item.ParentID.Int64
		if item.ParentID.Valid && parent != item.ID && included[parent] {
			children[parent] = append(children[parent], item)
		} else {
			roots = append(roots, item)
		}
	}

	visited := make(map[int64]bool, len(included))
	var build func(item store.NavigationItem) NavNode
	build = func(item store.NavigationItem) NavNode {
		visited[item.ID] = true
		node := navNode(item)
		for _, child := range children[item.ID] {
			if !visited[child.ID] {
				node.Children = append(node.Children, build(child))
			}
		}
		return node
	}

	tree := make([]NavNode, 0, len(roots))
	for _, item := range roots {
		if !visited[item.ID] {
			tree = append(tree, build(item))
		}
	}

	// Members of a parent cycle are never reached from a root.
	for _, item := range items {
		if included[item.ID] && !visited[item.ID] {
			tree = append(tree, build(item))
		}
	}
	return tree
}

func navNode(item store.NavigationItem) NavNode {
	return NavNode{
		ID:           item.ID,
		Label:        item.Label,
		URL:          navURL(item),
		PageID:       util.Int64PtrFromNull(item.PageID),
		ParentID:     util.Int64PtrFromNull(item.ParentID),
		Position:     item.Position,
		IsVisible:    item.IsVisible,
		OpenInNewTab: item.OpenInNewTab,
		Children:     []NavNode{},
	}
}

// navURL prefers the linked page over the stored URL.
func navURL(item store.NavigationItem) string {
	if item.PageID.Valid && item.PageSlug.Valid {
		return "/page/" + item.PageSlug.String
	}
	return item.Url
}

func navItemView(item store.NavigationItem) NavItemView {
	return NavItemView{
		ID:           item.ID,
		Label:        item.Label,
		URL:          item.Url,
		PageID:       util.Int64PtrFromNull(item.PageID),
		PageSlug:     util.StringPtrFromNull(item.PageSlug),
		ParentID:     util.Int64PtrFromNull(item.ParentID),
		Position:     item.Position,
		IsVisible:    item.IsVisible,
		OpenInNewTab: item.OpenInNewTab,
		CreatedAt:    item.CreatedAt,
	}
}

// List returns every item, flat, in display order.
func (s *NavigationService) List(ctx context.Context) ([]NavItemView, error) {
	items, err := s.queries.ListNavigationItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NavItemView, 0, len(items))
	for _, item := range items {
		out = append(out, navItemView(item))
	}
	return out, nil
}

// Get returns one item.
func (s *NavigationService) Get(ctx context.Context, id int64) (NavItemView, error) {
	item, err := s.queries.GetNavigationItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return NavItemView{}, ErrNotFound
	}
	if err != nil {
		return NavItemView{}, err
	}
	return navItemView(item), nil
}

// Create adds a navigation item.
func (s *NavigationService) Create(ctx context.Context, in NavItemInput, actor Actor) (NavItemView, error) {
	in = s.clean(in)
	if err := validateNavItem(in); err != nil {
		return NavItemView{}, err
	}

	var item store.NavigationItem
	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		if err := checkNavReferences(ctx, q, 0, in); err != nil {
			return err
		}
		id, err := q.CreateNavigationItem(ctx, store.CreateNavigationItemParams{
			Label:        in.Label,
			Url:          in.URL,
			PageID:       util.NullInt64FromPtr(in.PageID),
			ParentID:     util.NullInt64FromPtr(in.ParentID),
			Position:     in.Position,
			IsVisible:    in.IsVisible,
			OpenInNewTab: in.OpenInNewTab,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("creating navigation item: %w", err)
		}
		item, err = q.GetNavigationItem(ctx, id)
		return err
	})
	if err != nil {
		return NavItemView{}, err
	}

	s.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryNavigation, "Navigation item created",
		map[string]any{"item_id": item.ID, "label": item.Label})
	return navItemView(item), nil
}

// Update replaces the editable fields of item id.
func (s *NavigationService) Update(ctx context.Context, id int64, in NavItemInput, actor Actor) (NavItemView, error) {
	in = s.clean(in)
	if err := validateNavItem(in); err != nil {
		return NavItemView{}, err
	}

	var item store.NavigationItem
	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		if _, err := q.GetNavigationItem(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if err := checkNavReferences(ctx, q, id, in); err != nil {
			return err
		}
		if err := q.UpdateNavigationItem(ctx, store.UpdateNavigationItemParams{
			ID:           id,
			Label:        in.Label,
			Url:          in.URL,
			PageID:       util.NullInt64FromPtr(in.PageID),
			ParentID:     util.NullInt64FromPtr(in.ParentID),
			Position:     in.Position,
			IsVisible:    in.IsVisible,
			OpenInNewTab: in.OpenInNewTab,
		}); err != nil {
			return fmt.Errorf("updating navigation item: %w", err)
		}
		var err error
		item, err = q.GetNavigationItem(ctx, id)
		return err
	})
	if err != nil {
		return NavItemView{}, err
	}

	s.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryNavigation, "Navigation item updated",
		map[string]any{"item_id": id, "label": item.Label})
	return navItemView(item), nil
}

// Delete removes item id together with its descendants.
func (s *NavigationService) Delete(ctx context.Context, id int64, actor Actor) error {
	n, err := s.queries.DeleteNavigationItem(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting navigation item: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryNavigation, "Navigation item deleted",
		map[string]any{"item_id": id})
	return nil
}

// Reorder applies new positions and parents in one transaction. The
// request is rejected as a whole when it names an unknown item or would
// leave a parent cycle.
func (s *NavigationService) Reorder(ctx context.Context, moves []NavMove, actor Actor) error {
	if len(moves) == 0 {
		return fieldError("items", "at least one item is required")
	}

	err := store.WithTx(ctx, s.db, func(q *store.Queries) error {
		items, err := q.ListNavigationItems(ctx)
		if err != nil {
			return err
		}
		parents := make(map[int64]*int64, len(items))
		for _, item := range items {
			parents[item.ID] = util.Int64PtrFromNull(item.ParentID)
		}

		verr := NewValidationError()
		for _, m := range moves {
			if _, ok := parents[m.ID]; !ok {
				verr.Add("items", fmt.Sprintf("unknown navigation item %d", m.ID))
				continue
			}
			if m.ParentID != nil {
				if _, ok := parents[*m.ParentID]; !ok {
					verr.Add("parentId", fmt.Sprintf("unknown parent %d", *m.ParentID))
					continue
				}
			}
			parents[m.ID] = m.ParentID
		}
		if err := verr.Err(); err != nil {
			return err
		}
		if hasParentCycle(parents) {
			return fieldError("parentId", "the new order would create a cycle")
		}

		for _, m := range moves {
			if _, err := q.MoveNavigationItem(ctx, store.MoveNavigationItemParams{
				ID:       m.ID,
				ParentID: util.NullInt64FromPtr(m.ParentID),
				Position: m.Position,
			}); err != nil {
				return fmt.Errorf("moving navigation item %d: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.InvalidateCache(ctx)
	s.events.Record(ctx, actor, model.EventCategoryNavigation, "Navigation reordered",
		map[string]any{"count": len(moves)})
	return nil
}

func (s *NavigationService) clean(in NavItemInput) NavItemInput {
	in.Label = s.sanitizer.Text(in.Label)
	in.URL = strings.TrimSpace(in.URL)
	return in
}

func validateNavItem(in NavItemInput) error {
	verr := NewValidationError()
	if in.Label == "" {
		verr.Add("label", "label is required")
	} else if len([]rune(in.Label)) > maxNavLabelLength {
		verr.Add("label", fmt.Sprintf("label must be at most %d characters", maxNavLabelLength))
	}
	if len(in.URL) > maxNavURLLength {
		verr.Add("url", fmt.Sprintf("url must be at most %d characters", maxNavURLLength))
	} else if in.URL != "" && !isSafeNavURL(in.URL) {
		verr.Add("url", "url must be a relative path or an http(s), mailto or tel link")
	}
	return verr.Err()
}

// isSafeNavURL accepts site-relative links, fragments and a few schemes.
func isSafeNavURL(raw string) bool {
	if strings.HasPrefix(raw, "//") {
		return false
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "#") {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto", "tel":
		return u.Opaque != ""
	}
	return false
}

// checkNavReferences verifies the page and parent of an item. id is zero
// for a new item.
func checkNavReferences(ctx context.Context, q *store.Queries, id int64, in NavItemInput) error {
	if in.PageID != nil {
		if _, err := q.GetPageByID(ctx, *in.PageID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fieldError("pageId", "page not found")
			}
			return err
		}
	}
	if in.ParentID == nil {
		return nil
	}
	if *in.ParentID == id {
		return fieldError("parentId", "an item cannot be its own parent")
	}

	items, err := q.ListNavigationItems(ctx)
	if err != nil {
		return err
	}
	parents := make(map[int64]*int64, len(items)+1)
	for _, item := range items {
		parents[item.ID] = util.Int64PtrFromNull(item.ParentID)
	}
	if _, ok := parents[*in.ParentID]; !ok {
		return fieldError("parentId", "parent not found")
	}
	if id != 0 {
		parents[id] = in.ParentID
		if hasParentCycle(parents) {
			return fieldError("parentId", "an item cannot be nested under its own descendant")
		}
	}
	return nil
}

// hasParentCycle reports whether following parent links from any node
// returns to a node already on the path.
func hasParentCycle(parents map[int64]*int64) bool {
	done := make(map[int64]bool, len(parents))
	for start := range parents {
		path := make(map[int64]bool)
		for id := start; ; {
			if done[id] {
				break
			}
			if path[id] {
				return true
			}
			path[id] = true
			p, ok := parents[id]
			if !ok || p == nil {
				break
			}
			id = *p
		}
		for id := range path {
			done[id] = true
		}
	}
	return false
}
