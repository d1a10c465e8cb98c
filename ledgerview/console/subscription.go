package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/ledgerview/propagate"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/ledgerview/views"
	"github.com/arthur-debert/ledgerview/types"
)

// Subscription is one open list screen. It reads rows from the shared view
// cache and keeps its own collapsed-group state.
type Subscription struct {
	console     *Console
	key         types.ViewKey
	cache       *views.ViewCache
	collapse    *grouping.CollapseState
	unsubscribe func()
	closeOnce   sync.Once
}

// Key returns the view key
func (s *Subscription) Key() types.ViewKey {
	return s.key
}

// Rows returns a snapshot of the view's rows
func (s *Subscription) Rows() []types.Record {
	var rows []types.Record
	s.console.registry.Read(s.cache, func(c *views.ViewCache) {
		rows = c.Rows()
	})
	return rows
}

// Groups partitions the current rows by the view's grouping mode
func (s *Subscription) Groups() []types.Group {
	return grouping.Group(s.Rows(), s.key.Grouping)
}

// Collapse returns the subscription's collapsed-group state
func (s *Subscription) Collapse() *grouping.CollapseState {
	return s.collapse
}

// Exhausted reports whether every page has been loaded
func (s *Subscription) Exhausted() bool {
	var done bool
	s.console.registry.Read(s.cache, func(c *views.ViewCache) {
		done = c.Exhausted()
	})
	return done
}

// LoadNextPage fetches the page after the cache's cursor and appends it.
// It returns the number of rows appended; zero once the view is exhausted.
func (s *Subscription) LoadNextPage(ctx context.Context) (int, error) {
	mu := s.console.loadLock(s.key)
	mu.Lock()
	defer mu.Unlock()

	var (
		cursor string
		drift  int
		done   bool
	)
	s.console.registry.Read(s.cache, func(c *views.ViewCache) {
		cursor, drift, done = c.Cursor(), c.Drift(), c.Exhausted()
	})
	if done {
		return 0, nil
	}

	// rows inserted or removed locally have shifted the server's offsets
	cursor, err := remote.ShiftCursor(cursor, drift)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.key, err)
	}
	req := remote.RequestFor(s.key, s.console.pageSize)
	req.Cursor = cursor
	page, err := s.console.svc.FetchPage(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", s.key, err)
	}

	var appended int
	s.console.registry.Write(s.cache, func(c *views.ViewCache) {
		appended = c.AppendPage(page.Rows, page.NextCursor, page.Done)
	})
	s.console.logger.Debug("page loaded", "view", s.key.String(), "rows", len(page.Rows), "appended", appended, "done", page.Done)
	return appended, nil
}

// LoadAll fetches pages until the view is exhausted
func (s *Subscription) LoadAll(ctx context.Context) error {
	for !s.Exhausted() {
		if _, err := s.LoadNextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Refresh drops the cached rows and loads the first page again
func (s *Subscription) Refresh(ctx context.Context) error {
	mu := s.console.loadLock(s.key)
	mu.Lock()
	s.console.registry.Write(s.cache, func(c *views.ViewCache) {
		c.Reset()
	})
	mu.Unlock()

	_, err := s.LoadNextPage(ctx)
	return err
}

// Close stops insert notifications for this subscription. The view cache
// itself stays registered.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.unsubscribe)
}

// onInsert expands the group a newly inserted record lands in, so the new
// row is visible
func (s *Subscription) onInsert(ev propagate.InsertEvent) {
	if ev.Record.Entity() != s.key.Entity {
		return
	}
	if s.console.filterMatching && !s.key.Filters.Matches(ev.Record) {
		return
	}
	key := ev.GroupKey(s.key.Grouping)
	if s.collapse.Expand(key) {
		s.console.logger.Debug("group expanded for new record", "view", s.key.String(), "group", key)
	}
}
