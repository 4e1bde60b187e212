// Package index owns the lifecycle of the search index: it opens the store
// once, in the background, and makes every caller wait for that single
// initialisation instead of racing their own.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"ccview/internal/logger"
	"ccview/internal/store"
)

// ErrUnavailable wraps the initialisation failure returned to every caller
// once opening the index has failed.
var ErrUnavailable = errors.New("search index unavailable")

type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Opener creates the underlying store. It runs at most once per Coordinator.
type Opener func() (*store.Store, error)

// StoreOpener opens the sqlite store at path for the corpus at projectsDir.
func StoreOpener(path, projectsDir string) Opener {
	return func() (*store.Store, error) {
		return store.Open(path, projectsDir)
	}
}

type Coordinator struct {
	open  Opener
	once  sync.Once
	done  chan struct{}
	state atomic.Int32

	store *store.Store
	err   error
}

func New(open Opener) *Coordinator {
	return &Coordinator{open: open, done: make(chan struct{})}
}

// Start begins initialisation in the background. Calling it again, or
// calling any operation, never starts a second initialisation.
func (c *Coordinator) Start() {
	c.once.Do(func() {
		c.state.Store(int32(Initializing))
		go c.init()
	})
}

func (c *Coordinator) init() {
	defer close(c.done)

	s, err := c.open()
	if err != nil {
		c.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		c.state.Store(int32(Failed))
		logger.Errorf("search index init failed: %v", err)
		return
	}
	c.store = s
	c.state.Store(int32(Ready))
	logger.Debugf("search index ready at %s", s.Path())
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Wait blocks until initialisation has finished (starting it if needed) and
// returns the store or the initialisation error.
func (c *Coordinator) Wait(ctx context.Context) (*store.Store, error) {
	c.Start()
	select {
	case <-c.done:
		return c.store, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) EnsureIndexed(ctx context.Context, projectID string) (store.SweepReport, error) {
	s, err := c.Wait(ctx)
	if err != nil {
		return store.SweepReport{}, err
	}
	return s.EnsureIndexed(ctx, projectID)
}

func (c *Coordinator) IndexConversation(ctx context.Context, projectID, conversationID string) error {
	s, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	return s.IndexConversation(ctx, projectID, conversationID)
}

func (c *Coordinator) RemoveConversation(ctx context.Context, projectID, conversationID string) error {
	s, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	return s.RemoveConversation(ctx, projectID, conversationID)
}

// IsStale treats an unavailable index as stale.
func (c *Coordinator) IsStale(ctx context.Context, projectID, conversationID string) bool {
	s, err := c.Wait(ctx)
	if err != nil {
		return true
	}
	return s.IsStale(ctx, projectID, conversationID)
}

// Search returns an empty, non-nil result alongside the error when the index
// is unavailable, so callers can show "no results" and move on.
func (c *Coordinator) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	s, err := c.Wait(ctx)
	if err != nil {
		return []store.SearchResult{}, err
	}
	return s.Search(ctx, query, limit)
}

func (c *Coordinator) Stats(ctx context.Context) (store.IndexStats, error) {
	s, err := c.Wait(ctx)
	if err != nil {
		return store.IndexStats{}, err
	}
	return s.Stats(ctx)
}

func (c *Coordinator) Reset(ctx context.Context) error {
	s, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	return s.Reset(ctx)
}

// Close waits for a pending initialisation and closes the store if it was
// opened. A coordinator that was never started has nothing to close.
func (c *Coordinator) Close() error {
	if c.State() == Uninitialized {
		return nil
	}
	<-c.done
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
