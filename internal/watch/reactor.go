// Package watch keeps the search index in step with the corpus while the
// process runs, by reacting to filesystem notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"ccview/internal/corpus"
	"ccview/internal/logger"
)

const DefaultDebounce = 500 * time.Millisecond

type EventType string

const (
	ConversationAdded   EventType = "conversation_added"
	ConversationUpdated EventType = "conversation_updated"
	ConversationDeleted EventType = "conversation_deleted"
	ProjectAdded        EventType = "project_added"
)

// Event describes one change the reactor handled. Delivery is best-effort:
// bursts are coalesced and nothing is replayed after a restart.
type Event struct {
	Type           EventType `json:"type"`
	ProjectID      string    `json:"projectId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Indexer is the part of the index the reactor drives.
type Indexer interface {
	IndexConversation(ctx context.Context, projectID, conversationID string) error
	RemoveConversation(ctx context.Context, projectID, conversationID string) error
}

type Options struct {
	// Debounce is how long a conversation must stay quiet before it is
	// re-indexed. Zero means DefaultDebounce.
	Debounce time.Duration
	OnEvent  func(Event)
}

type key struct {
	projectID      string
	conversationID string
}

type pending struct {
	due     time.Time
	created bool
}

type Reactor struct {
	root    string
	indexer Indexer
	opts    Options
	log     zerolog.Logger

	ready   chan struct{}
	pending map[key]*pending
}

func New(root string, indexer Indexer, opts Options) *Reactor {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Reactor{
		root:    filepath.Clean(root),
		indexer: indexer,
		opts:    opts,
		log:     logger.With("watch"),
		ready:   make(chan struct{}),
		pending: make(map[key]*pending),
	}
}

// Ready is closed once the initial watches are in place.
func (r *Reactor) Ready() <-chan struct{} {
	return r.ready
}

// Run watches the corpus until ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("create projects dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(r.root); err != nil {
		return fmt.Errorf("watch %s: %w", r.root, err)
	}
	projects, err := corpus.New(r.root).ProjectIDs()
	if err != nil {
		return err
	}
	for _, p := range projects {
		if err := w.Add(filepath.Join(r.root, p)); err != nil {
			r.log.Warn().Err(err).Str("project", p).Msg("cannot watch project")
		}
	}
	close(r.ready)
	r.log.Info().Str("root", r.root).Int("projects", len(projects)).Msg("watching")

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			r.handle(ctx, w, ev)
			r.rearm(timer)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			r.flush(ctx, time.Now())
			r.rearm(timer)
		}
	}
}

func (r *Reactor) handle(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(r.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if strings.HasPrefix(p, ".") {
			return
		}
	}

	switch len(parts) {
	case 1:
		if ev.Has(fsnotify.Create) {
			r.addProject(w, parts[0])
		}
	case 2:
		if !corpus.IsConversationFile(parts[1]) {
			return
		}
		k := key{parts[0], corpus.ConversationID(parts[1])}
		switch {
		case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
			r.remove(ctx, k)
		case ev.Has(fsnotify.Create):
			r.schedule(k, true)
		case ev.Has(fsnotify.Write):
			r.schedule(k, false)
		}
	}
}

// addProject starts watching a new project directory. Files written before
// the watch was added are picked up by listing the directory.
func (r *Reactor) addProject(w *fsnotify.Watcher, projectID string) {
	dir := filepath.Join(r.root, projectID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.Add(dir); err != nil {
		r.log.Warn().Err(err).Str("project", projectID).Msg("cannot watch project")
		return
	}
	r.emit(Event{Type: ProjectAdded, ProjectID: projectID})

	ids, err := corpus.New(r.root).ConversationIDs(projectID)
	if err != nil {
		return
	}
	for _, id := range ids {
		r.schedule(key{projectID, id}, true)
	}
}

func (r *Reactor) schedule(k key, created bool) {
	p, ok := r.pending[k]
	if !ok {
		p = &pending{}
		r.pending[k] = p
	}
	p.due = time.Now().Add(r.opts.Debounce)
	p.created = p.created || created
}

func (r *Reactor) rearm(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	var next time.Time
	for _, p := range r.pending {
		if next.IsZero() || p.due.Before(next) {
			next = p.due
		}
	}
	if !next.IsZero() {
		timer.Reset(time.Until(next))
	}
}

// flush indexes every conversation whose quiet period has elapsed.
func (r *Reactor) flush(ctx context.Context, now time.Time) {
	for k, p := range r.pending {
		if p.due.After(now) {
			continue
		}
		delete(r.pending, k)

		err := r.indexer.IndexConversation(ctx, k.projectID, k.conversationID)
		if errors.Is(err, corpus.ErrNotFound) {
			r.remove(ctx, k)
			continue
		}
		if err != nil {
			r.log.Warn().Err(err).
				Str("project", k.projectID).
				Str("conversation", k.conversationID).
				Msg("reindex failed")
			continue
		}

		typ := ConversationUpdated
		if p.created {
			typ = ConversationAdded
		}
		r.emit(Event{Type: typ, ProjectID: k.projectID, ConversationID: k.conversationID})
	}
}

func (r *Reactor) remove(ctx context.Context, k key) {
	delete(r.pending, k)
	if err := r.indexer.RemoveConversation(ctx, k.projectID, k.conversationID); err != nil {
		r.log.Warn().Err(err).
			Str("project", k.projectID).
			Str("conversation", k.conversationID).
			Msg("purge failed")
		return
	}
	r.emit(Event{Type: ConversationDeleted, ProjectID: k.projectID, ConversationID: k.conversationID})
}

func (r *Reactor) emit(ev Event) {
	ev.Timestamp = time.Now()
	r.log.Info().
		Str("event", string(ev.Type)).
		Str("project", ev.ProjectID).
		Str("conversation", ev.ConversationID).
		Msg("change handled")
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(ev)
	}
}
