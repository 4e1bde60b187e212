package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	mu      sync.Mutex
	indexed map[string]int
	removed map[string]int
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[string]int{}, removed: map[string]int{}}
}

func (f *fakeIndexer) IndexConversation(_ context.Context, projectID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[projectID+"/"+conversationID]++
	return nil
}

func (f *fakeIndexer) RemoveConversation(_ context.Context, projectID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[projectID+"/"+conversationID]++
	return nil
}

func (f *fakeIndexer) counts(k string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[k], f.removed[k]
}

func startReactor(t *testing.T, root string, idx Indexer) <-chan Event {
	t.Helper()
	events := make(chan Event, 64)
	r := New(root, idx, Options{
		Debounce: 50 * time.Millisecond,
		OnEvent:  func(ev Event) { events <- ev },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-r.Ready():
	case err := <-done:
		t.Fatalf("reactor exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("reactor not ready")
	}
	return events
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestReactor_IndexesNewConversationOnceAfterBurst(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "p"), 0o755))
	idx := newFakeIndexer()
	events := startReactor(t, root, idx)

	path := filepath.Join(root, "p", "c.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString(`{"type":"user","message":{"content":"hi"}}` + "\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	ev := nextEvent(t, events)
	assert.Equal(t, ConversationAdded, ev.Type)
	assert.Equal(t, "p", ev.ProjectID)
	assert.Equal(t, "c", ev.ConversationID)
	assert.False(t, ev.Timestamp.IsZero())

	indexed, _ := idx.counts("p/c")
	assert.Equal(t, 1, indexed)
}

func TestReactor_UpdateAndDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "p", "c.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	idx := newFakeIndexer()
	events := startReactor(t, root, idx)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ev := nextEvent(t, events)
	assert.Equal(t, ConversationUpdated, ev.Type)

	require.NoError(t, os.Remove(path))
	ev = nextEvent(t, events)
	assert.Equal(t, ConversationDeleted, ev.Type)
	assert.Equal(t, "c", ev.ConversationID)

	_, removed := idx.counts("p/c")
	assert.Equal(t, 1, removed)
}

func TestReactor_NewProjectDirectory(t *testing.T) {
	root := t.TempDir()
	idx := newFakeIndexer()
	events := startReactor(t, root, idx)

	dir := filepath.Join(root, "-home-me-app")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	ev := nextEvent(t, events)
	assert.Equal(t, ProjectAdded, ev.Type)
	assert.Equal(t, "-home-me-app", ev.ProjectID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.jsonl"), []byte("{}\n"), 0o644))
	ev = nextEvent(t, events)
	assert.Equal(t, ConversationAdded, ev.Type)
	assert.Equal(t, "-home-me-app", ev.ProjectID)
}

func TestReactor_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "p")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	idx := newFakeIndexer()
	events := startReactor(t, root, idx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.jsonl"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o755))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Empty(t, idx.indexed)
	assert.Empty(t, idx.removed)
}
