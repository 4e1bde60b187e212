package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, root, project, id string, lines ...string) string {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, id+Ext)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestIsConversationFile(t *testing.T) {
	assert.True(t, IsConversationFile("abc.jsonl"))
	assert.False(t, IsConversationFile(".abc.jsonl"))
	assert.False(t, IsConversationFile("abc.json"))
	assert.False(t, IsConversationFile("abc.jsonl.tmp"))
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
	for _, id := range []string{"-home-me-app", "4f9c-11aa", "a..b"} {
		assert.NoError(t, ValidateID(id), id)
	}

	c := New(t.TempDir())
	_, err := c.ConversationPath("proj", "../../secret")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestListProjects(t *testing.T) {
	root := t.TempDir()
	c := New(root)

	writeLog(t, root, "-home-me-old", "c1", `{"type":"user","message":{"content":"hi"}}`)
	writeLog(t, root, "-home-me-new", "c1", `{"type":"user","message":{"content":"hi"}}`)
	writeLog(t, root, "-home-me-new", "c2", `{"type":"user","message":{"content":"hi"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "-home-me-new", "notes.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.jsonl"), nil, 0o644))

	now := time.Now()
	touch(t, filepath.Join(root, "-home-me-old"), now.Add(-time.Hour))
	touch(t, filepath.Join(root, "-home-me-new"), now)

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)

	assert.Equal(t, "-home-me-new", projects[0].ID)
	assert.Equal(t, "new", projects[0].Name)
	assert.Equal(t, "/home/me/new", projects[0].Path)
	assert.Equal(t, 2, projects[0].ConversationCount)
	assert.Equal(t, "-home-me-old", projects[1].ID)
}

func TestListProjects_MissingRoot(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent"))
	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestProjectIDs_FollowsSymlinkedDirectories(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	writeLog(t, elsewhere, "real", "c1", `{"type":"user","message":{"content":"hi"}}`)
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "real"), filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "real", "c1"+Ext), filepath.Join(root, "file-link")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "gone"), filepath.Join(root, "dangling")))

	c := New(root)
	ids, err := c.ProjectIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"linked"}, ids)

	convs, err := c.ConversationIDs("linked")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, convs)
}

func TestListConversations(t *testing.T) {
	root := t.TempDir()
	c := New(root)

	older := writeLog(t, root, "p", "older",
		`{"type":"user","timestamp":"2025-01-01T10:00:00Z","message":{"content":"first question"}}`,
		`{"type":"assistant","timestamp":"2025-01-01T10:00:05Z","message":{"model":"m-1","content":[{"type":"text","text":"a"}]}}`,
		`{"type":"progress","timestamp":"2025-01-01T10:00:06Z"}`,
		`broken`,
		`{"type":"assistant","timestamp":"2025-01-01T10:00:09Z","message":{"model":"m-2","content":[]}}`,
	)
	newer := writeLog(t, root, "p", "newer",
		`{"type":"user","message":{"content":[{"type":"text","text":"blocks"}]}}`,
	)
	now := time.Now()
	touch(t, older, now.Add(-time.Hour))
	touch(t, newer, now)

	convs, err := c.ListConversations(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, "newer", convs[0].ID)
	assert.Empty(t, convs[0].FirstMessage)

	o := convs[1]
	assert.Equal(t, "older", o.ID)
	assert.Equal(t, "p", o.ProjectID)
	assert.Equal(t, "first question", o.FirstMessage)
	assert.Equal(t, 3, o.MessageCount)
	assert.Equal(t, "2025-01-01T10:00:00Z", o.Timestamp)
	assert.Equal(t, "m-1", o.Model)
	assert.Positive(t, o.SizeBytes)

	_, err = c.ListConversations(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadConversation_NotFound(t *testing.T) {
	root := t.TempDir()
	c := New(root)
	path := writeLog(t, root, "p", "c", `{"type":"user","message":{"content":"hi"}}`)

	data, err := c.ReadConversation("p", "c")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	require.NoError(t, os.Remove(path))
	_, err = c.ReadConversation("p", "c")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Conversation("p", "c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadConversation(t *testing.T) {
	root := t.TempDir()
	c := New(root)
	writeLog(t, root, "p", "ok", `{"type":"user","sessionId":"s","message":{"content":"hi"}}`)
	writeLog(t, root, "p", "bad", `nope`, `{also nope`)

	conv, err := c.LoadConversation("p", "ok")
	require.NoError(t, err)
	assert.Equal(t, "s", conv.SessionID)
	assert.Len(t, conv.Messages, 1)

	_, err = c.LoadConversation("p", "bad")
	assert.Error(t, err)
}

func TestFirstUserMessage(t *testing.T) {
	long := strings.Repeat("é", 150)
	data := []byte(strings.Join([]string{
		`{"type":"assistant","message":{"content":"x"}}`,
		`{"type":"user","message":{"content":""}}`,
		`{"type":"user","message":{"content":"` + long + `"}}`,
	}, "\n"))
	assert.Equal(t, strings.Repeat("é", 100), FirstUserMessage(data))

	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, `{"type":"progress"}`)
	}
	lines = append(lines, `{"type":"user","message":{"content":"too late"}}`)
	assert.Empty(t, FirstUserMessage([]byte(strings.Join(lines, "\n"))))
}

func TestFolderNameToPath(t *testing.T) {
	assert.Equal(t, "C:/Users/john/projects/myapp", FolderNameToPath("C--Users-john-projects-myapp"))
	assert.Equal(t, "/home/me/app", FolderNameToPath("-home-me-app"))
	assert.Equal(t, "myapp", DisplayName("C--Users-john-projects-myapp"))
	assert.Equal(t, "trailing-", DisplayName("trailing-"))
}
