// Package corpus knows the on-disk layout of conversation logs: one directory
// per project under a root, one .jsonl file per conversation.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ccview/internal/logger"
	"ccview/internal/transcript"
)

const Ext = ".jsonl"

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

type Project struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Path              string    `json:"path"`
	ConversationCount int       `json:"conversationCount"`
	LastModified      time.Time `json:"lastModified"`
}

type ConversationInfo struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	FirstMessage string    `json:"firstMessage,omitempty"`
	MessageCount int       `json:"messageCount"`
	Timestamp    string    `json:"timestamp,omitempty"`
	LastModified time.Time `json:"lastModified"`
	SizeBytes    int64     `json:"sizeBytes"`
	Model        string    `json:"model,omitempty"`
}

type Corpus struct {
	root string
}

func New(root string) *Corpus {
	return &Corpus{root: filepath.Clean(root)}
}

func (c *Corpus) Root() string {
	return c.root
}

// IsConversationFile reports whether a directory entry name is a
// conversation log.
func IsConversationFile(name string) bool {
	return strings.HasSuffix(name, Ext) && !strings.HasPrefix(name, ".")
}

// ConversationID strips the log extension from a file name.
func ConversationID(name string) string {
	return strings.TrimSuffix(name, Ext)
}

// ValidateID rejects ids that could escape the corpus root.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (c *Corpus) ProjectPath(projectID string) (string, error) {
	if err := ValidateID(projectID); err != nil {
		return "", err
	}
	return filepath.Join(c.root, projectID), nil
}

func (c *Corpus) ConversationPath(projectID, conversationID string) (string, error) {
	dir, err := c.ProjectPath(projectID)
	if err != nil {
		return "", err
	}
	if err := ValidateID(conversationID); err != nil {
		return "", err
	}
	return filepath.Join(dir, conversationID+Ext), nil
}

// ProjectIDs lists the project directory names under the root. A missing
// root is an empty corpus.
func (c *Corpus) ProjectIDs() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() || c.isDirLink(e) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// isDirLink reports whether e is a symlink that resolves to a directory.
func (c *Corpus) isDirLink(e fs.DirEntry) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(c.root, e.Name()))
	return err == nil && info.IsDir()
}

// ConversationIDs lists the conversation ids in one project.
func (c *Corpus) ConversationIDs(projectID string) ([]string, error) {
	dir, err := c.ProjectPath(projectID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", projectID, err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() && IsConversationFile(e.Name()) {
			ids = append(ids, ConversationID(e.Name()))
		}
	}
	return ids, nil
}

func (c *Corpus) Project(projectID string) (Project, error) {
	dir, err := c.ProjectPath(projectID)
	if err != nil {
		return Project{}, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return Project{}, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("stat project %s: %w", projectID, err)
	}

	ids, err := c.ConversationIDs(projectID)
	if err != nil {
		return Project{}, err
	}
	return Project{
		ID:                projectID,
		Name:              DisplayName(projectID),
		Path:              FolderNameToPath(projectID),
		ConversationCount: len(ids),
		LastModified:      info.ModTime(),
	}, nil
}

// ListProjects returns every readable project, newest first.
func (c *Corpus) ListProjects(ctx context.Context) ([]Project, error) {
	ids, err := c.ProjectIDs()
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := c.Project(id)
		if err != nil {
			logger.Warnf("skipping project %s: %v", id, err)
			continue
		}
		projects = append(projects, p)
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// Conversation summarises one conversation without fully parsing it.
func (c *Corpus) Conversation(projectID, conversationID string) (ConversationInfo, error) {
	path, err := c.ConversationPath(projectID, conversationID)
	if err != nil {
		return ConversationInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ConversationInfo{}, notFound(err, projectID, conversationID)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ConversationInfo{}, notFound(err, projectID, conversationID)
	}

	meta := ScanMetadata(data)
	return ConversationInfo{
		ID:           conversationID,
		ProjectID:    projectID,
		FirstMessage: FirstUserMessage(data),
		MessageCount: meta.MessageCount,
		Timestamp:    meta.FirstTimestamp,
		LastModified: info.ModTime(),
		SizeBytes:    info.Size(),
		Model:        meta.Model,
	}, nil
}

// ListConversations summarises every conversation of a project, newest first.
// Unreadable files are logged and skipped.
func (c *Corpus) ListConversations(ctx context.Context, projectID string) ([]ConversationInfo, error) {
	ids, err := c.ConversationIDs(projectID)
	if err != nil {
		return nil, err
	}

	convs := make([]ConversationInfo, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := c.Conversation(projectID, id)
		if err != nil {
			logger.Warnf("skipping conversation %s/%s: %v", projectID, id, err)
			continue
		}
		convs = append(convs, info)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastModified.After(convs[j].LastModified)
	})
	return convs, nil
}

// ReadConversation returns the raw log. A file that does not exist (or
// vanished since it was listed) yields ErrNotFound.
func (c *Corpus) ReadConversation(projectID, conversationID string) ([]byte, error) {
	path, err := c.ConversationPath(projectID, conversationID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(err, projectID, conversationID)
	}
	return data, nil
}

// LoadConversation reads and parses a conversation.
func (c *Corpus) LoadConversation(projectID, conversationID string) (*transcript.Conversation, error) {
	data, err := c.ReadConversation(projectID, conversationID)
	if err != nil {
		return nil, err
	}
	conv := transcript.Parse(data)
	if err := conv.Err(); err != nil {
		return nil, fmt.Errorf("conversation %s/%s: %w", projectID, conversationID, err)
	}
	return conv, nil
}

func notFound(err error, projectID, conversationID string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("conversation %s/%s: %w", projectID, conversationID, ErrNotFound)
	}
	return fmt.Errorf("read conversation %s/%s: %w", projectID, conversationID, err)
}
