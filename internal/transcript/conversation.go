package transcript

import (
	"encoding/json"
	"errors"
	"time"
)

// UnknownSession is reported when no entry carries a session id.
const UnknownSession = "unknown"

// ErrUnparseable is returned by Conversation.Err when a log produced no
// messages and at least one line failed to parse.
var ErrUnparseable = errors.New("conversation log has no parseable messages")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockKind string

const (
	KindThinking BlockKind = "thinking"
	KindText     BlockKind = "text"
	KindToolUse  BlockKind = "tool_use"
)

// Conversation is the parser's output for one log file.
type Conversation struct {
	SessionID string       `json:"sessionId"`
	Messages  []Message    `json:"messages"`
	Stats     Stats        `json:"stats"`
	Errors    []ParseError `json:"errors"`
	Raw       RawCounts    `json:"raw"`
}

// Err reports whether the whole log should be rejected.
func (c *Conversation) Err() error {
	if len(c.Messages) == 0 && len(c.Errors) > 0 {
		return ErrUnparseable
	}
	return nil
}

type RawCounts struct {
	TotalEntries int            `json:"totalEntries"`
	EntryTypes   map[string]int `json:"entryTypes"`
}

type ParseError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
}

// Message is a user or assistant turn ready for display. User messages carry
// Text, assistant messages carry Blocks.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	ParentID  string           `json:"parentId,omitempty"`
	Text      string           `json:"text,omitempty"`
	Blocks    []ProcessedBlock `json:"blocks,omitempty"`
	Meta      Metadata         `json:"metadata"`
}

type Metadata struct {
	Model     string `json:"model,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Usage     *Usage `json:"usage,omitempty"`
	CWD       string `json:"cwd,omitempty"`
	Version   string `json:"version,omitempty"`
	GitBranch string `json:"gitBranch,omitempty"`
}

type ProcessedBlock struct {
	ID        string          `json:"id"`
	Kind      BlockKind       `json:"type"`
	Content   string          `json:"content"`
	ToolName  string          `json:"toolName,omitempty"`
	ToolInput json.RawMessage `json:"toolInput,omitempty"`
	ToolID    string          `json:"toolId,omitempty"`
	Result    *ToolResult     `json:"result,omitempty"`
}

// ToolResult is a tool_result block resolved against its tool_use.
type ToolResult struct {
	ToolUseID   string `json:"toolUseId"`
	Type        string `json:"type,omitempty"`
	Content     string `json:"content"`
	IsError     bool   `json:"isError,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	FileContent string `json:"fileContent,omitempty"`
	Diff        *Diff  `json:"diff,omitempty"`
	ExitCode    *int   `json:"exitCode,omitempty"`
	Output      string `json:"output,omitempty"`
}

type Diff struct {
	FilePath        string      `json:"filePath"`
	Hunks           []PatchHunk `json:"hunks"`
	Additions       int         `json:"additions"`
	Deletions       int         `json:"deletions"`
	OriginalContent string      `json:"originalContent,omitempty"`
	NewContent      string      `json:"newContent,omitempty"`
}

// Stats aggregates token usage, tool activity and timing over a conversation.
type Stats struct {
	TotalMessages     int            `json:"totalMessages"`
	UserMessages      int            `json:"userMessages"`
	AssistantMessages int            `json:"assistantMessages"`
	TotalInputTokens  int64          `json:"totalInputTokens"`
	TotalOutputTokens int64          `json:"totalOutputTokens"`
	CacheHits         int64          `json:"cacheHits"`
	CacheMisses       int64          `json:"cacheMisses"`
	CacheHitRate      float64        `json:"cacheHitRate"`
	TotalToolUses     int            `json:"totalToolUses"`
	ToolUseCounts     map[string]int `json:"toolUseCounts"`
	TotalDuration     time.Duration  `json:"totalDuration"`
	StartTime         time.Time      `json:"startTime,omitempty"`
	EndTime           time.Time      `json:"endTime,omitempty"`
	Model             string         `json:"model,omitempty"`
	Version           string         `json:"version,omitempty"`
}

// CacheHitRate is hits/(hits+misses), or 0 when both are zero.
func CacheHitRate(hits, misses int64) float64 {
	total := hits + misses
	if total <= 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
