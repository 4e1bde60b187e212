// Package transcript turns raw conversation JSONL logs into ordered messages
// with correlated tool calls and aggregate statistics. It performs no I/O.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const errorContentLimit = 100

// systemMarkers prefix host-injected control text that shows up as user
// entries but was not authored by the user.
var systemMarkers = []string{
	"<task-notification>",
	"<system-reminder>",
	"<user-prompt-submit-hook>",
}

// IsSystemInjected reports whether text starts with a host-injected marker.
func IsSystemInjected(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, m := range systemMarkers {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}

// Parse parses the full text of one conversation log. Malformed lines are
// recorded in Errors and skipped; Parse never fails as a whole (see
// Conversation.Err).
func Parse(data []byte) *Conversation {
	conv := &Conversation{
		SessionID: UnknownSession,
		Messages:  []Message{},
		Errors:    []ParseError{},
		Raw:       RawCounts{EntryTypes: make(map[string]int)},
	}

	var entries []Entry
	ScanLines(data, func(lineNo int, line []byte) {
		e, err := DecodeEntry(line)
		if err != nil {
			conv.Errors = append(conv.Errors, ParseError{
				Line:    lineNo,
				Message: err.Error(),
				Content: truncateRunes(string(line), errorContentLimit),
			})
			return
		}
		entries = append(entries, e)
		conv.Raw.EntryTypes[string(TypeOf(e))]++
	})
	conv.Raw.TotalEntries = len(entries)

	for _, e := range entries {
		if sid := HeaderOf(e).SessionID; sid != "" {
			conv.SessionID = sid
			break
		}
	}

	results := correlateToolResults(entries)
	conv.Messages, conv.Stats = buildMessages(entries, results)
	return conv
}

// correlateToolResults maps tool-call ids to their results across the whole
// log; results may live in any later user entry.
func correlateToolResults(entries []Entry) map[string]*ToolResult {
	results := make(map[string]*ToolResult)
	for _, e := range entries {
		u, ok := e.(*UserEntry)
		if !ok || !u.Message.Content.IsBlocks() {
			continue
		}
		for _, b := range u.Message.Content.Blocks {
			if tr, ok := b.(ToolResultBlock); ok {
				results[tr.ToolUseID] = processToolResult(tr, u.ToolUseResult)
			}
		}
	}
	return results
}

func buildMessages(entries []Entry, results map[string]*ToolResult) ([]Message, Stats) {
	messages := make([]Message, 0, len(entries))
	stats := Stats{ToolUseCounts: make(map[string]int)}

	for _, e := range entries {
		switch v := e.(type) {
		case *UserEntry:
			msg, ok := userMessage(v)
			if !ok {
				continue
			}
			messages = append(messages, msg)
			stats.UserMessages++
			stats.TotalMessages++

		case *AssistantEntry:
			messages = append(messages, assistantMessage(v, results))
			stats.AssistantMessages++
			stats.TotalMessages++

			if u := v.Message.Usage; u != nil {
				stats.TotalInputTokens += u.InputTokens
				stats.TotalOutputTokens += u.OutputTokens
				stats.CacheHits += u.CacheReadInputTokens
				stats.CacheMisses += u.CacheCreationInputTokens
			}
			for _, b := range v.Message.Content.Blocks {
				if tu, ok := b.(ToolUseBlock); ok {
					stats.TotalToolUses++
					stats.ToolUseCounts[tu.Name]++
				}
			}
			if stats.Model == "" {
				stats.Model = v.Message.Model
			}
			if stats.Version == "" {
				stats.Version = v.Version
			}
		}
	}

	stats.CacheHitRate = CacheHitRate(stats.CacheHits, stats.CacheMisses)

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	if len(messages) >= 2 {
		stats.StartTime = messages[0].Timestamp
		stats.EndTime = messages[len(messages)-1].Timestamp
		stats.TotalDuration = stats.EndTime.Sub(stats.StartTime)
	}
	return messages, stats
}

func userMessage(e *UserEntry) (Message, bool) {
	content := e.Message.Content
	if content.OnlyToolResults() {
		return Message{}, false
	}

	text := ExtractText(content)
	if strings.TrimSpace(text) == "" || IsSystemInjected(text) {
		return Message{}, false
	}

	return Message{
		ID:        e.UUID,
		Role:      RoleUser,
		Timestamp: e.Timestamp,
		ParentID:  parentID(e.ParentUUID),
		Text:      text,
		Meta: Metadata{
			CWD:       e.CWD,
			Version:   e.Version,
			GitBranch: e.GitBranch,
		},
	}, true
}

func assistantMessage(e *AssistantEntry, results map[string]*ToolResult) Message {
	blocks := make([]ProcessedBlock, 0, len(e.Message.Content.Blocks))

	for _, b := range e.Message.Content.Blocks {
		switch v := b.(type) {
		case ThinkingBlock:
			blocks = append(blocks, ProcessedBlock{
				ID:      fmt.Sprintf("%s-thinking-%d", e.UUID, len(blocks)),
				Kind:    KindThinking,
				Content: v.Thinking,
			})
		case TextBlock:
			blocks = append(blocks, ProcessedBlock{
				ID:      fmt.Sprintf("%s-text-%d", e.UUID, len(blocks)),
				Kind:    KindText,
				Content: v.Text,
			})
		case ToolUseBlock:
			blocks = append(blocks, ProcessedBlock{
				ID:        fmt.Sprintf("%s-tool-%s", e.UUID, v.ID),
				Kind:      KindToolUse,
				Content:   indentJSON(v.Input),
				ToolName:  v.Name,
				ToolInput: v.Input,
				ToolID:    v.ID,
				Result:    results[v.ID],
			})
		}
	}

	return Message{
		ID:        e.UUID,
		Role:      RoleAssistant,
		Timestamp: e.Timestamp,
		ParentID:  parentID(e.ParentUUID),
		Blocks:    blocks,
		Meta: Metadata{
			Model:     e.Message.Model,
			RequestID: e.RequestID,
			Usage:     e.Message.Usage,
			CWD:       e.CWD,
			Version:   e.Version,
			GitBranch: e.GitBranch,
		},
	}
}

func processToolResult(b ToolResultBlock, data *ToolUseResult) *ToolResult {
	result := &ToolResult{
		ToolUseID: b.ToolUseID,
		Content:   b.Content.String(),
		IsError:   b.IsError,
	}
	if data == nil || !data.isObject {
		return result
	}

	result.Type = data.Type
	result.FilePath = data.FilePath
	result.ExitCode = data.ExitCode
	result.Output = data.Output

	if len(data.StructuredPatch) > 0 && data.FilePath != "" {
		result.Diff = summarizePatch(data)
	}
	if data.Content != "" && result.Diff == nil {
		result.FileContent = data.Content
	}
	return result
}

func summarizePatch(data *ToolUseResult) *Diff {
	diff := &Diff{
		FilePath:   data.FilePath,
		Hunks:      data.StructuredPatch,
		NewContent: data.Content,
	}
	if data.OriginalFile != nil {
		diff.OriginalContent = *data.OriginalFile
	}
	for _, hunk := range data.StructuredPatch {
		for _, line := range hunk.Lines {
			switch {
			case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
				diff.Additions++
			case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
				diff.Deletions++
			}
		}
	}
	return diff
}

func parentID(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func indentJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
