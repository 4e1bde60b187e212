package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccview/internal/transcript"
)

func sampleConversation() *transcript.Conversation {
	start := time.Date(2025, 3, 4, 10, 0, 0, 0, time.Local)
	return &transcript.Conversation{
		SessionID: "s-1",
		Messages: []transcript.Message{
			{ID: "u1", Role: transcript.RoleUser, Timestamp: start, Text: "list files"},
			{
				ID:        "a1",
				Role:      transcript.RoleAssistant,
				Timestamp: start.Add(5 * time.Second),
				Meta:      transcript.Metadata{Usage: &transcript.Usage{OutputTokens: 1500}},
				Blocks: []transcript.ProcessedBlock{
					{Kind: transcript.KindThinking, Content: strings.Repeat("t", 1234)},
					{Kind: transcript.KindText, Content: "Running ls."},
					{
						Kind:     transcript.KindToolUse,
						ToolName: "Bash",
						Content:  "{\n  \"command\": \"ls\"\n}",
						Result:   &transcript.ToolResult{Content: "file.txt"},
					},
					{
						Kind:     transcript.KindToolUse,
						ToolName: "Mystery",
						Content:  "{}",
						Result:   &transcript.ToolResult{Content: strings.Repeat("x", 2500), IsError: true},
					},
				},
			},
		},
		Stats: transcript.Stats{
			TotalMessages:     2,
			TotalInputTokens:  12000,
			TotalOutputTokens: 1500,
			TotalDuration:     5 * time.Second,
			StartTime:         start,
			Model:             "model-x",
			TotalToolUses:     2,
		},
	}
}

func TestMarkdown_Full(t *testing.T) {
	md := Markdown(sampleConversation(), "abc", DefaultOptions())

	assert.True(t, strings.HasPrefix(md, "# Claude Conversation: abc\n"))
	assert.Contains(t, md, "- **Messages:** 2")
	assert.Contains(t, md, "- **Tokens:** 13.5k (12.0k in / 1.5k out)")
	assert.Contains(t, md, "- **Duration:** 5.0s")
	assert.Contains(t, md, "- **Date:** Mar 4, 2025")
	assert.Contains(t, md, "- **Model:** model-x")
	assert.Contains(t, md, "## 👤 User\n\n*10:00:00*\n\nlist files")
	assert.Contains(t, md, "## 🤖 Claude (1.5k tokens)")
	assert.Contains(t, md, "<summary>🧠 Thinking (1,234 chars)</summary>")
	assert.Contains(t, md, "### ⌨️ Bash")
	assert.Contains(t, md, "**Result:**\n```\nfile.txt\n```")
	assert.Contains(t, md, "### 🔧 Mystery")
	assert.Contains(t, md, "**Error:**")
	assert.Contains(t, md, strings.Repeat("x", 2000)+"\n... (truncated)")
	assert.NotContains(t, md, strings.Repeat("x", 2001))
	assert.True(t, strings.HasSuffix(md, "*Exported with ccview*\n"))
}

func TestMarkdown_Options(t *testing.T) {
	md := Markdown(sampleConversation(), "abc", Options{})

	assert.NotContains(t, md, "## Stats")
	assert.NotContains(t, md, "Thinking")
	assert.NotContains(t, md, "file.txt")
	assert.Contains(t, md, "### ⌨️ Bash")
	assert.Contains(t, md, "Running ls.")
}

func TestMarkdown_FenceLongerThanContent(t *testing.T) {
	conv := &transcript.Conversation{Messages: []transcript.Message{{
		Role: transcript.RoleAssistant,
		Blocks: []transcript.ProcessedBlock{{
			Kind: transcript.KindToolUse, ToolName: "Write", Content: "```go\nx\n```",
		}},
	}}}
	md := Markdown(conv, "f", DefaultOptions())
	assert.Contains(t, md, "````\n```go\nx\n```\n````")
}

func TestFit(t *testing.T) {
	conv := sampleConversation()

	level, _ := Fit(conv, "abc", DefaultOptions(), 0)
	assert.Equal(t, LevelFull, level)

	full := EstimateTokens(Markdown(conv, "abc", DefaultOptions()))
	level, text := Fit(conv, "abc", DefaultOptions(), full-1)
	assert.Equal(t, LevelNoThinking, level)
	assert.NotContains(t, text, "Thinking")

	level, text = Fit(conv, "abc", DefaultOptions(), 1)
	assert.Equal(t, LevelCompact, level)
	assert.NotContains(t, text, "file.txt")
}

func TestJSON(t *testing.T) {
	data, err := JSON(sampleConversation())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "s-1", decoded["sessionId"])
	assert.Len(t, decoded["messages"], 2)
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.0k", FormatTokens(1000))
	assert.Equal(t, "12.3k", FormatTokens(12345))
	assert.Equal(t, "1.25M", FormatTokens(1250000))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "850ms", FormatDuration(850*time.Millisecond))
	assert.Equal(t, "12.5s", FormatDuration(12500*time.Millisecond))
	assert.Equal(t, "3m 20s", FormatDuration(200*time.Second))
}

func TestToolEmoji(t *testing.T) {
	assert.Equal(t, "📄", ToolEmoji("Read"))
	assert.Equal(t, "🔧", ToolEmoji(""))
}

func TestLookupTarget(t *testing.T) {
	tgt, err := LookupTarget("Sonnet")
	require.NoError(t, err)
	assert.Equal(t, 150000, tgt.Budget())

	_, err = LookupTarget("nope")
	assert.ErrorContains(t, err, "gemini, gpt4o, opus, sonnet")
}
