package export

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// FormatTokens renders a token count compactly: 950, 12.3k, 1.25M.
func FormatTokens(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1000000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	default:
		return fmt.Sprintf("%.2fM", float64(n)/1000000)
	}
}

// FormatDuration renders d as 850ms, 12.5s or 3m 20s.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dm %.0fs", ms/60000, float64(ms%60000)/1000)
	}
}

var toolEmojis = map[string]string{
	"Bash":      "⌨️",
	"Read":      "📄",
	"Write":     "✏️",
	"Edit":      "📝",
	"Glob":      "🔍",
	"Grep":      "🔎",
	"WebSearch": "🌐",
	"WebFetch":  "🌍",
	"Task":      "🤖",
}

func ToolEmoji(name string) string {
	if e, ok := toolEmojis[name]; ok {
		return e
	}
	return "🔧"
}

// EstimateTokens approximates the token count of text at ~3.5 characters
// per token, the usual average for mixed prose and code.
func EstimateTokens(text string) int {
	return int(float64(utf8.RuneCountInString(text)) / 3.5)
}
