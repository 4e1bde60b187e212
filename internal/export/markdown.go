// Package export renders parsed conversations for use outside the viewer:
// Markdown for reading or pasting into another model, JSON for tooling.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"ccview/internal/transcript"
)

const resultLimit = 2000

type Options struct {
	IncludeStats       bool
	IncludeThinking    bool
	IncludeToolDetails bool
}

func DefaultOptions() Options {
	return Options{IncludeStats: true, IncludeThinking: true, IncludeToolDetails: true}
}

// Markdown renders conv as a Markdown document titled with name.
func Markdown(conv *transcript.Conversation, name string, opts Options) string {
	var lines []string
	add := func(l ...string) { lines = append(lines, l...) }

	add(fmt.Sprintf("# Claude Conversation: %s", name), "")

	if opts.IncludeStats {
		st := conv.Stats
		add("## Stats",
			fmt.Sprintf("- **Messages:** %d", st.TotalMessages),
			fmt.Sprintf("- **Tokens:** %s (%s in / %s out)",
				FormatTokens(st.TotalInputTokens+st.TotalOutputTokens),
				FormatTokens(st.TotalInputTokens),
				FormatTokens(st.TotalOutputTokens)),
			fmt.Sprintf("- **Duration:** %s", FormatDuration(st.TotalDuration)),
		)
		if !st.StartTime.IsZero() {
			add(fmt.Sprintf("- **Date:** %s", st.StartTime.Local().Format("Jan 2, 2006")))
		}
		if st.Model != "" {
			add(fmt.Sprintf("- **Model:** %s", st.Model))
		}
		if st.TotalToolUses > 0 {
			add(fmt.Sprintf("- **Tool calls:** %d", st.TotalToolUses))
		}
		add("", "---", "")
	}

	for _, msg := range conv.Messages {
		switch msg.Role {
		case transcript.RoleUser:
			add("## 👤 User", "")
			add(timestampLine(msg)...)
			add(msg.Text, "")

		case transcript.RoleAssistant:
			heading := "## 🤖 Claude"
			if u := msg.Meta.Usage; u != nil && u.OutputTokens > 0 {
				heading += fmt.Sprintf(" (%s tokens)", FormatTokens(u.OutputTokens))
			}
			add(heading, "")
			add(timestampLine(msg)...)

			for _, b := range msg.Blocks {
				add(renderBlock(b, opts)...)
			}
		}
		add("---", "")
	}

	add("*Exported with ccview*")
	return strings.Join(lines, "\n") + "\n"
}

func timestampLine(msg transcript.Message) []string {
	if msg.Timestamp.IsZero() {
		return nil
	}
	return []string{fmt.Sprintf("*%s*", msg.Timestamp.Local().Format("15:04:05")), ""}
}

func renderBlock(b transcript.ProcessedBlock, opts Options) []string {
	switch b.Kind {
	case transcript.KindThinking:
		if !opts.IncludeThinking {
			return nil
		}
		chars := int64(utf8.RuneCountInString(b.Content))
		return append([]string{
			"<details>",
			fmt.Sprintf("<summary>🧠 Thinking (%s chars)</summary>", humanize.Comma(chars)),
			"",
		}, append(codeBlock(b.Content), "</details>", "")...)

	case transcript.KindText:
		return []string{b.Content, ""}

	case transcript.KindToolUse:
		name := b.ToolName
		if name == "" {
			name = "Tool"
		}
		out := []string{fmt.Sprintf("### %s %s", ToolEmoji(b.ToolName), name), ""}
		if !opts.IncludeToolDetails {
			return out
		}
		out = append(out, codeBlock(b.Content)...)
		out = append(out, "")
		if r := b.Result; r != nil {
			label := "**Result:**"
			if r.IsError {
				label = "**Error:**"
			}
			out = append(out, label)
			out = append(out, codeBlock(truncateResult(r.Content))...)
			out = append(out, "")
		}
		return out
	}
	return nil
}

func truncateResult(s string) string {
	if utf8.RuneCountInString(s) <= resultLimit {
		return s
	}
	return string([]rune(s)[:resultLimit]) + "\n... (truncated)"
}

// codeBlock fences content with a backtick run longer than any it contains.
func codeBlock(content string) []string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return []string{fence, content, fence}
}

// JSON renders the parsed conversation, including stats and parse errors.
func JSON(conv *transcript.Conversation) ([]byte, error) {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal conversation: %w", err)
	}
	return data, nil
}
