package corpus

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"ccview/internal/transcript"
)

const (
	previewLines = 50
	previewLimit = 100
)

var driveLetterRe = regexp.MustCompile(`^([A-Za-z])--`)

// Metadata is what a cheap line scan learns about a conversation.
type Metadata struct {
	MessageCount   int
	FirstTimestamp string
	LastTimestamp  string
	Model          string
}

// ScanMetadata counts user and assistant entries and records the first and
// last entry timestamps and the first assistant model. Malformed lines are
// skipped.
func ScanMetadata(data []byte) Metadata {
	var meta Metadata
	transcript.ScanLines(data, func(_ int, line []byte) {
		e, err := transcript.DecodeEntry(line)
		if err != nil {
			return
		}

		switch v := e.(type) {
		case *transcript.UserEntry, *transcript.AssistantEntry:
			meta.MessageCount++
			if ts := transcript.HeaderOf(e).RawTimestamp; ts != "" {
				if meta.FirstTimestamp == "" {
					meta.FirstTimestamp = ts
				}
				meta.LastTimestamp = ts
			}
			if a, ok := v.(*transcript.AssistantEntry); ok && meta.Model == "" {
				meta.Model = a.Message.Model
			}
		}
	})
	return meta
}

// FirstUserMessage returns a preview of the first user entry within the
// first lines of a log. Only plain-string content is previewed; a first
// user entry with block content yields "".
func FirstUserMessage(data []byte) string {
	seen := 0
	preview := ""
	done := false
	transcript.ScanLines(data, func(_ int, line []byte) {
		if done || seen >= previewLines {
			return
		}
		seen++

		e, err := transcript.DecodeEntry(line)
		if err != nil {
			return
		}
		u, ok := e.(*transcript.UserEntry)
		if !ok {
			return
		}
		content := u.Message.Content
		switch {
		case content.IsString() && content.Text != "":
			preview = truncate(content.Text, previewLimit)
			done = true
		case content.IsBlocks():
			done = true
		}
	})
	return preview
}

// FolderNameToPath decodes a project directory name back into the working
// directory it was created for, e.g. "C--Users-me-app" -> "C:/Users/me/app".
// The encoding is lossy: dashes that were part of a path segment come back
// as separators.
func FolderNameToPath(folder string) string {
	p := driveLetterRe.ReplaceAllString(folder, "$1:/")
	p = strings.ReplaceAll(p, "--", "/")
	return strings.ReplaceAll(p, "-", "/")
}

// DisplayName is the last segment of the decoded project path.
func DisplayName(folder string) string {
	parts := strings.Split(FolderNameToPath(folder), "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return folder
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
