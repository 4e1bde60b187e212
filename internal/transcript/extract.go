package transcript

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractText returns the human-readable text of a message payload: string
// content verbatim, or the text and thinking blocks joined by a single space.
// Tool inputs and outputs are not prose and are skipped.
//
// The parser's user-message path and the search index both go through this
// function, so what is displayed and what is searchable never diverge.
func ExtractText(c Content) string {
	if !c.IsBlocks() {
		return c.Text
	}

	parts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		switch v := b.(type) {
		case TextBlock:
			parts = append(parts, v.Text)
		case ThinkingBlock:
			parts = append(parts, v.Thinking)
		}
	}
	return strings.Join(parts, " ")
}

// ExtractLine decodes one raw log line just far enough to index it: the
// entry's type tag ("unknown" when missing) and the ExtractText of its
// message content. Only malformed JSON is an error.
func ExtractLine(line []byte) (EntryType, string, error) {
	var envelope struct {
		Type    EntryType `json:"type"`
		Message *struct {
			Content Content `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil && !json.Valid(line) {
		return "", "", err
	}

	entryType := envelope.Type
	if entryType == "" {
		entryType = TypeUnknown
	}
	if envelope.Message == nil {
		return entryType, "", nil
	}
	return entryType, ExtractText(envelope.Message.Content), nil
}

// ScanLines calls fn for every non-blank line of data with its 1-based
// physical line number. A trailing carriage return is stripped.
func ScanLines(data []byte, fn func(lineNo int, line []byte)) {
	lineNo := 0
	for len(data) > 0 {
		lineNo++
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		fn(lineNo, line)
	}
}
