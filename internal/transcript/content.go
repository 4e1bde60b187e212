package transcript

import (
	"bytes"
	"encoding/json"
)

type contentKind int

const (
	contentNone contentKind = iota
	contentString
	contentBlocks
)

// Content is a message payload: either a plain string or an ordered list of
// typed blocks. Any other JSON shape decodes to empty content.
type Content struct {
	Text   string
	Blocks []Block
	kind   contentKind
}

// StringContent builds plain-string content.
func StringContent(s string) Content {
	return Content{Text: s, kind: contentString}
}

// BlockContent builds block-list content.
func BlockContent(blocks ...Block) Content {
	return Content{Blocks: blocks, kind: contentBlocks}
}

func (c Content) IsString() bool { return c.kind == contentString }
func (c Content) IsBlocks() bool { return c.kind == contentBlocks }

func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			*c = StringContent(s)
		}
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil
		}
		blocks := make([]Block, 0, len(raws))
		for _, raw := range raws {
			blocks = append(blocks, decodeBlock(raw))
		}
		*c = BlockContent(blocks...)
	}
	return nil
}

// OnlyToolResults reports whether c is a block list made up exclusively of
// tool_result blocks. An empty block list counts.
func (c Content) OnlyToolResults() bool {
	if !c.IsBlocks() {
		return false
	}
	for _, b := range c.Blocks {
		if _, ok := b.(ToolResultBlock); !ok {
			return false
		}
	}
	return true
}

// Block is one typed content block: TextBlock, ThinkingBlock, ToolUseBlock,
// ToolResultBlock or UnknownBlock.
type Block interface {
	BlockType() string
}

type TextBlock struct {
	Text string `json:"text"`
}

type ThinkingBlock struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature"`
}

type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResultBlock struct {
	ToolUseID string            `json:"tool_use_id"`
	Content   ToolResultContent `json:"content"`
	IsError   bool              `json:"is_error"`
}

// UnknownBlock keeps blocks of unrecognised kinds (images, documents, ...)
// and array elements that are not objects.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

func (TextBlock) BlockType() string       { return "text" }
func (ThinkingBlock) BlockType() string   { return "thinking" }
func (ToolUseBlock) BlockType() string    { return "tool_use" }
func (ToolResultBlock) BlockType() string { return "tool_result" }
func (b UnknownBlock) BlockType() string  { return b.Type }

func decodeBlock(raw json.RawMessage) Block {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := decodeLenient(raw, &envelope); err != nil {
		return UnknownBlock{Raw: raw}
	}

	switch envelope.Type {
	case "text":
		var b TextBlock
		if decodeLenient(raw, &b) == nil {
			return b
		}
	case "thinking":
		var b ThinkingBlock
		if decodeLenient(raw, &b) == nil {
			return b
		}
	case "tool_use":
		var b ToolUseBlock
		if decodeLenient(raw, &b) == nil {
			return b
		}
	case "tool_result":
		var b ToolResultBlock
		if decodeLenient(raw, &b) == nil {
			return b
		}
	}
	return UnknownBlock{Type: envelope.Type, Raw: raw}
}

// ToolResultContent is the content of a tool_result block: a string or a
// nested array of typed sub-blocks.
type ToolResultContent struct {
	Raw json.RawMessage
}

func (c *ToolResultContent) UnmarshalJSON(data []byte) error {
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// String returns string content verbatim and any other shape as compact JSON.
func (c ToolResultContent) String() string {
	trimmed := bytes.TrimSpace(c.Raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// ToolUseResult is the tool-specific payload a host attaches to the user
// entry carrying a tool result. Non-object payloads (plain error strings)
// are kept in Raw only.
type ToolUseResult struct {
	Type            string      `json:"type"`
	FilePath        string      `json:"filePath"`
	Content         string      `json:"content"`
	StructuredPatch []PatchHunk `json:"structuredPatch"`
	OriginalFile    *string     `json:"originalFile"`
	Output          string      `json:"output"`
	ExitCode        *int        `json:"exitCode"`

	Raw      json.RawMessage `json:"-"`
	isObject bool
}

type PatchHunk struct {
	OldStart int      `json:"oldStart"`
	OldLines int      `json:"oldLines"`
	NewStart int      `json:"newStart"`
	NewLines int      `json:"newLines"`
	Lines    []string `json:"lines"`
}

func (r *ToolUseResult) UnmarshalJSON(data []byte) error {
	*r = ToolUseResult{Raw: append(json.RawMessage(nil), data...)}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	type plain ToolUseResult
	var p plain
	if err := decodeLenient(trimmed, &p); err != nil {
		return nil
	}
	*r = ToolUseResult(p)
	r.Raw = append(json.RawMessage(nil), data...)
	r.isObject = true
	return nil
}
