package transcript

import (
	"encoding/json"
	"errors"
	"time"
)

type EntryType string

const (
	TypeUser      EntryType = "user"
	TypeAssistant EntryType = "assistant"
	TypeProgress  EntryType = "progress"
	TypeSystem    EntryType = "system"
	TypeSnapshot  EntryType = "file-history-snapshot"
	TypeUnknown   EntryType = "unknown"
)

// Header holds the fields shared by every log entry kind. All of them are
// optional on the wire.
type Header struct {
	Type         EntryType `json:"type"`
	UUID         string    `json:"uuid"`
	ParentUUID   *string   `json:"parentUuid"`
	RawTimestamp string    `json:"timestamp"`
	SessionID    string    `json:"sessionId"`
	CWD          string    `json:"cwd"`
	Version      string    `json:"version"`
	GitBranch    string    `json:"gitBranch"`
	IsSidechain  bool      `json:"isSidechain"`

	// Timestamp is RawTimestamp parsed; zero when absent or malformed.
	Timestamp time.Time `json:"-"`
}

func (h *Header) header() *Header { return h }

// Entry is one decoded log line. The concrete type is one of *UserEntry,
// *AssistantEntry, *ProgressEntry, *SystemEntry, *SnapshotEntry or *UnknownEntry.
type Entry interface {
	header() *Header
}

// HeaderOf returns the common fields of e.
func HeaderOf(e Entry) *Header { return e.header() }

// TypeOf returns the entry's type tag, "unknown" when the line carried none.
func TypeOf(e Entry) EntryType {
	if t := e.header().Type; t != "" {
		return t
	}
	return TypeUnknown
}

type UserEntry struct {
	Header
	Message       EntryMessage   `json:"message"`
	ToolUseResult *ToolUseResult `json:"toolUseResult"`
}

type AssistantEntry struct {
	Header
	Message   EntryMessage `json:"message"`
	RequestID string       `json:"requestId"`
}

type ProgressEntry struct {
	Header
	Data            json.RawMessage `json:"data"`
	ToolUseID       string          `json:"toolUseID"`
	ParentToolUseID string          `json:"parentToolUseID"`
}

type SystemEntry struct {
	Header
	Subtype    string  `json:"subtype"`
	DurationMs float64 `json:"durationMs"`
	IsMeta     bool    `json:"isMeta"`
}

type SnapshotEntry struct {
	Header
	MessageID        string          `json:"messageId"`
	Snapshot         json.RawMessage `json:"snapshot"`
	IsSnapshotUpdate bool            `json:"isSnapshotUpdate"`
}

// UnknownEntry carries lines whose type tag is missing or not recognised.
type UnknownEntry struct {
	Header
	Raw json.RawMessage `json:"-"`
}

// EntryMessage is the nested "message" object of user and assistant entries.
type EntryMessage struct {
	Role       string  `json:"role"`
	Model      string  `json:"model"`
	ID         string  `json:"id"`
	Content    Content `json:"content"`
	StopReason *string `json:"stop_reason"`
	Usage      *Usage  `json:"usage"`
}

type Usage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens"`
	ServiceTier              string `json:"service_tier,omitempty"`
}

// DecodeEntry decodes one JSONL line into its tagged variant. Only malformed
// JSON is an error: fields of an unexpected shape are left at their zero
// value and unrecognised tags produce an *UnknownEntry.
func DecodeEntry(line []byte) (Entry, error) {
	var envelope struct {
		Type EntryType `json:"type"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil && !json.Valid(line) {
		return nil, err
	}

	var e Entry
	switch envelope.Type {
	case TypeUser:
		e = &UserEntry{}
	case TypeAssistant:
		e = &AssistantEntry{}
	case TypeProgress:
		e = &ProgressEntry{}
	case TypeSystem:
		e = &SystemEntry{}
	case TypeSnapshot:
		e = &SnapshotEntry{}
	default:
		u := &UnknownEntry{Raw: append(json.RawMessage(nil), line...)}
		u.Type = envelope.Type
		e = u
	}

	if err := decodeLenient(line, e); err != nil {
		return nil, err
	}

	h := e.header()
	h.Timestamp = parseTimestamp(h.RawTimestamp)
	return e, nil
}

// decodeLenient unmarshals data into v, tolerating fields whose JSON shape
// does not match the Go type.
func decodeLenient(data []byte, v interface{}) error {
	err := json.Unmarshal(data, v)
	var typeErr *json.UnmarshalTypeError
	if err != nil && errors.As(err, &typeErr) {
		return nil
	}
	return err
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
