package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string content", `"plain text"`, "plain text"},
		{"text and thinking", `[{"type":"text","text":"a"},{"type":"thinking","thinking":"b"},{"type":"text","text":"c"}]`, "a b c"},
		{"tool blocks skipped", `[{"type":"tool_use","id":"1","name":"Bash","input":{"command":"rm"}},{"type":"text","text":"only"}]`, "only"},
		{"tool result skipped", `[{"type":"tool_result","tool_use_id":"1","content":"secret"}]`, ""},
		{"empty list", `[]`, ""},
		{"non-object elements", `[1,"x",null,{"type":"text","text":"kept"}]`, "kept"},
		{"object content", `{"text":"nope"}`, ""},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Content
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.want, ExtractText(c))
		})
	}
}

func TestExtractLine(t *testing.T) {
	typ, text, err := ExtractLine([]byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"},{"type":"thinking","thinking":"there"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeAssistant, typ)
	assert.Equal(t, "hi there", text)

	typ, text, err = ExtractLine([]byte(`{"type":"progress","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeProgress, typ)
	assert.Empty(t, text)

	typ, _, err = ExtractLine([]byte(`{"message":{"content":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeUnknown, typ)

	typ, text, err = ExtractLine([]byte(`{"type":"user","message":"not an object"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeUser, typ)
	assert.Empty(t, text)

	_, _, err = ExtractLine([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestScanLines(t *testing.T) {
	data := []byte("first\r\n\n   \nfourth\nfifth")

	var got []int
	var lines []string
	ScanLines(data, func(lineNo int, line []byte) {
		got = append(got, lineNo)
		lines = append(lines, string(line))
	})

	assert.Equal(t, []int{1, 4, 5}, got)
	assert.Equal(t, []string{"first", "fourth", "fifth"}, lines)
}

func TestDecodeEntry_Variants(t *testing.T) {
	tests := []struct {
		line string
		want EntryType
	}{
		{`{"type":"user","message":{"content":"x"}}`, TypeUser},
		{`{"type":"assistant","message":{"content":[]}}`, TypeAssistant},
		{`{"type":"progress"}`, TypeProgress},
		{`{"type":"system","durationMs":"oops"}`, TypeSystem},
		{`{"type":"file-history-snapshot"}`, TypeSnapshot},
		{`{"type":"queue-operation"}`, "queue-operation"},
		{`{}`, TypeUnknown},
	}

	for _, tt := range tests {
		e, err := DecodeEntry([]byte(tt.line))
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, TypeOf(e), tt.line)
	}

	_, err := DecodeEntry([]byte(`{"type":"user"`))
	assert.Error(t, err)
}

func TestDecodeEntry_Timestamp(t *testing.T) {
	e, err := DecodeEntry([]byte(`{"type":"user","timestamp":"2025-03-04T05:06:07.123Z"}`))
	require.NoError(t, err)
	ts := HeaderOf(e).Timestamp
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, 123000000, ts.Nanosecond())

	e, err = DecodeEntry([]byte(`{"type":"user","timestamp":"yesterday"}`))
	require.NoError(t, err)
	assert.True(t, HeaderOf(e).Timestamp.IsZero())
}

func TestToolResultContent_String(t *testing.T) {
	var b ToolResultBlock
	require.NoError(t, json.Unmarshal([]byte(`{"tool_use_id":"1","content":"plain"}`), &b))
	assert.Equal(t, "plain", b.Content.String())

	require.NoError(t, json.Unmarshal([]byte(`{"tool_use_id":"1","content":[ {"type":"text", "text":"x"} ]}`), &b))
	assert.Equal(t, `[{"type":"text","text":"x"}]`, b.Content.String())

	b = ToolResultBlock{}
	assert.Empty(t, b.Content.String())
}
