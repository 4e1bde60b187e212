package export

import (
	"fmt"
	"sort"
	"strings"
)

// Target is a model an export may be pasted into, with the context window
// that bounds the export size.
type Target struct {
	Key          string
	Name         string
	ContextLimit int
}

var targets = map[string]Target{
	"gemini": {Key: "gemini", Name: "Gemini 2.5 Flash", ContextLimit: 1000000},
	"opus":   {Key: "opus", Name: "Claude Opus", ContextLimit: 200000},
	"sonnet": {Key: "sonnet", Name: "Claude Sonnet", ContextLimit: 200000},
	"gpt4o":  {Key: "gpt4o", Name: "GPT-4o", ContextLimit: 128000},
}

func LookupTarget(key string) (Target, error) {
	t, ok := targets[strings.ToLower(key)]
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q (want one of %s)", key, strings.Join(TargetKeys(), ", "))
	}
	return t, nil
}

func TargetKeys() []string {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Budget leaves a quarter of the target's window for the conversation that
// follows the pasted export.
func (t Target) Budget() int {
	return t.ContextLimit * 3 / 4
}
