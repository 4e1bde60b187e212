package export

import "ccview/internal/transcript"

type Level string

const (
	LevelFull       Level = "full"
	LevelNoThinking Level = "no-thinking"
	LevelCompact    Level = "compact"
)

// Fit renders the most detailed Markdown export whose estimated size fits
// within budget tokens, dropping thinking and then tool details. When even
// the compact form is too large it is returned anyway.
func Fit(conv *transcript.Conversation, name string, opts Options, budget int) (Level, string) {
	levels := []struct {
		level Level
		opts  Options
	}{
		{LevelFull, opts},
		{LevelNoThinking, withoutThinking(opts)},
		{LevelCompact, withoutToolDetails(withoutThinking(opts))},
	}

	var text string
	for _, l := range levels {
		text = Markdown(conv, name, l.opts)
		if budget <= 0 || EstimateTokens(text) <= budget {
			return l.level, text
		}
	}
	return LevelCompact, text
}

func withoutThinking(o Options) Options {
	o.IncludeThinking = false
	return o
}

func withoutToolDetails(o Options) Options {
	o.IncludeToolDetails = false
	return o
}
