package store

import "time"

// DefaultSearchLimit caps search results when the caller passes a
// non-positive limit.
const DefaultSearchLimit = 50

// MinQueryLength is the shortest query, in characters, that reaches the
// database.
const MinQueryLength = 2

type SearchResult struct {
	ProjectID      string `json:"projectId"`
	ConversationID string `json:"conversationId"`
	Snippet        string `json:"snippet"`
	MatchIndex     int    `json:"matchIndex"`
	Type           string `json:"type"`
	Line           int    `json:"line"`
}

type IndexStats struct {
	ConversationCount int       `json:"conversationCount"`
	EntryCount        int       `json:"entryCount"`
	LastIndexedAt     time.Time `json:"lastIndexedAt,omitempty"`
}

// SweepReport summarises one EnsureIndexed pass.
type SweepReport struct {
	Projects int `json:"projects"`
	Scanned  int `json:"scanned"`
	Indexed  int `json:"indexed"`
	Pruned   int `json:"pruned"`
	Failed   int `json:"failed"`
}

type conversationKey struct {
	projectID      string
	conversationID string
}
