// Package store is the persistent search index over the conversation corpus.
// It holds one row per indexed conversation, keyed by the file's modification
// time, and one row per log line that carries searchable text.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"modernc.org/sqlite"

	"ccview/internal/corpus"
	"ccview/internal/logger"
	"ccview/internal/transcript"
)

const (
	snippetContext = 40

	// timeLayout has a fixed-width fraction so stored times sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// foldFunc lowers text with Go's Unicode case mapping. SQLite's built-in
// LOWER only folds ASCII, so it cannot be paired with strings.ToLower.
const foldFunc = "ccview_fold"

func init() {
	err := sqlite.RegisterDeterministicScalarFunction(foldFunc, 1,
		func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return v, nil
			}
		})
	if err != nil {
		panic(fmt.Sprintf("register %s: %v", foldFunc, err))
	}
}

// Store serialises every operation behind one mutex, so a reader never sees
// a conversation between its delete and its re-insert.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	corpus *corpus.Corpus
}

// Open opens (creating if needed) the index at path for the corpus rooted at
// projectsDir.
func Open(path, projectsDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, corpus: corpus.New(projectsDir)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id              INTEGER PRIMARY KEY,
		project_id      TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		last_modified   TEXT NOT NULL,
		indexed_at      TEXT NOT NULL,
		UNIQUE(project_id, conversation_id)
	);

	CREATE TABLE IF NOT EXISTS entries (
		id                 INTEGER PRIMARY KEY,
		conversation_rowid INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		content            TEXT NOT NULL,
		entry_type         TEXT NOT NULL,
		line_number        INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_lookup ON conversations(project_id, conversation_id);
	CREATE INDEX IF NOT EXISTS idx_entries_conversation ON entries(conversation_rowid);
	`
	_, err := s.db.Exec(schema)
	return err
}

// mtimeKey is the staleness key stored for a file. Equality is exact.
func mtimeKey(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// IsStale reports whether a conversation needs (re)indexing. Any failure to
// stat the file or query the index counts as stale.
func (s *Store) IsStale(ctx context.Context, projectID, conversationID string) bool {
	path, err := s.corpus.ConversationPath(projectID, conversationID)
	if err != nil {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	err = s.db.QueryRowContext(ctx,
		"SELECT last_modified FROM conversations WHERE project_id = ? AND conversation_id = ?",
		projectID, conversationID,
	).Scan(&stored)
	if err != nil {
		return true
	}
	return stored != mtimeKey(info.ModTime())
}

// IndexConversation replaces everything the index holds for one
// conversation with the current contents of its file. The replacement is a
// single transaction: on failure the previous rows stay untouched.
func (s *Store) IndexConversation(ctx context.Context, projectID, conversationID string) error {
	path, err := s.corpus.ConversationPath(projectID, conversationID)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("conversation %s/%s: %w", projectID, conversationID, corpus.ErrNotFound)
		}
		return fmt.Errorf("stat conversation: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteConversation(ctx, tx, projectID, conversationID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (project_id, conversation_id, last_modified, indexed_at) VALUES (?, ?, ?, ?)",
		projectID, conversationID, mtimeKey(info.ModTime()), mtimeKey(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("conversation rowid: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries (conversation_rowid, content, entry_type, line_number) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	var insertErr error
	entries := 0
	transcript.ScanLines(data, func(lineNo int, line []byte) {
		if insertErr != nil {
			return
		}
		entryType, text, err := transcript.ExtractLine(line)
		if err != nil || strings.TrimSpace(text) == "" {
			return
		}
		if _, err := stmt.ExecContext(ctx, rowID, text, string(entryType), lineNo); err != nil {
			insertErr = fmt.Errorf("insert entry line %d: %w", lineNo, err)
			return
		}
		entries++
	})
	if insertErr != nil {
		return insertErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Debugf("indexed %s/%s (%d entries)", projectID, conversationID, entries)
	return nil
}

// RemoveConversation drops a conversation and its entries from the index.
// Removing a conversation that was never indexed is not an error.
func (s *Store) RemoveConversation(ctx context.Context, projectID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteConversation(ctx, tx, projectID, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteConversation(ctx context.Context, tx *sql.Tx, projectID, conversationID string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE conversation_rowid IN
		 (SELECT id FROM conversations WHERE project_id = ? AND conversation_id = ?)`,
		projectID, conversationID,
	); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM conversations WHERE project_id = ? AND conversation_id = ?",
		projectID, conversationID,
	); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// EnsureIndexed brings the index up to date with the files of one project,
// or of the whole corpus when projectID is empty. Stale conversations are
// re-indexed and rows for files that no longer exist are pruned. Projects
// and files that cannot be read are logged and skipped.
func (s *Store) EnsureIndexed(ctx context.Context, projectID string) (SweepReport, error) {
	var report SweepReport

	var projects []string
	if projectID == "" {
		ids, err := s.corpus.ProjectIDs()
		if err != nil {
			return report, err
		}
		projects = ids
	} else {
		if err := corpus.ValidateID(projectID); err != nil {
			return report, err
		}
		projects = []string{projectID}
	}

	present := make(map[conversationKey]bool)
	unreadable := make(map[string]bool)

	for _, proj := range projects {
		ids, err := s.corpus.ConversationIDs(proj)
		if err != nil {
			if !errors.Is(err, corpus.ErrNotFound) {
				logger.Warnf("skipping project %s: %v", proj, err)
				unreadable[proj] = true
			}
			continue
		}
		report.Projects++

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			present[conversationKey{proj, id}] = true
			report.Scanned++

			if !s.IsStale(ctx, proj, id) {
				continue
			}
			logger.Debugf("indexing %s/%s", proj, id)
			if err := s.IndexConversation(ctx, proj, id); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return report, ctxErr
				}
				logger.Warnf("failed to index %s/%s: %v", proj, id, err)
				report.Failed++
				continue
			}
			report.Indexed++
		}
	}

	pruned, err := s.pruneMissing(ctx, projectID, present, unreadable)
	report.Pruned = pruned
	if err != nil {
		return report, fmt.Errorf("prune: %w", err)
	}
	return report, nil
}

// pruneMissing deletes index rows, within the swept scope, whose
// conversation was not seen on disk.
func (s *Store) pruneMissing(ctx context.Context, projectID string, present map[conversationKey]bool, unreadable map[string]bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT project_id, conversation_id FROM conversations"
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	var stale []conversationKey
	for rows.Next() {
		var k conversationKey
		if err := rows.Scan(&k.projectID, &k.conversationID); err != nil {
			rows.Close()
			return 0, err
		}
		if !present[k] && !unreadable[k.projectID] {
			stale = append(stale, k)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, k := range stale {
		if err := deleteConversation(ctx, tx, k.projectID, k.conversationID); err != nil {
			return 0, err
		}
		logger.Debugf("pruned %s/%s", k.projectID, k.conversationID)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(stale), nil
}

// Search returns entries whose text contains query, ignoring case. Queries
// shorter than MinQueryLength characters return nothing without touching the
// database.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.project_id, c.conversation_id, e.content, e.entry_type, e.line_number
		 FROM entries e
		 JOIN conversations c ON e.conversation_rowid = c.id
		 WHERE `+foldFunc+`(e.content) LIKE ? ESCAPE '\'
		 ORDER BY e.id
		 LIMIT ?`,
		"%"+escapeLike(strings.ToLower(query))+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var content string
		if err := rows.Scan(&r.ProjectID, &r.ConversationID, &content, &r.Type, &r.Line); err != nil {
			return nil, err
		}
		r.Snippet, r.MatchIndex = snippet(content, query)
		results = append(results, r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet cuts up to snippetContext characters either side of the first
// case-insensitive occurrence of query, marking truncated ends with "...".
// The returned index is in characters; 0 when query does not occur.
func snippet(content, query string) (string, int) {
	text := []rune(content)
	idx := indexFold(text, []rune(query))
	pos := idx
	if pos < 0 {
		pos = 0
	}

	start := max(0, pos-snippetContext)
	end := min(len(text), pos+utf8.RuneCountInString(query)+snippetContext)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(text[start:end]))
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String(), pos
}

func indexFold(text, sub []rune) int {
	if len(sub) == 0 {
		return 0
	}
	for i := 0; i+len(sub) <= len(text); i++ {
		match := true
		for j, r := range sub {
			if unicode.ToLower(text[i+j]) != unicode.ToLower(r) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func (s *Store) Stats(ctx context.Context) (IndexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st IndexStats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&st.ConversationCount); err != nil {
		return st, fmt.Errorf("count conversations: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&st.EntryCount); err != nil {
		return st, fmt.Errorf("count entries: %w", err)
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(indexed_at) FROM conversations").Scan(&last); err != nil {
		return st, fmt.Errorf("last indexed: %w", err)
	}
	if last.Valid {
		st.LastIndexedAt, _ = time.Parse(time.RFC3339Nano, last.String)
	}
	return st, nil
}

// Reset empties the index.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM conversations"); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return tx.Commit()
}
