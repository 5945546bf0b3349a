// Package journal is the daily narrative log: one markdown file per UTC
// calendar day, append-only. The journal is not memory — it is never treated
// as authoritative knowledge, never searched, and never subject to category
// rules. It exists so the user can review past activity and the agent can
// reorient itself temporally.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// dateLayout names the per-day files.
const dateLayout = "2006-01-02"

// Store appends to and reads from the journal directory.
type Store struct {
	dir string
	now func() time.Time
}

// New opens (creating if needed) the journal directory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create journal directory %q: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Append adds a timestamped entry to today's journal file, creating the file
// with a date heading on first write. Existing content is never rewritten —
// the file is opened in append mode only.
func (s *Store) Append(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return fmt.Errorf("journal entry must not be empty")
	}

	now := s.now().UTC()
	path := filepath.Join(s.dir, now.Format(dateLayout)+".md")

	var b strings.Builder
	if _, err := os.Stat(path); os.IsNotExist(err) {
		b.WriteString(fmt.Sprintf("# Journal — %s\n", now.Format(dateLayout)))
	}
	b.WriteString(fmt.Sprintf("\n## %s UTC\n\n%s\n", now.Format("15:04"), entry))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open journal file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append to journal %s: %w", path, err)
	}
	return nil
}

// Read returns the raw journal text for a date in YYYY-MM-DD form.
// A day without a journal file reads as empty, not as an error.
func (s *Store) Read(date string) (string, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("invalid journal date %q: %w", date, err)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, date+".md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read journal for %s: %w", date, err)
	}
	return string(data), nil
}

// Today returns the raw journal text for the current UTC day.
func (s *Store) Today() (string, error) {
	return s.Read(s.now().UTC().Format(dateLayout))
}

// Dates lists the days that have journal entries, oldest first.
func (s *Store) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list journal directory: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		date := strings.TrimSuffix(name, ".md")
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}
