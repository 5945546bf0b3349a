package fsstore

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

// header is the on-disk YAML frontmatter block. It enumerates the common
// fields plus every category-specific field; omitempty keeps each file down
// to the fields its category actually uses.
type header struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Type      string   `yaml:"type"`
	CreatedAt string   `yaml:"created_at"`
	UpdatedAt string   `yaml:"updated_at"`
	Tags      []string `yaml:"tags,omitempty"`
	Archived  bool     `yaml:"archived,omitempty"`

	// facts
	Confidence *float64 `yaml:"confidence,omitempty"`
	Source     string   `yaml:"source,omitempty"`

	// decisions / goals / tasks
	Status string `yaml:"status,omitempty"`

	// decisions
	Supersedes string `yaml:"supersedes,omitempty"`
	Rationale  string `yaml:"rationale,omitempty"`
	Scope      string `yaml:"scope,omitempty"`

	// goals / tasks
	Priority string `yaml:"priority,omitempty"`

	// goals
	Horizon string `yaml:"horizon,omitempty"`

	// tasks
	Assignee    string `yaml:"assignee,omitempty"`
	Deadline    string `yaml:"deadline,omitempty"`
	RelatedGoal string `yaml:"related_goal,omitempty"`

	// reflections
	Context string `yaml:"context,omitempty"`
}

const frontmatterDelim = "---"

// encodeItem renders an item into its canonical file content: a YAML header
// block between --- delimiters, a blank separator line, then the raw body
// byte-for-byte.
func encodeItem(item *types.MemoryItem) ([]byte, error) {
	h := header{
		ID:        item.ID,
		Title:     item.Title,
		Type:      string(item.Category),
		CreatedAt: item.CreatedAt.UTC().Format(types.TimeLayout),
		UpdatedAt: item.UpdatedAt.UTC().Format(types.TimeLayout),
		Tags:      item.Tags,
		Archived:  item.Archived,
	}

	switch f := item.Fields.(type) {
	case types.FactFields:
		h.Confidence = f.Confidence
		h.Source = f.Source
	case types.DecisionFields:
		h.Status = string(f.Status)
		h.Supersedes = f.Supersedes
		h.Rationale = f.Rationale
		h.Scope = f.Scope
	case types.GoalFields:
		h.Status = string(f.Status)
		h.Priority = f.Priority
		h.Horizon = f.Horizon
	case types.TaskFields:
		h.Status = string(f.Status)
		h.Assignee = f.Assignee
		h.Deadline = f.Deadline
		h.Priority = f.Priority
		h.RelatedGoal = f.RelatedGoal
	case types.ReflectionFields:
		h.Context = f.Context
	default:
		return nil, fmt.Errorf("encode %s/%s: unknown field variant %T", item.Category, item.ID, item.Fields)
	}

	meta, err := yaml.Marshal(&h)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", item.Category, item.ID, err)
	}

	var b strings.Builder
	b.WriteString(frontmatterDelim + "\n")
	b.Write(meta)
	b.WriteString(frontmatterDelim + "\n\n")
	// Exactly one newline is appended and exactly one is stripped on decode,
	// so bodies round-trip byte-for-byte, trailing newlines included.
	b.WriteString(item.Body)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// decodeItem parses file content back into an item. Structural problems and
// missing required header fields surface as ErrCorruptRecord — hand-edited
// files are rejected, never repaired.
func decodeItem(data []byte) (*types.MemoryItem, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, fmt.Errorf("missing frontmatter delimiter: %w", storage.ErrCorruptRecord)
	}
	rest := text[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter block: %w", storage.ErrCorruptRecord)
	}
	meta := rest[:end+1]
	body := rest[end+1+len(frontmatterDelim)+1:]
	// One blank separator line between header and body is part of the
	// framing, not the body.
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimSuffix(body, "\n")

	var h header
	if err := yaml.Unmarshal([]byte(meta), &h); err != nil {
		return nil, fmt.Errorf("invalid header block: %v: %w", err, storage.ErrCorruptRecord)
	}

	if h.ID == "" {
		return nil, fmt.Errorf("missing required header field %q: %w", "id", storage.ErrCorruptRecord)
	}
	if h.Title == "" {
		return nil, fmt.Errorf("missing required header field %q: %w", "title", storage.ErrCorruptRecord)
	}
	if h.CreatedAt == "" {
		return nil, fmt.Errorf("missing required header field %q: %w", "created_at", storage.ErrCorruptRecord)
	}
	cat, err := types.ParseCategory(h.Type)
	if err != nil {
		return nil, fmt.Errorf("missing or invalid header field %q: %w", "type", storage.ErrCorruptRecord)
	}

	createdAt, err := time.Parse(types.TimeLayout, h.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", h.CreatedAt, storage.ErrCorruptRecord)
	}
	updatedAt := createdAt
	if h.UpdatedAt != "" {
		updatedAt, err = time.Parse(types.TimeLayout, h.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid updated_at %q: %w", h.UpdatedAt, storage.ErrCorruptRecord)
		}
	}

	var fields types.Fields
	switch cat {
	case types.CategoryFacts:
		fields = types.FactFields{Confidence: h.Confidence, Source: h.Source}
	case types.CategoryDecisions:
		if h.Status == "" {
			return nil, fmt.Errorf("decision missing required header field %q: %w", "status", storage.ErrCorruptRecord)
		}
		fields = types.DecisionFields{
			Status:     types.DecisionStatus(h.Status),
			Supersedes: h.Supersedes,
			Rationale:  h.Rationale,
			Scope:      h.Scope,
		}
	case types.CategoryGoals:
		if h.Status == "" {
			return nil, fmt.Errorf("goal missing required header field %q: %w", "status", storage.ErrCorruptRecord)
		}
		fields = types.GoalFields{
			Status:   types.GoalStatus(h.Status),
			Priority: h.Priority,
			Horizon:  h.Horizon,
		}
	case types.CategoryTasks:
		if h.Status == "" {
			return nil, fmt.Errorf("task missing required header field %q: %w", "status", storage.ErrCorruptRecord)
		}
		if h.Assignee == "" {
			return nil, fmt.Errorf("task missing required header field %q: %w", "assignee", storage.ErrCorruptRecord)
		}
		fields = types.TaskFields{
			Status:      types.TaskStatus(h.Status),
			Assignee:    h.Assignee,
			Deadline:    h.Deadline,
			Priority:    h.Priority,
			RelatedGoal: h.RelatedGoal,
		}
	case types.CategoryReflections:
		fields = types.ReflectionFields{Context: h.Context}
	}

	return &types.MemoryItem{
		ID:        h.ID,
		Category:  cat,
		Title:     h.Title,
		Body:      body,
		Tags:      h.Tags,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Archived:  h.Archived,
		Fields:    fields,
	}, nil
}

// itemFilename builds the canonical file name:
// {created_at}-{id}-{category}-{slug}.md
func itemFilename(item *types.MemoryItem) string {
	return fmt.Sprintf("%s-%s-%s-%s.md",
		item.CreatedAt.UTC().Format(types.TimeLayout),
		item.ID,
		item.Category,
		types.Slugify(item.Title),
	)
}
