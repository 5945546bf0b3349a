// Package types defines the core data model shared by every keeper
// component: the five memory categories, the MemoryItem record and its
// category-specific field variants, content-addressed IDs and filename
// slugs.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Category identifies one of the five memory categories. Each category has
// its own directory on disk and its own mutation rules.
type Category string

const (
	CategoryFacts       Category = "facts"
	CategoryDecisions   Category = "decisions"
	CategoryGoals       Category = "goals"
	CategoryTasks       Category = "tasks"
	CategoryReflections Category = "reflections"
)

// Categories lists every category in its fixed canonical order. The order
// matters: directory scans, snapshots and the context digest all iterate it.
var Categories = []Category{
	CategoryFacts,
	CategoryDecisions,
	CategoryGoals,
	CategoryTasks,
	CategoryReflections,
}

// ParseCategory validates a category name from external input.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (expected one of facts, decisions, goals, tasks, reflections)", s)
}

// TaskStatus is a task's lifecycle state.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskDeferred   TaskStatus = "deferred"
)

// GoalStatus is a goal's lifecycle state.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalAchieved  GoalStatus = "achieved"
	GoalAbandoned GoalStatus = "abandoned"
)

// DecisionStatus is a decision's lifecycle state. A superseded decision is
// never edited; the replacement carries a supersedes link back to it.
type DecisionStatus string

const (
	DecisionActive     DecisionStatus = "active"
	DecisionSuperseded DecisionStatus = "superseded"
)

// TimeLayout is the timestamp format used in headers and filenames. Colons
// are replaced with dashes so the value is safe in a filename, and all
// timestamps are rendered in UTC.
const TimeLayout = "2006-01-02T15-04-05"

// MemoryItem is one durable memory record. Category-specific attributes live
// behind the Fields variant; everything else is common to all categories.
type MemoryItem struct {
	ID        string
	Category  Category
	Title     string
	Body      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
	Archived  bool
	Fields    Fields
}

// Clone returns a deep copy. Store internals hand out clones so callers can
// never mutate indexed state.
func (m *MemoryItem) Clone() *MemoryItem {
	if m == nil {
		return nil
	}
	out := *m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Fields != nil {
		out.Fields = m.Fields.clone()
	}
	return &out
}

// Fields is the sealed interface over the five category field variants.
// The unexported clone method keeps the set closed: only this package can
// add variants.
type Fields interface {
	Category() Category
	clone() Fields
}

// FactFields carries the attributes specific to facts.
type FactFields struct {
	Confidence *float64
	Source     string
}

func (FactFields) Category() Category { return CategoryFacts }

func (f FactFields) clone() Fields {
	if f.Confidence != nil {
		c := *f.Confidence
		f.Confidence = &c
	}
	return f
}

// DecisionFields carries the attributes specific to decisions.
type DecisionFields struct {
	Status     DecisionStatus
	Supersedes string
	Rationale  string
	Scope      string
}

func (DecisionFields) Category() Category { return CategoryDecisions }
func (f DecisionFields) clone() Fields    { return f }

// GoalFields carries the attributes specific to goals.
type GoalFields struct {
	Status   GoalStatus
	Priority string
	Horizon  string
}

func (GoalFields) Category() Category { return CategoryGoals }
func (f GoalFields) clone() Fields    { return f }

// TaskFields carries the attributes specific to tasks.
type TaskFields struct {
	Status      TaskStatus
	Assignee    string
	Deadline    string
	Priority    string
	RelatedGoal string
}

func (TaskFields) Category() Category { return CategoryTasks }
func (f TaskFields) clone() Fields    { return f }

// ReflectionFields carries the attributes specific to reflections.
type ReflectionFields struct {
	Context string
}

func (ReflectionFields) Category() Category { return CategoryReflections }
func (f ReflectionFields) clone() Fields    { return f }

// idLen is the number of hex characters kept from the content hash. 48 bits
// is plenty for a personal memory store while keeping IDs typeable.
const idLen = 12

// ItemID derives the content-addressed ID for an item: the leading hex of
// sha256 over title and body with a separator that neither can contain
// ambiguously. Identical content always maps to the same ID, which is what
// makes creation idempotent.
func ItemID(title, body string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + body))
	return hex.EncodeToString(sum[:])[:idLen]
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s_]+`)
)

// maxSlugLen bounds the slug portion of a filename.
const maxSlugLen = 50

// Slugify reduces a title to a lowercase filename-safe slug. Empty results
// (all-symbol titles) fall back to "untitled".
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLen {
		s = strings.Trim(s[:maxSlugLen], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}
