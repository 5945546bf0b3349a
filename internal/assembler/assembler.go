// Package assembler builds a bounded-size digest of current memory for
// inclusion in an external caller's working context (typically a system
// prompt). The digest is deterministic given the same on-disk state and
// budget.
package assembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

// Options configures how many recent facts and reflections the digest keeps.
type Options struct {
	// RecentFacts is the number of most recent facts included.
	RecentFacts int

	// RecentReflections is the number of most recent reflections included.
	RecentReflections int
}

// DefaultOptions returns the standard digest options.
func DefaultOptions() Options {
	return Options{RecentFacts: 10, RecentReflections: 5}
}

// Assembler renders memory snapshots into a single bounded text.
type Assembler struct {
	source storage.Snapshotter
	opts   Options
}

// New creates an assembler over the given snapshot source.
func New(source storage.Snapshotter, opts Options) *Assembler {
	if opts.RecentFacts <= 0 {
		opts.RecentFacts = DefaultOptions().RecentFacts
	}
	if opts.RecentReflections <= 0 {
		opts.RecentReflections = DefaultOptions().RecentReflections
	}
	return &Assembler{source: source, opts: opts}
}

// sectionSeparator joins the rendered sections.
const sectionSeparator = "\n\n---\n\n"

// Build selects, in priority order, active non-superseded decisions, active
// goals, open and in-progress tasks (deadline first, then priority), the
// most recent facts and the most recent reflections, and concatenates their
// summaries. When the rendered digest exceeds budget bytes, whole sections
// are dropped lowest-priority-first; if the top section alone still exceeds
// the budget it is truncated.
func (a *Assembler) Build(budget int) string {
	sections := []string{
		a.decisionsSection(),
		a.goalsSection(),
		a.tasksSection(),
		a.factsSection(),
		a.reflectionsSection(),
	}

	// Drop empty sections while preserving priority order.
	kept := sections[:0]
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}

	if budget <= 0 {
		return strings.Join(kept, sectionSeparator)
	}

	for len(kept) > 0 {
		out := strings.Join(kept, sectionSeparator)
		if len(out) <= budget {
			return out
		}
		if len(kept) == 1 {
			return out[:budget]
		}
		kept = kept[:len(kept)-1]
	}
	return ""
}

// decisionsSection renders active decisions. A decision referenced by any
// other decision's supersedes link is logically superseded and excluded,
// even though its own stored status still reads active.
func (a *Assembler) decisionsSection() string {
	items := a.source.Snapshot(types.CategoryDecisions)

	superseded := make(map[string]bool)
	for _, item := range items {
		if f, ok := item.Fields.(types.DecisionFields); ok && f.Supersedes != "" {
			superseded[f.Supersedes] = true
		}
	}

	var active []*types.MemoryItem
	for _, item := range items {
		f, ok := item.Fields.(types.DecisionFields)
		if !ok || f.Status != types.DecisionActive || superseded[item.ID] {
			continue
		}
		active = append(active, item)
	}
	if len(active) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Decisions")
	for _, item := range active {
		f := item.Fields.(types.DecisionFields)
		var meta []string
		if f.Scope != "" {
			meta = append(meta, "Scope: "+f.Scope)
		}
		if f.Supersedes != "" {
			meta = append(meta, "Supersedes: "+f.Supersedes)
		}
		writeEntry(&b, item, meta)
	}
	return b.String()
}

func (a *Assembler) goalsSection() string {
	var active []*types.MemoryItem
	for _, item := range a.source.Snapshot(types.CategoryGoals) {
		if f, ok := item.Fields.(types.GoalFields); ok && f.Status == types.GoalActive {
			active = append(active, item)
		}
	}
	if len(active) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Goals")
	for _, item := range active {
		f := item.Fields.(types.GoalFields)
		var meta []string
		if f.Priority != "" {
			meta = append(meta, "Priority: "+f.Priority)
		}
		if f.Horizon != "" {
			meta = append(meta, "Horizon: "+f.Horizon)
		}
		writeEntry(&b, item, meta)
	}
	return b.String()
}

// priorityRank orders free-form priority levels for task sorting. Unknown
// levels sort after the known ones.
func priorityRank(p string) int {
	switch strings.ToLower(p) {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	}
	return 4
}

func (a *Assembler) tasksSection() string {
	var open []*types.MemoryItem
	for _, item := range a.source.Snapshot(types.CategoryTasks) {
		f, ok := item.Fields.(types.TaskFields)
		if !ok {
			continue
		}
		if f.Status == types.TaskOpen || f.Status == types.TaskInProgress {
			open = append(open, item)
		}
	}
	if len(open) == 0 {
		return ""
	}

	// Deadline first (set deadlines before unset, ISO dates sort lexically),
	// then priority, then recency, then id for a total order.
	sort.Slice(open, func(i, j int) bool {
		fi := open[i].Fields.(types.TaskFields)
		fj := open[j].Fields.(types.TaskFields)
		if (fi.Deadline != "") != (fj.Deadline != "") {
			return fi.Deadline != ""
		}
		if fi.Deadline != fj.Deadline {
			return fi.Deadline < fj.Deadline
		}
		if priorityRank(fi.Priority) != priorityRank(fj.Priority) {
			return priorityRank(fi.Priority) < priorityRank(fj.Priority)
		}
		if !open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].CreatedAt.After(open[j].CreatedAt)
		}
		return open[i].ID < open[j].ID
	})

	var b strings.Builder
	b.WriteString("## Tasks")
	for _, item := range open {
		f := item.Fields.(types.TaskFields)
		meta := []string{"Status: " + string(f.Status), "Assignee: " + f.Assignee}
		if f.Deadline != "" {
			meta = append(meta, "Deadline: "+f.Deadline)
		}
		if f.Priority != "" {
			meta = append(meta, "Priority: "+f.Priority)
		}
		writeEntry(&b, item, meta)
	}
	return b.String()
}

func (a *Assembler) factsSection() string {
	items := a.source.Snapshot(types.CategoryFacts)
	if len(items) > a.opts.RecentFacts {
		items = items[:a.opts.RecentFacts]
	}
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Facts")
	for _, item := range items {
		f, _ := item.Fields.(types.FactFields)
		var meta []string
		if f.Confidence != nil {
			meta = append(meta, fmt.Sprintf("Confidence: %.2f", *f.Confidence))
		}
		if f.Source != "" {
			meta = append(meta, "Source: "+f.Source)
		}
		writeEntry(&b, item, meta)
	}
	return b.String()
}

func (a *Assembler) reflectionsSection() string {
	items := a.source.Snapshot(types.CategoryReflections)
	if len(items) > a.opts.RecentReflections {
		items = items[:a.opts.RecentReflections]
	}
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Reflections")
	for _, item := range items {
		f, _ := item.Fields.(types.ReflectionFields)
		var meta []string
		if f.Context != "" {
			meta = append(meta, "Context: "+f.Context)
		}
		writeEntry(&b, item, meta)
	}
	return b.String()
}

// writeEntry appends one item's summary to a section.
func writeEntry(b *strings.Builder, item *types.MemoryItem, meta []string) {
	b.WriteString("\n\n### " + item.Title)
	if len(item.Tags) > 0 {
		meta = append([]string{"Tags: " + strings.Join(item.Tags, ", ")}, meta...)
	}
	if len(meta) > 0 {
		b.WriteString("\n(" + strings.Join(meta, " | ") + ")")
	}
	b.WriteString("\n" + item.Body)
}
