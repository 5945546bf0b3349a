// Package schema is the static rule table for the five memory categories.
//
// Every category's required fields, allowed status values, mutability class,
// deletion policy and status-transition graph live here, in one place. The
// store consults this table at write time; nothing else in the system is
// allowed to decide what a category permits.
package schema

import (
	"fmt"

	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

// Mutability classifies how a category's items may change after creation.
type Mutability string

const (
	// MutableWithRules allows updates, restricted to the fields the schema
	// marks updatable.
	MutableWithRules Mutability = "mutable-with-rules"

	// Immutable forbids any in-place mutation (decisions).
	Immutable Mutability = "immutable"

	// AppendOnly forbids mutation of existing items; new items may always
	// be appended (reflections).
	AppendOnly Mutability = "append-only"
)

// DeletionPolicy classifies what delete means for a category.
type DeletionPolicy string

const (
	// HardDelete physically removes the file (facts only, used rarely).
	HardDelete DeletionPolicy = "hard-delete"

	// ArchiveOnly moves the file under the archived/ subtree instead of
	// deleting it (goals, tasks).
	ArchiveOnly DeletionPolicy = "archive-only"

	// Forbidden rejects deletion outright (decisions, reflections).
	Forbidden DeletionPolicy = "forbidden"
)

// Rule is one category's entry in the table.
type Rule struct {
	Mutability Mutability
	Deletion   DeletionPolicy

	// Statuses is the allowed status domain, nil for categories without a
	// status field.
	Statuses []string

	// Transitions is the directed status-transition graph. A status absent
	// from the map is terminal.
	Transitions map[string][]string
}

// rules is the full table. It is package-private and never mutated after
// init; For returns entries by value.
var rules = map[types.Category]Rule{
	types.CategoryFacts: {
		Mutability: MutableWithRules,
		Deletion:   HardDelete,
	},
	types.CategoryDecisions: {
		Mutability: Immutable,
		Deletion:   Forbidden,
		Statuses:   []string{string(types.DecisionActive), string(types.DecisionSuperseded)},
	},
	types.CategoryGoals: {
		Mutability: MutableWithRules,
		Deletion:   ArchiveOnly,
		Statuses:   []string{string(types.GoalActive), string(types.GoalAchieved), string(types.GoalAbandoned)},
		Transitions: map[string][]string{
			string(types.GoalActive): {string(types.GoalAchieved), string(types.GoalAbandoned)},
		},
	},
	types.CategoryTasks: {
		Mutability: MutableWithRules,
		Deletion:   ArchiveOnly,
		Statuses: []string{
			string(types.TaskOpen), string(types.TaskInProgress),
			string(types.TaskDone), string(types.TaskDeferred),
		},
		Transitions: map[string][]string{
			string(types.TaskOpen):       {string(types.TaskInProgress)},
			string(types.TaskInProgress): {string(types.TaskDone), string(types.TaskDeferred)},
			string(types.TaskDeferred):   {string(types.TaskOpen)},
		},
	},
	types.CategoryReflections: {
		Mutability: AppendOnly,
		Deletion:   Forbidden,
	},
}

// For returns the rule entry for a category.
func For(c types.Category) Rule {
	return rules[c]
}

// statusAllowed reports whether s is in the category's status domain.
func statusAllowed(r Rule, s string) bool {
	for _, allowed := range r.Statuses {
		if s == allowed {
			return true
		}
	}
	return false
}

// ValidateCreate checks title, body and the typed field variant against the
// category's creation rules. A failure is always a SchemaViolationError.
func ValidateCreate(title, body string, fields types.Fields) error {
	if fields == nil {
		return &storage.SchemaViolationError{Field: "fields", Reason: "category fields are required"}
	}
	cat := fields.Category()
	if title == "" {
		return &storage.SchemaViolationError{Category: cat, Field: "title", Reason: "must not be empty"}
	}
	if body == "" {
		return &storage.SchemaViolationError{Category: cat, Field: "body", Reason: "must not be empty"}
	}

	r := rules[cat]
	switch f := fields.(type) {
	case types.FactFields:
		if f.Confidence != nil && (*f.Confidence < 0.0 || *f.Confidence > 1.0) {
			return &storage.SchemaViolationError{Category: cat, Field: "confidence", Reason: "must be within [0.0, 1.0]"}
		}
	case types.DecisionFields:
		if !statusAllowed(r, string(f.Status)) {
			return &storage.SchemaViolationError{Category: cat, Field: "status",
				Reason: fmt.Sprintf("%q is not one of %v", f.Status, r.Statuses)}
		}
	case types.GoalFields:
		if !statusAllowed(r, string(f.Status)) {
			return &storage.SchemaViolationError{Category: cat, Field: "status",
				Reason: fmt.Sprintf("%q is not one of %v", f.Status, r.Statuses)}
		}
	case types.TaskFields:
		if !statusAllowed(r, string(f.Status)) {
			return &storage.SchemaViolationError{Category: cat, Field: "status",
				Reason: fmt.Sprintf("%q is not one of %v", f.Status, r.Statuses)}
		}
		if f.Assignee == "" {
			return &storage.SchemaViolationError{Category: cat, Field: "assignee", Reason: "is required and must not be empty"}
		}
	case types.ReflectionFields:
		// No extra constraints.
	default:
		return &storage.SchemaViolationError{Category: cat, Field: "fields",
			Reason: fmt.Sprintf("unknown field variant %T", fields)}
	}
	return nil
}

// ValidateTransition checks a status change against the category's transition
// graph. A status with no outgoing edges is terminal.
func ValidateTransition(c types.Category, from, to string) error {
	r := rules[c]
	if !statusAllowed(r, to) {
		return &storage.SchemaViolationError{Category: c, Field: "status",
			Reason: fmt.Sprintf("%q is not one of %v", to, r.Statuses)}
	}
	for _, next := range r.Transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%s status %q -> %q: %w", c, from, to, storage.ErrInvalidTransition)
}

// ValidatePatch checks that a patch only touches fields the category marks
// updatable. Status transitions are validated separately by the store, which
// knows the item's current status.
//
//   - facts: any field (intended for contradiction-correction)
//   - goals: status, priority, horizon, and content refinement (title/body/tags)
//   - tasks: status only
//   - decisions, reflections: rejected before this is ever consulted
func ValidatePatch(c types.Category, p storage.Patch) error {
	switch rules[c].Mutability {
	case Immutable:
		return fmt.Errorf("%s: %w", c, storage.ErrImmutable)
	case AppendOnly:
		return fmt.Errorf("%s: %w", c, storage.ErrAppendOnly)
	}

	deny := func(field string) error {
		return &storage.SchemaViolationError{Category: c, Field: field, Reason: "not updatable for this category"}
	}

	switch c {
	case types.CategoryFacts:
		if p.Status != nil {
			return deny("status")
		}
		if p.Priority != nil {
			return deny("priority")
		}
		if p.Horizon != nil {
			return deny("horizon")
		}
		if p.Confidence != nil && (*p.Confidence < 0.0 || *p.Confidence > 1.0) {
			return &storage.SchemaViolationError{Category: c, Field: "confidence", Reason: "must be within [0.0, 1.0]"}
		}
	case types.CategoryGoals:
		if p.Confidence != nil {
			return deny("confidence")
		}
		if p.Source != nil {
			return deny("source")
		}
	case types.CategoryTasks:
		if p.Title != nil || p.Body != nil || p.Tags != nil {
			return deny("content")
		}
		if p.Priority != nil || p.Horizon != nil || p.Confidence != nil || p.Source != nil {
			return deny("metadata")
		}
		if p.Status == nil {
			return &storage.SchemaViolationError{Category: c, Field: "status", Reason: "tasks accept status updates only"}
		}
	}
	if p.Title != nil && *p.Title == "" {
		return &storage.SchemaViolationError{Category: c, Field: "title", Reason: "must not be empty"}
	}
	if p.Body != nil && *p.Body == "" {
		return &storage.SchemaViolationError{Category: c, Field: "body", Reason: "must not be empty"}
	}
	return nil
}
