package storage

import (
	"errors"
	"fmt"

	"github.com/scrypster/keeper/pkg/types"
)

var (
	// ErrNotFound indicates that no item with the given id exists in the
	// category.
	ErrNotFound = errors.New("memory item not found")

	// ErrSchemaViolation indicates a required field is missing or a status
	// value is outside the category's allowed set.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrImmutable indicates a mutation was attempted on an immutable
	// category (decisions).
	ErrImmutable = errors.New("category is immutable")

	// ErrAppendOnly indicates a mutation was attempted on an append-only
	// category (reflections).
	ErrAppendOnly = errors.New("category is append-only")

	// ErrInvalidTransition indicates a task or goal status change that the
	// category's transition graph does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDeletionForbidden indicates a delete on a category whose deletion
	// policy is forbidden (decisions, reflections).
	ErrDeletionForbidden = errors.New("deletion forbidden")

	// ErrCorruptRecord indicates an on-disk file is missing required header
	// fields. Corruption is surfaced, never auto-repaired.
	ErrCorruptRecord = errors.New("corrupt memory record")
)

// SchemaViolationError reports which field of which category failed
// validation. It wraps ErrSchemaViolation so callers can match with
// errors.Is.
type SchemaViolationError struct {
	Category types.Category
	Field    string
	Reason   string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation in %s: field %q: %s", e.Category, e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrSchemaViolation) work.
func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

// Patch describes a partial update to an item. Nil pointers mean "leave
// unchanged". Which fields a category accepts is decided by the schema, not
// by the caller.
type Patch struct {
	// Title replaces the item title (facts, goals).
	Title *string

	// Body replaces the free-text body (facts, goals).
	Body *string

	// Tags replaces the tag set when non-nil (facts, goals).
	Tags []string

	// Status requests a status transition (tasks, goals). Validated
	// against the category's transition graph.
	Status *string

	// Priority replaces the priority level (goals).
	Priority *string

	// Horizon replaces the time horizon (goals).
	Horizon *string

	// Confidence replaces the confidence level (facts).
	Confidence *float64

	// Source replaces the source annotation (facts).
	Source *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Body == nil && p.Tags == nil &&
		p.Status == nil && p.Priority == nil && p.Horizon == nil &&
		p.Confidence == nil && p.Source == nil
}

// ListOptions controls list behavior.
type ListOptions struct {
	// IncludeArchived includes items under the archived/ subtree.
	// By default archived items are excluded.
	IncludeArchived bool
}
