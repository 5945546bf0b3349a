// Package storage defines the storage-layer contracts for the keeper memory
// system: the item store interface, its error taxonomy, and the option and
// patch types shared by implementations and callers.
//
// The interfaces are deliberately small so that the file-backed engine under
// storage/fsstore can be swapped out in tests without dragging in the whole
// implementation.
package storage

import (
	"context"

	"github.com/scrypster/keeper/pkg/types"
)

// ItemStore provides validated, category-aware CRUD over memory items.
//
// All mutating operations on the same (category, id) identity are serialized
// by the implementation; operations on different identities proceed
// independently. Every operation is a bounded local filesystem action, so
// the store imposes no timeouts of its own — the context is threaded through
// for caller-side composition only.
type ItemStore interface {
	// Create validates the fields against the category schema and persists
	// a new item atomically. Creating identical (title, body) content twice
	// is idempotent: the existing item is returned unchanged.
	Create(ctx context.Context, title, body string, tags []string, fields types.Fields) (*types.MemoryItem, error)

	// Read loads and parses one item from disk.
	// Returns ErrNotFound if absent, ErrCorruptRecord if the on-disk header
	// is missing required fields.
	Read(ctx context.Context, category types.Category, id string) (*types.MemoryItem, error)

	// Update applies a patch subject to the category's mutability class.
	// Immutable categories fail with ErrImmutable, append-only categories
	// with ErrAppendOnly; status changes are validated against the
	// category's transition graph.
	Update(ctx context.Context, category types.Category, id string, patch Patch) (*types.MemoryItem, error)

	// UpdateTaskStatus is shorthand for a task status transition.
	UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.MemoryItem, error)

	// Delete applies the category's deletion policy: hard-delete removes
	// the file, archive-only moves it under archived/, forbidden fails with
	// ErrDeletionForbidden.
	Delete(ctx context.Context, category types.Category, id string) error

	// List returns the category's items ordered newest-first by creation
	// time. Archived items are excluded unless opts.IncludeArchived is set.
	List(ctx context.Context, category types.Category, opts ListOptions) ([]*types.MemoryItem, error)

	// Close releases any resources held by the store.
	Close() error
}

// Snapshotter exposes a consistent in-memory view of the current item set.
// The search engine and context assembler read through this rather than
// re-scanning the filesystem.
type Snapshotter interface {
	// Snapshot returns copies of all non-archived items in the given
	// categories (all categories when the slice is empty).
	Snapshot(categories ...types.Category) []*types.MemoryItem
}
