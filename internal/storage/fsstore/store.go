// Package fsstore is the file-backed storage engine for keeper.
//
// Every memory item is one markdown file with a YAML header block under
// <root>/<category>/, archived items under <root>/<category>/archived/.
// All mutations publish through a write-temp-then-rename cycle so a reader
// racing a writer observes either the pre-write or post-write file, never a
// partial one. A crash between temp write and rename leaves the committed
// state untouched and an orphaned dot-file that directory scans skip.
package fsstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/keeper/internal/schema"
	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

const archivedDirName = "archived"

// parseCacheSize bounds the read-path parse cache. Entries are revalidated
// against file mtime and size, so a hit never hides an external edit.
const parseCacheSize = 512

type cachedParse struct {
	modTime time.Time
	size    int64
	item    *types.MemoryItem
}

// Store is the file-backed ItemStore implementation. One Store instance owns
// the directory tree under its root; no other component writes there.
type Store struct {
	root  string
	dirs  map[types.Category]string
	idx   *indexCache
	locks *keyedMutex
	cache *lru.Cache[string, cachedParse]
	now   func() time.Time
}

// compile-time interface checks
var (
	_ storage.ItemStore   = (*Store)(nil)
	_ storage.Snapshotter = (*Store)(nil)
)

// New opens (creating if needed) the memory tree rooted at root and rebuilds
// the in-memory index from disk.
func New(root string) (*Store, error) {
	dirs := make(map[types.Category]string, len(types.Categories))
	for _, c := range types.Categories {
		dir := filepath.Join(root, string(c))
		if err := os.MkdirAll(filepath.Join(dir, archivedDirName), 0o700); err != nil {
			return nil, fmt.Errorf("create category directory %q: %w", dir, err)
		}
		dirs[c] = dir
	}

	cache, err := lru.New[string, cachedParse](parseCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}

	s := &Store{
		root:  root,
		dirs:  dirs,
		idx:   newIndexCache(),
		locks: newKeyedMutex(),
		cache: cache,
		now:   time.Now,
	}
	if err := s.RefreshIndex(); err != nil {
		return nil, fmt.Errorf("rebuild index from %q: %w", root, err)
	}
	return s, nil
}

// Close releases the store's resources. The index dies with the store; a new
// instance rebuilds it from disk.
func (s *Store) Close() error {
	s.cache.Purge()
	return nil
}

// RefreshIndex rebuilds the index from the filesystem. Called at startup and
// by the external-edit watcher.
func (s *Store) RefreshIndex() error {
	return s.idx.rebuild(s.dirs, s.parseFile)
}

// Snapshot implements storage.Snapshotter.
func (s *Store) Snapshot(categories ...types.Category) []*types.MemoryItem {
	return s.idx.snapshot(categories...)
}

// WatchDirs returns every directory holding item files (live and archived,
// per category), for callers that watch the tree for external edits.
func (s *Store) WatchDirs() []string {
	out := make([]string, 0, 2*len(types.Categories))
	for _, c := range types.Categories {
		out = append(out, s.dirs[c], filepath.Join(s.dirs[c], archivedDirName))
	}
	return out
}

// Create implements storage.ItemStore.
func (s *Store) Create(ctx context.Context, title, body string, tags []string, fields types.Fields) (*types.MemoryItem, error) {
	if err := schema.ValidateCreate(title, body, fields); err != nil {
		return nil, err
	}
	cat := fields.Category()
	id := types.ItemID(title, body)

	key := lockKey(cat, id)
	s.locks.lock(key)
	defer s.locks.unlock(key)

	// Idempotent creation: identical content maps to the same id, and an
	// existing id is returned unchanged rather than duplicated.
	if existing, ok := s.idx.get(cat, id); ok {
		return existing.item, nil
	}

	now := s.now().UTC().Truncate(time.Second)
	item := &types.MemoryItem{
		ID:        id,
		Category:  cat,
		Title:     title,
		Body:      body,
		Tags:      append([]string(nil), tags...),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    fields,
	}

	path := filepath.Join(s.dirs[cat], itemFilename(item))
	if err := s.publish(item, path); err != nil {
		return nil, err
	}
	s.idx.put(item, path)
	log.Printf("fsstore: created %s/%s (%s)", cat, id, item.Title)
	return item.Clone(), nil
}

// Read implements storage.ItemStore. It always parses from disk — the file
// is the source of truth and this is where hand-edited corruption surfaces.
func (s *Store) Read(ctx context.Context, category types.Category, id string) (*types.MemoryItem, error) {
	path, err := s.resolvePath(category, id)
	if err != nil {
		return nil, err
	}
	item, err := s.parseFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.idx.remove(category, id)
			return nil, fmt.Errorf("%s/%s: %w", category, id, storage.ErrNotFound)
		}
		return nil, err
	}
	return item.Clone(), nil
}

// Update implements storage.ItemStore.
func (s *Store) Update(ctx context.Context, category types.Category, id string, patch storage.Patch) (*types.MemoryItem, error) {
	if err := schema.ValidatePatch(category, patch); err != nil {
		return nil, err
	}
	if patch.IsZero() {
		return nil, &storage.SchemaViolationError{Category: category, Field: "patch", Reason: "no fields to update"}
	}

	key := lockKey(category, id)
	s.locks.lock(key)
	defer s.locks.unlock(key)

	path, err := s.resolvePath(category, id)
	if err != nil {
		return nil, err
	}
	item, err := s.parseFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.idx.remove(category, id)
			return nil, fmt.Errorf("%s/%s: %w", category, id, storage.ErrNotFound)
		}
		return nil, err
	}
	item = item.Clone()

	if err := s.applyPatch(item, patch); err != nil {
		return nil, err
	}
	item.UpdatedAt = s.now().UTC().Truncate(time.Second)

	// Same path: the filename keeps its creation-time slug even when a
	// title refinement changes the title. id and created_at never move.
	if err := s.publish(item, path); err != nil {
		return nil, err
	}
	s.idx.put(item, path)
	log.Printf("fsstore: updated %s/%s", category, id)
	return item.Clone(), nil
}

// UpdateTaskStatus implements storage.ItemStore.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status types.TaskStatus) (*types.MemoryItem, error) {
	v := string(status)
	return s.Update(ctx, types.CategoryTasks, id, storage.Patch{Status: &v})
}

// Delete implements storage.ItemStore.
func (s *Store) Delete(ctx context.Context, category types.Category, id string) error {
	rule := schema.For(category)
	if rule.Deletion == schema.Forbidden {
		return fmt.Errorf("%s/%s: %w", category, id, storage.ErrDeletionForbidden)
	}

	key := lockKey(category, id)
	s.locks.lock(key)
	defer s.locks.unlock(key)

	path, err := s.resolvePath(category, id)
	if err != nil {
		return err
	}

	switch rule.Deletion {
	case schema.HardDelete:
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				s.idx.remove(category, id)
				return fmt.Errorf("%s/%s: %w", category, id, storage.ErrNotFound)
			}
			return fmt.Errorf("delete %s: %w", path, err)
		}
		s.cache.Remove(path)
		s.idx.remove(category, id)
		log.Printf("fsstore: deleted %s/%s", category, id)
		return nil

	case schema.ArchiveOnly:
		item, err := s.parseFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				s.idx.remove(category, id)
				return fmt.Errorf("%s/%s: %w", category, id, storage.ErrNotFound)
			}
			return err
		}
		if item.Archived {
			return nil // already archived; archiving twice is a no-op
		}
		item = item.Clone()
		item.Archived = true
		item.UpdatedAt = s.now().UTC().Truncate(time.Second)

		archivedPath := filepath.Join(s.dirs[category], archivedDirName, filepath.Base(path))
		if err := s.publish(item, archivedPath); err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove live copy %s: %w", path, err)
		}
		s.cache.Remove(path)
		s.idx.put(item, archivedPath)
		log.Printf("fsstore: archived %s/%s", category, id)
		return nil
	}
	return fmt.Errorf("%s: unknown deletion policy %q", category, rule.Deletion)
}

// List implements storage.ItemStore.
func (s *Store) List(ctx context.Context, category types.Category, opts storage.ListOptions) ([]*types.MemoryItem, error) {
	if _, err := types.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	return s.idx.list(category, opts.IncludeArchived), nil
}

// applyPatch mutates item in place according to an already schema-checked
// patch. Status changes are validated here against the item's current value.
func (s *Store) applyPatch(item *types.MemoryItem, patch storage.Patch) error {
	if patch.Status != nil {
		if err := schema.ValidateTransition(item.Category, currentStatus(item), *patch.Status); err != nil {
			return err
		}
	}
	if patch.Title != nil {
		item.Title = *patch.Title
	}
	if patch.Body != nil {
		item.Body = *patch.Body
	}
	if patch.Tags != nil {
		item.Tags = append([]string(nil), patch.Tags...)
	}

	switch f := item.Fields.(type) {
	case types.FactFields:
		if patch.Confidence != nil {
			c := *patch.Confidence
			f.Confidence = &c
		}
		if patch.Source != nil {
			f.Source = *patch.Source
		}
		item.Fields = f
	case types.GoalFields:
		if patch.Status != nil {
			f.Status = types.GoalStatus(*patch.Status)
		}
		if patch.Priority != nil {
			f.Priority = *patch.Priority
		}
		if patch.Horizon != nil {
			f.Horizon = *patch.Horizon
		}
		item.Fields = f
	case types.TaskFields:
		if patch.Status != nil {
			f.Status = types.TaskStatus(*patch.Status)
		}
		item.Fields = f
	}
	return nil
}

// currentStatus extracts the status field of a task or goal.
func currentStatus(item *types.MemoryItem) string {
	switch f := item.Fields.(type) {
	case types.TaskFields:
		return string(f.Status)
	case types.GoalFields:
		return string(f.Status)
	}
	return ""
}

// publish writes the item to a temp file in the destination directory and
// renames it into place. Rename within one directory is atomic, so no reader
// ever observes a partially written record.
func (s *Store) publish(item *types.MemoryItem, path string) error {
	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish %s: %w", path, err)
	}
	s.cache.Remove(path)
	return nil
}

// resolvePath finds the on-disk path for (category, id), consulting the
// index first and falling back to a directory scan so items written by an
// external editor are still reachable before the next index refresh.
func (s *Store) resolvePath(category types.Category, id string) (string, error) {
	if _, err := types.ParseCategory(string(category)); err != nil {
		return "", err
	}
	if e, ok := s.idx.get(category, id); ok {
		return e.path, nil
	}

	marker := "-" + id + "-"
	for _, dir := range []string{s.dirs[category], filepath.Join(s.dirs[category], archivedDirName)} {
		names, err := itemFilenames(dir)
		if err != nil {
			return "", fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, name := range names {
			if strings.Contains(name, marker) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	return "", fmt.Errorf("%s/%s: %w", category, id, storage.ErrNotFound)
}

// parseFile reads and decodes one item file, going through the LRU parse
// cache. A cached entry is only used when mtime and size still match, so
// external edits are never masked.
func (s *Store) parseFile(path string) (*types.MemoryItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if c, ok := s.cache.Get(path); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.item, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	item, err := decodeItem(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.cache.Add(path, cachedParse{modTime: info.ModTime(), size: info.Size(), item: item})
	return item, nil
}

func lockKey(category types.Category, id string) string {
	return string(category) + "/" + id
}
