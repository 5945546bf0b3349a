package fsstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/scrypster/keeper/pkg/types"
)

// indexEntry pairs an item snapshot with the path it was read from.
type indexEntry struct {
	item *types.MemoryItem
	path string
}

// indexCache is the in-memory index over all items, rebuilt from disk at
// store construction and kept incrementally consistent by the store's write
// path. The filesystem stays the single source of truth; the cache is a
// derived accelerator whose lifetime is tied to one store instance.
type indexCache struct {
	mu      sync.RWMutex
	entries map[types.Category]map[string]indexEntry
}

func newIndexCache() *indexCache {
	idx := &indexCache{entries: make(map[types.Category]map[string]indexEntry)}
	for _, c := range types.Categories {
		idx.entries[c] = make(map[string]indexEntry)
	}
	return idx
}

// rebuild scans the category directories (live and archived subtrees) and
// replaces the index contents wholesale. Unreadable or corrupt files are
// skipped: the index only accelerates, it never invents state, and a corrupt
// file still surfaces as ErrCorruptRecord on direct Read.
func (idx *indexCache) rebuild(dirs map[types.Category]string, parse func(path string) (*types.MemoryItem, error)) error {
	fresh := make(map[types.Category]map[string]indexEntry, len(types.Categories))
	for _, c := range types.Categories {
		fresh[c] = make(map[string]indexEntry)
	}

	for _, cat := range types.Categories {
		for _, dir := range []string{dirs[cat], filepath.Join(dirs[cat], archivedDirName)} {
			names, err := itemFilenames(dir)
			if err != nil {
				return err
			}
			for _, name := range names {
				path := filepath.Join(dir, name)
				item, err := parse(path)
				if err != nil {
					continue
				}
				if item.Category != cat {
					continue
				}
				fresh[cat][item.ID] = indexEntry{item: item, path: path}
			}
		}
	}

	idx.mu.Lock()
	idx.entries = fresh
	idx.mu.Unlock()
	return nil
}

// itemFilenames lists the .md files in dir, sorted for deterministic
// iteration. Temp files (dot-prefixed) and subdirectories are skipped.
// A missing directory is treated as empty.
func itemFilenames(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// put records or replaces an item in the index.
func (idx *indexCache) put(item *types.MemoryItem, path string) {
	idx.mu.Lock()
	idx.entries[item.Category][item.ID] = indexEntry{item: item.Clone(), path: path}
	idx.mu.Unlock()
}

// remove drops an item from the index.
func (idx *indexCache) remove(category types.Category, id string) {
	idx.mu.Lock()
	delete(idx.entries[category], id)
	idx.mu.Unlock()
}

// get returns the entry for (category, id), if present.
func (idx *indexCache) get(category types.Category, id string) (indexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[category][id]
	if !ok {
		return indexEntry{}, false
	}
	return indexEntry{item: e.item.Clone(), path: e.path}, true
}

// list returns item copies for one category, newest-first by creation time
// with ID as a stable tie-break. Archived items are excluded unless asked for.
func (idx *indexCache) list(category types.Category, includeArchived bool) []*types.MemoryItem {
	idx.mu.RLock()
	items := make([]*types.MemoryItem, 0, len(idx.entries[category]))
	for _, e := range idx.entries[category] {
		if e.item.Archived && !includeArchived {
			continue
		}
		items = append(items, e.item.Clone())
	}
	idx.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// snapshot returns non-archived item copies across the given categories
// (all categories when none are given), in the fixed category order with
// newest-first ordering inside each category.
func (idx *indexCache) snapshot(categories ...types.Category) []*types.MemoryItem {
	if len(categories) == 0 {
		categories = types.Categories
	}
	var items []*types.MemoryItem
	for _, c := range categories {
		items = append(items, idx.list(c, false)...)
	}
	return items
}
