package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock steps the store's clock forward one second per call so every
// created item gets a distinct created_at.
func fixedClock(s *Store) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func mustCreate(t *testing.T, s *Store, title, body string, tags []string, fields types.Fields) *types.MemoryItem {
	t.Helper()
	item, err := s.Create(context.Background(), title, body, tags, fields)
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return item
}

func TestCreateAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conf := 0.9
	item := mustCreate(t, s, "User prefers dark mode", "Dark mode everywhere.", []string{"preferences"},
		types.FactFields{Confidence: &conf, Source: "user statement"})

	if item.ID != types.ItemID("User prefers dark mode", "Dark mode everywhere.") {
		t.Errorf("ID = %q, want content-derived ID", item.ID)
	}

	got, err := s.Read(ctx, types.CategoryFacts, item.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Title != item.Title || got.Body != item.Body {
		t.Errorf("Read returned %+v, want %+v", got, item)
	}
	f, ok := got.Fields.(types.FactFields)
	if !ok || f.Source != "user statement" || f.Confidence == nil || *f.Confidence != 0.9 {
		t.Errorf("fact fields did not survive: %+v", got.Fields)
	}
}

func TestCreateIdempotent(t *testing.T) {
	s := newTestStore(t)

	first := mustCreate(t, s, "Same title", "Same body.", nil, types.FactFields{})
	second := mustCreate(t, s, "Same title", "Same body.", []string{"ignored-on-duplicate"}, types.FactFields{})

	if first.ID != second.ID {
		t.Fatalf("duplicate content produced different IDs: %q vs %q", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("second create changed created_at")
	}

	names, err := itemFilenames(s.dirs[types.CategoryFacts])
	if err != nil {
		t.Fatalf("itemFilenames: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("found %d files, want exactly 1: %v", len(names), names)
	}
}

func TestCreateMissingAssigneeWritesNothing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(context.Background(), "Orphan task", "No assignee.", nil,
		types.TaskFields{Status: types.TaskOpen})
	if !errors.Is(err, storage.ErrSchemaViolation) {
		t.Fatalf("err = %v, want ErrSchemaViolation", err)
	}

	names, err := itemFilenames(s.dirs[types.CategoryTasks])
	if err != nil {
		t.Fatalf("itemFilenames: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("rejected create left files behind: %v", names)
	}
}

func TestDecisionImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Use PostgreSQL", "Postgres over MySQL.", nil,
		types.DecisionFields{Status: types.DecisionActive})

	path, err := s.resolvePath(types.CategoryDecisions, item.ID)
	if err != nil {
		t.Fatalf("resolvePath: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read decision file: %v", err)
	}

	title := "Use MySQL"
	_, err = s.Update(ctx, types.CategoryDecisions, item.ID, storage.Patch{Title: &title})
	if !errors.Is(err, storage.ErrImmutable) {
		t.Fatalf("Update err = %v, want ErrImmutable", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("re-read decision file: %v", err)
	}
	if string(before) != string(after) {
		t.Error("rejected update modified the file on disk")
	}
}

func TestReflectionAppendOnly(t *testing.T) {
	s := newTestStore(t)

	item := mustCreate(t, s, "Estimates run long", "Twice the estimate.", nil, types.ReflectionFields{})

	body := "revised observation"
	_, err := s.Update(context.Background(), types.CategoryReflections, item.ID, storage.Patch{Body: &body})
	if !errors.Is(err, storage.ErrAppendOnly) {
		t.Fatalf("Update err = %v, want ErrAppendOnly", err)
	}

	// Appending a new, different reflection is always allowed.
	mustCreate(t, s, "Estimates run long again", "Still twice the estimate.", nil, types.ReflectionFields{})
}

func TestTaskStatusLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Write migration", "Schema migration.", nil,
		types.TaskFields{Status: types.TaskOpen, Assignee: "agent"})

	// open -> done skips in_progress and must be rejected.
	if _, err := s.UpdateTaskStatus(ctx, item.ID, types.TaskDone); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("open -> done err = %v, want ErrInvalidTransition", err)
	}

	if _, err := s.UpdateTaskStatus(ctx, item.ID, types.TaskInProgress); err != nil {
		t.Fatalf("open -> in_progress: %v", err)
	}
	done, err := s.UpdateTaskStatus(ctx, item.ID, types.TaskDone)
	if err != nil {
		t.Fatalf("in_progress -> done: %v", err)
	}
	if f := done.Fields.(types.TaskFields); f.Status != types.TaskDone {
		t.Errorf("status = %q, want done", f.Status)
	}

	// done is terminal.
	if _, err := s.UpdateTaskStatus(ctx, item.ID, types.TaskOpen); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("done -> open err = %v, want ErrInvalidTransition", err)
	}
}

func TestTaskDeferAndReopen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Investigate flake", "Flaky watcher test.", nil,
		types.TaskFields{Status: types.TaskOpen, Assignee: "agent"})

	for _, next := range []types.TaskStatus{types.TaskInProgress, types.TaskDeferred, types.TaskOpen} {
		if _, err := s.UpdateTaskStatus(ctx, item.ID, next); err != nil {
			t.Fatalf("-> %s: %v", next, err)
		}
	}
	if _, err := s.UpdateTaskStatus(ctx, item.ID, types.TaskDeferred); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("open -> deferred err = %v, want ErrInvalidTransition", err)
	}
}

func TestFactHardDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Wrong fact", "Turned out false.", nil, types.FactFields{})

	if err := s.Delete(ctx, types.CategoryFacts, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, types.CategoryFacts, item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Read after delete err = %v, want ErrNotFound", err)
	}
	names, _ := itemFilenames(s.dirs[types.CategoryFacts])
	if len(names) != 0 {
		t.Errorf("hard delete left files behind: %v", names)
	}
	if err := s.Delete(ctx, types.CategoryFacts, item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGoalDeleteArchives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Ship v2", "Second version.", nil,
		types.GoalFields{Status: types.GoalActive})

	if err := s.Delete(ctx, types.CategoryGoals, item.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	liveNames, _ := itemFilenames(s.dirs[types.CategoryGoals])
	if len(liveNames) != 0 {
		t.Errorf("live directory still holds %v", liveNames)
	}
	archivedNames, _ := itemFilenames(filepath.Join(s.dirs[types.CategoryGoals], archivedDirName))
	if len(archivedNames) != 1 {
		t.Fatalf("archived directory holds %d files, want 1", len(archivedNames))
	}

	// Archived items are excluded from plain lists but remain readable.
	visible, err := s.List(ctx, types.CategoryGoals, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("archived goal still listed: %v", visible)
	}
	all, err := s.List(ctx, types.CategoryGoals, storage.ListOptions{IncludeArchived: true})
	if err != nil {
		t.Fatalf("List archived: %v", err)
	}
	if len(all) != 1 || !all[0].Archived {
		t.Errorf("archived list = %+v, want one archived item", all)
	}

	got, err := s.Read(ctx, types.CategoryGoals, item.ID)
	if err != nil {
		t.Fatalf("Read archived goal: %v", err)
	}
	if !got.Archived {
		t.Error("archived goal reads back with Archived=false")
	}

	// Archiving twice is a no-op.
	if err := s.Delete(ctx, types.CategoryGoals, item.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestDeletionForbidden(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dec := mustCreate(t, s, "Locked decision", "Stays.", nil,
		types.DecisionFields{Status: types.DecisionActive})
	ref := mustCreate(t, s, "An observation", "Stays too.", nil, types.ReflectionFields{})

	if err := s.Delete(ctx, types.CategoryDecisions, dec.ID); !errors.Is(err, storage.ErrDeletionForbidden) {
		t.Errorf("decision delete err = %v, want ErrDeletionForbidden", err)
	}
	if err := s.Delete(ctx, types.CategoryReflections, ref.ID); !errors.Is(err, storage.ErrDeletionForbidden) {
		t.Errorf("reflection delete err = %v, want ErrDeletionForbidden", err)
	}
}

func TestUpdateFactKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Original title", "Original body.", []string{"a"}, types.FactFields{})
	pathBefore, _ := s.resolvePath(types.CategoryFacts, item.ID)

	title, body := "Corrected title", "Corrected body."
	updated, err := s.Update(ctx, types.CategoryFacts, item.ID, storage.Patch{
		Title: &title, Body: &body, Tags: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The ID is assigned from the creation content and never recomputed.
	if updated.ID != item.ID {
		t.Errorf("update changed ID: %q -> %q", item.ID, updated.ID)
	}
	if !updated.CreatedAt.Equal(item.CreatedAt) {
		t.Errorf("update changed created_at")
	}
	pathAfter, _ := s.resolvePath(types.CategoryFacts, item.ID)
	if pathBefore != pathAfter {
		t.Errorf("update moved the file: %q -> %q", pathBefore, pathAfter)
	}

	got, err := s.Read(ctx, types.CategoryFacts, item.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Title != title || got.Body != body || len(got.Tags) != 2 {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestUpdateEmptyPatchRejected(t *testing.T) {
	s := newTestStore(t)

	item := mustCreate(t, s, "A fact", "Body.", nil, types.FactFields{})
	_, err := s.Update(context.Background(), types.CategoryFacts, item.ID, storage.Patch{})
	if !errors.Is(err, storage.ErrSchemaViolation) {
		t.Errorf("empty patch err = %v, want ErrSchemaViolation", err)
	}
}

func TestGoalStatusTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Learn Go", "Work through a real project.", nil,
		types.GoalFields{Status: types.GoalActive})

	achieved := string(types.GoalAchieved)
	if _, err := s.Update(ctx, types.CategoryGoals, item.ID, storage.Patch{Status: &achieved}); err != nil {
		t.Fatalf("active -> achieved: %v", err)
	}

	active := string(types.GoalActive)
	_, err := s.Update(ctx, types.CategoryGoals, item.ID, storage.Patch{Status: &active})
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("achieved -> active err = %v, want ErrInvalidTransition", err)
	}
}

func TestListOrdering(t *testing.T) {
	s := newTestStore(t)
	fixedClock(s)
	ctx := context.Background()

	oldest := mustCreate(t, s, "first", "body one.", nil, types.FactFields{})
	middle := mustCreate(t, s, "second", "body two.", nil, types.FactFields{})
	newest := mustCreate(t, s, "third", "body three.", nil, types.FactFields{})

	items, err := s.List(ctx, types.CategoryFacts, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	wantOrder := []string{newest.ID, middle.ID, oldest.ID}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, want)
		}
	}
}

func TestListUnknownCategory(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.List(context.Background(), types.Category("notes"), storage.ListOptions{}); err == nil {
		t.Error("List accepted unknown category")
	}
}

func TestReadNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Read(context.Background(), types.CategoryFacts, "000000000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCorruptFileSurfacesOnRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A hand-written file whose name carries a valid ID marker but whose
	// content is not a valid record.
	id := "deadbeef0000"
	name := "2026-08-30T10-00-00-" + id + "-facts-handmade.md"
	path := filepath.Join(s.dirs[types.CategoryFacts], name)
	if err := os.WriteFile(path, []byte("not a record at all\n"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	_, err := s.Read(ctx, types.CategoryFacts, id)
	if !errors.Is(err, storage.ErrCorruptRecord) {
		t.Fatalf("Read err = %v, want ErrCorruptRecord", err)
	}

	// The index refuses to surface it, but healthy items are unaffected.
	if err := s.RefreshIndex(); err != nil {
		t.Fatalf("RefreshIndex: %v", err)
	}
	items, err := s.List(ctx, types.CategoryFacts, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("corrupt file leaked into the index: %v", items)
	}
}

func TestOrphanedTempFileIgnored(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Survivor", "Written before the crash.", nil, types.FactFields{})

	// Simulate a crash between temp write and rename.
	orphan := filepath.Join(s.dirs[types.CategoryFacts], ".tmp-0123456789ab")
	if err := os.WriteFile(orphan, []byte("half a record"), 0o600); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	if err := s.RefreshIndex(); err != nil {
		t.Fatalf("RefreshIndex: %v", err)
	}
	items, err := s.List(ctx, types.CategoryFacts, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("List = %+v, want only the committed item", items)
	}
}

func TestReindexFromDisk(t *testing.T) {
	dir := t.TempDir()
	first, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item, err := first.Create(context.Background(), "Persistent", "Survives restarts.", nil, types.FactFields{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first.Close()

	second, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.Read(context.Background(), types.CategoryFacts, item.ID)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if got.Title != "Persistent" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestConcurrentCreateSameContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, "Raced fact", "Same content from all workers.", nil, types.FactFields{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	names, _ := itemFilenames(s.dirs[types.CategoryFacts])
	if len(names) != 1 {
		t.Errorf("found %d files, want 1: %v", len(names), names)
	}
}

func TestConcurrentTaskStatusRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := mustCreate(t, s, "Contested task", "Many writers.", nil,
		types.TaskFields{Status: types.TaskOpen, Assignee: "agent"})

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.UpdateTaskStatus(ctx, item.ID, types.TaskInProgress)
		}(i)
	}
	wg.Wait()

	// Exactly one writer wins open -> in_progress; the rest see the item
	// already in_progress and fail the transition check.
	won := 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, storage.ErrInvalidTransition):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("%d writers won the transition, want exactly 1", won)
	}

	got, err := s.Read(ctx, types.CategoryTasks, item.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if f := got.Fields.(types.TaskFields); f.Status != types.TaskInProgress {
		t.Errorf("final status = %q, want in_progress", f.Status)
	}
}

func TestExternalFileVisibleViaScanFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A well-formed file dropped in by an external editor, not yet indexed.
	id := "cafecafecafe"
	content := "---\n" +
		"id: " + id + "\n" +
		"title: Hand-written fact\n" +
		"type: facts\n" +
		"created_at: 2026-08-30T09-00-00\n" +
		"updated_at: 2026-08-30T09-00-00\n" +
		"---\n\nWritten outside the store.\n"
	name := "2026-08-30T09-00-00-" + id + "-facts-hand-written-fact.md"
	if err := os.WriteFile(filepath.Join(s.dirs[types.CategoryFacts], name), []byte(content), 0o600); err != nil {
		t.Fatalf("write external file: %v", err)
	}

	got, err := s.Read(ctx, types.CategoryFacts, id)
	if err != nil {
		t.Fatalf("Read before refresh: %v", err)
	}
	if got.Title != "Hand-written fact" {
		t.Errorf("Title = %q", got.Title)
	}
	if !strings.Contains(got.Body, "outside the store") {
		t.Errorf("Body = %q", got.Body)
	}

	// After a refresh it shows up in listings too.
	if err := s.RefreshIndex(); err != nil {
		t.Fatalf("RefreshIndex: %v", err)
	}
	items, err := s.List(ctx, types.CategoryFacts, storage.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Errorf("List = %+v", items)
	}
}
