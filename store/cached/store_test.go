package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rbaliyan/mailboxtree/store"
	"github.com/rbaliyan/mailboxtree/store/memory"
	"github.com/rbaliyan/mailboxtree/storetest"
)

func newTestMapper(t *testing.T) (*Mapper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(memory.New(), client), mr
}

// The decorator must be indistinguishable from its backend.
func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Mapper {
		m, _ := newTestMapper(t)
		return m
	})
}

func TestFindByPathPopulatesCache(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "INBOX"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := m.FindByPath(ctx, saved.Path); err != nil {
		t.Fatalf("find: %v", err)
	}

	if !mr.Exists(m.pathKey(saved.Path)) {
		t.Error("path key not cached after lookup")
	}
	if !mr.Exists(m.idKey(saved.ID)) {
		t.Error("id key not cached after lookup")
	}
}

func TestStaleCacheServesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "INBOX"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.FindByID(ctx, saved.ID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// Cached entries expire with the TTL even if never invalidated.
	mr.FastForward(DefaultTTL + time.Second)
	if mr.Exists(m.idKey(saved.ID)) {
		t.Error("cache entry survived its TTL")
	}
}

func TestDeleteInvalidates(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "INBOX"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.FindByPath(ctx, saved.Path); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	if err := m.Delete(ctx, saved); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if mr.Exists(m.pathKey(saved.Path)) || mr.Exists(m.idKey(saved.ID)) {
		t.Error("cache entries survived delete")
	}
	if _, err := m.FindByPath(ctx, saved.Path); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteWithStaleSnapshotDropsLivePathEntry(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "Drafts"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	snapshot := saved

	renamed := saved
	renamed.Path = store.UserPath("benwa", "Sketches")
	if _, err := m.Save(ctx, renamed); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := m.FindByPath(ctx, renamed.Path); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// Deleting through the pre-rename snapshot removes the live record;
	// the live path's cache entry must not outlive it.
	if err := m.Delete(ctx, snapshot); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if mr.Exists(m.pathKey(renamed.Path)) {
		t.Error("live path entry survived delete through a stale snapshot")
	}
	if _, err := m.FindByPath(ctx, renamed.Path); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted mailbox still resolves: %v", err)
	}
}

func TestRenameDropsOldPathEntry(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "Drafts"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	oldPath := saved.Path
	if _, err := m.FindByPath(ctx, oldPath); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	saved.Path = store.UserPath("benwa", "Sketches")
	if _, err := m.Save(ctx, saved); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if mr.Exists(m.pathKey(oldPath)) {
		t.Error("old path entry survived the rename")
	}
	if _, err := m.FindByPath(ctx, oldPath); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old path still resolves after rename: %v", err)
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestMapper(t)
	if err := m.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer m.Close(ctx)

	saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "INBOX"), 42))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// With Redis gone, lookups must still come back from the backend.
	mr.Close()
	found, err := m.FindByPath(ctx, saved.Path)
	if err != nil {
		t.Fatalf("find with cache down: %v", err)
	}
	if found != saved {
		t.Errorf("got %v, want %v", found, saved)
	}
}
