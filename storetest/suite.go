// Package storetest is the conformance suite every store.Mapper backend
// must pass. Backend packages call Run from their own tests:
//
//	func TestConformance(t *testing.T) {
//		storetest.Run(t, func(t *testing.T) store.Mapper {
//			return memory.New()
//		})
//	}
//
// The factory is called once per subtest and must return an empty,
// unconnected mapper.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rbaliyan/mailboxtree/store"
)

const (
	delimiter   = '.'
	uidValidity = 42
)

// fixture is the canonical mailbox population: one well-filled tenant
// (benwa), two other users, and a same-user different-namespace tenant,
// so tenant isolation is observable.
type fixture struct {
	mapper store.Mapper

	benwaInbox    store.Mailbox
	benwaWork     store.Mailbox
	benwaWorkTodo store.Mailbox
	benwaPerso    store.Mailbox
	benwaWorkDone store.Mailbox
	bobInbox      store.Mailbox
	bobyTrick     store.Mailbox
	bobOtherNS    store.Mailbox
}

func (f *fixture) all() []store.Mailbox {
	return []store.Mailbox{
		f.benwaInbox, f.benwaWork, f.benwaWorkTodo, f.benwaPerso,
		f.benwaWorkDone, f.bobInbox, f.bobyTrick, f.bobOtherNS,
	}
}

// Run executes the conformance suite against mappers produced by factory.
func Run(t *testing.T, factory func(t *testing.T) store.Mapper) {
	t.Helper()

	newMapper := func(t *testing.T) store.Mapper {
		t.Helper()
		m := factory(t)
		ctx := context.Background()
		if err := m.Connect(ctx); err != nil {
			t.Fatalf("connect mapper: %v", err)
		}
		t.Cleanup(func() { _ = m.Close(context.Background()) })
		return m
	}

	saveAll := func(t *testing.T, m store.Mapper) *fixture {
		t.Helper()
		ctx := context.Background()
		f := &fixture{mapper: m}

		save := func(path store.MailboxPath) store.Mailbox {
			saved, err := m.Save(ctx, store.NewMailbox(path, uidValidity))
			if err != nil {
				t.Fatalf("save %v: %v", path, err)
			}
			if saved.ID.IsZero() {
				t.Fatalf("save %v: id not assigned", path)
			}
			return saved
		}

		f.benwaInbox = save(store.UserPath("benwa", "INBOX"))
		f.benwaWork = save(store.UserPath("benwa", "INBOX.work"))
		f.benwaWorkTodo = save(store.UserPath("benwa", "INBOX.work.todo"))
		f.benwaPerso = save(store.UserPath("benwa", "INBOX.perso"))
		f.benwaWorkDone = save(store.UserPath("benwa", "INBOX.work.done"))
		f.bobInbox = save(store.UserPath("bob", "INBOX"))
		f.bobyTrick = save(store.UserPath("boby", "INBOX.that.is.a.trick"))
		f.bobOtherNS = save(store.NewPath("#private_bob", "bob", "INBOX.bob"))
		return f
	}

	t.Run("find by path when absent fails", func(t *testing.T) {
		m := newMapper(t)
		_, err := m.FindByPath(context.Background(), store.UserPath("benwa", "INBOX"))
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save persists the mailbox", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()

		path := store.UserPath("benwa", "INBOX")
		saved, err := m.Save(ctx, store.NewMailbox(path, uidValidity))
		if err != nil {
			t.Fatalf("save: %v", err)
		}

		found, err := m.FindByPath(ctx, path)
		if err != nil {
			t.Fatalf("find after save: %v", err)
		}
		if found != saved {
			t.Errorf("found %v, want %v", found, saved)
		}
		if found.UIDValidity != uidValidity {
			t.Errorf("uid validity not preserved: %d", found.UIDValidity)
		}
	})

	t.Run("save fails when the path is taken", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()

		path := store.UserPath("benwa", "INBOX")
		if _, err := m.Save(ctx, store.NewMailbox(path, uidValidity)); err != nil {
			t.Fatalf("first save: %v", err)
		}

		_, err := m.Save(ctx, store.NewMailbox(path, uidValidity))
		if !errors.Is(err, store.ErrMailboxExists) {
			t.Errorf("expected ErrMailboxExists, got %v", err)
		}

		// The failed save must not have disturbed the store.
		if _, err := m.FindByPath(ctx, path); err != nil {
			t.Errorf("original mailbox gone after failed save: %v", err)
		}
	})

	t.Run("save honors a caller-assigned id", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()

		mailbox := store.NewMailbox(store.UserPath("benwa", "INBOX"), uidValidity)
		mailbox.ID = store.MailboxID("preassigned-id")

		saved, err := m.Save(ctx, mailbox)
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		if saved.ID != mailbox.ID {
			t.Errorf("id rewritten: %s", saved.ID)
		}
		if _, err := m.FindByID(ctx, mailbox.ID); err != nil {
			t.Errorf("find by preassigned id: %v", err)
		}
	})

	t.Run("save replaces the path of an existing mailbox", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()

		saved, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "Drafts"), uidValidity))
		if err != nil {
			t.Fatalf("save: %v", err)
		}

		renamed := saved
		renamed.Path = store.UserPath("benwa", "Sketches")
		if _, err := m.Save(ctx, renamed); err != nil {
			t.Fatalf("rename save: %v", err)
		}

		if _, err := m.FindByPath(ctx, saved.Path); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("old path still resolves: %v", err)
		}
		found, err := m.FindByPath(ctx, renamed.Path)
		if err != nil {
			t.Fatalf("new path: %v", err)
		}
		if found.ID != saved.ID {
			t.Errorf("rename changed identity: %s != %s", found.ID, saved.ID)
		}
	})

	t.Run("rename onto an occupied path fails", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()

		a, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "A"), uidValidity))
		if err != nil {
			t.Fatalf("save a: %v", err)
		}
		if _, err := m.Save(ctx, store.NewMailbox(store.UserPath("benwa", "B"), uidValidity)); err != nil {
			t.Fatalf("save b: %v", err)
		}

		a.Path = store.UserPath("benwa", "B")
		if _, err := m.Save(ctx, a); !errors.Is(err, store.ErrMailboxExists) {
			t.Errorf("expected ErrMailboxExists, got %v", err)
		}
	})

	t.Run("list retrieves all mailboxes", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		mailboxes, err := m.List(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		assertSameMailboxes(t, mailboxes, f.all())
	})

	t.Run("has children is false for a leaf", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		has, err := m.HasChildren(context.Background(), f.benwaWorkTodo, delimiter)
		if err != nil {
			t.Fatalf("has children: %v", err)
		}
		if has {
			t.Error("leaf mailbox reported children")
		}
	})

	t.Run("has children is true when a descendant exists", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		has, err := m.HasChildren(context.Background(), f.benwaInbox, delimiter)
		if err != nil {
			t.Fatalf("has children: %v", err)
		}
		if !has {
			t.Error("INBOX should have children")
		}
	})

	t.Run("has children does not cross users or namespaces", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		// bob's INBOX has no children even though benwa's INBOX does and
		// boby has INBOX.that.is.a.trick.
		has, err := m.HasChildren(context.Background(), f.bobInbox, delimiter)
		if err != nil {
			t.Fatalf("has children: %v", err)
		}
		if has {
			t.Error("children leaked across tenants")
		}
	})

	t.Run("path-like search is limited to one tenant", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		found, err := m.FindWithPathLike(context.Background(),
			store.PathLike(store.NewPath(f.bobInbox.Path.Namespace, f.bobInbox.Path.User, "IN%")))
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		assertSameMailboxes(t, found, []store.Mailbox{f.bobInbox})
	})

	t.Run("child pattern retrieves the subtree", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		found, err := m.FindWithPathLike(context.Background(),
			store.PathLike(store.UserPath("benwa", "INBOX.work%")))
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		assertSameMailboxes(t, found, []store.Mailbox{f.benwaWork, f.benwaWorkTodo, f.benwaWorkDone})
	})

	t.Run("top pattern retrieves the whole tree", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		found, err := m.FindWithPathLike(context.Background(),
			store.PathLike(store.UserPath("benwa", "INBOX%")))
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		assertSameMailboxes(t, found, []store.Mailbox{
			f.benwaInbox, f.benwaWork, f.benwaWorkTodo, f.benwaPerso, f.benwaWorkDone,
		})
	})

	t.Run("exact name query matches one mailbox", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		query, err := store.NewQuery().
			From(f.benwaWork.Path).
			Expression(store.ExactName("INBOX")).
			Build()
		if err != nil {
			t.Fatalf("build query: %v", err)
		}

		found, err := m.FindWithPathLike(context.Background(), query)
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		assertSameMailboxes(t, found, []store.Mailbox{f.benwaInbox})
	})

	t.Run("question mark stays literal", func(t *testing.T) {
		m := newMapper(t)
		saveAll(t, m)

		found, err := m.FindWithPathLike(context.Background(),
			store.PathLike(store.UserPath("benwa", "INB?X")))
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		if len(found) != 0 {
			t.Errorf("'?' matched as a wildcard: %v", found)
		}
	})

	t.Run("all-matching query stays tenant-scoped", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		query, err := store.NewQuery().
			UserAndNamespace("#private_bob", "bob").
			Expression(store.Wildcard("%")).
			Build()
		if err != nil {
			t.Fatalf("build query: %v", err)
		}

		found, err := m.FindWithPathLike(context.Background(), query)
		if err != nil {
			t.Fatalf("find with path like: %v", err)
		}
		assertSameMailboxes(t, found, []store.Mailbox{f.bobOtherNS})
	})

	t.Run("delete erases the mailbox", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)
		ctx := context.Background()

		if err := m.Delete(ctx, f.benwaInbox); err != nil {
			t.Fatalf("delete: %v", err)
		}

		if _, err := m.FindByPath(ctx, f.benwaInbox.Path); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("path lookup after delete: %v", err)
		}
		if _, err := m.FindByID(ctx, f.benwaInbox.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("id lookup after delete: %v", err)
		}
	})

	t.Run("delete of a missing mailbox fails", func(t *testing.T) {
		m := newMapper(t)
		err := m.Delete(context.Background(),
			store.NewMailbox(store.UserPath("benwa", "never-saved"), uidValidity))
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("find by id returns the existing mailbox", func(t *testing.T) {
		m := newMapper(t)
		f := saveAll(t, m)

		found, err := m.FindByID(context.Background(), f.benwaInbox.ID)
		if err != nil {
			t.Fatalf("find by id: %v", err)
		}
		if found != f.benwaInbox {
			t.Errorf("found %v, want %v", found, f.benwaInbox)
		}
	})

	t.Run("concurrent saves of one path admit exactly one", func(t *testing.T) {
		m := newMapper(t)
		ctx := context.Background()
		path := store.UserPath("benwa", "INBOX")

		const racers = 8
		var wg sync.WaitGroup
		results := make(chan error, racers)

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Save(ctx, store.NewMailbox(path, uidValidity))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var successes, conflicts int
		for err := range results {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrMailboxExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if successes != 1 || conflicts != racers-1 {
			t.Errorf("got %d successes and %d conflicts, want 1 and %d", successes, conflicts, racers-1)
		}
	})
}

// assertSameMailboxes compares two mailbox sets ignoring order, and flags
// duplicates and omissions.
func assertSameMailboxes(t *testing.T, got, want []store.Mailbox) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("got %d mailboxes, want %d: %v", len(got), len(want), got)
		return
	}

	seen := make(map[store.MailboxID]store.Mailbox, len(got))
	for _, m := range got {
		if _, dup := seen[m.ID]; dup {
			t.Errorf("duplicate mailbox in result: %v", m)
		}
		seen[m.ID] = m
	}
	for _, m := range want {
		found, ok := seen[m.ID]
		if !ok {
			t.Errorf("missing mailbox %v", m)
			continue
		}
		if found != m {
			t.Errorf("mailbox %s differs: got %v, want %v", m.ID, found, m)
		}
	}
}
