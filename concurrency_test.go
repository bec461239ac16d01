package mailboxtree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rbaliyan/mailboxtree/store"
)

func TestConcurrentCreateSamePath(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	const racers = 8
	path := store.UserPath("benwa", "INBOX")

	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, path)
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
		case errors.Is(err, ErrMailboxExists):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 successful create, got %d", successes)
	}
	if conflicts != racers-1 {
		t.Errorf("expected %d conflicts, got %d", racers-1, conflicts)
	}
}

func TestConcurrentCreateDistinctPaths(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	const creators = 10

	var wg sync.WaitGroup
	errs := make(chan error, creators)

	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := svc.Create(ctx, store.UserPath("benwa", fmt.Sprintf("Folder-%d", n))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("create error: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != creators {
		t.Errorf("expected %d mailboxes, got %d", creators, len(all))
	}
}

func TestConcurrentReads(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	for _, name := range []string{"INBOX", "INBOX.work", "INBOX.perso", "Archive"} {
		if _, err := svc.Create(ctx, store.UserPath("benwa", name)); err != nil {
			t.Fatalf("create %s failed: %v", name, err)
		}
	}

	const readers = 20
	var wg sync.WaitGroup
	errs := make(chan error, readers*3)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := svc.Get(ctx, store.UserPath("benwa", "INBOX")); err != nil {
				errs <- err
			}
			if _, err := svc.List(ctx); err != nil {
				errs <- err
			}
			found, err := svc.SearchPattern(ctx, store.NamespacePersonal, "benwa", "INBOX%")
			if err != nil {
				errs <- err
			} else if len(found) != 3 {
				errs <- fmt.Errorf("expected 3 search results, got %d", len(found))
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent read error: %v", err)
	}
}

func TestConcurrentDeleteSubtree(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)

	const width = 16
	for i := 0; i < width; i++ {
		if _, err := svc.Create(ctx, store.UserPath("benwa", fmt.Sprintf("Bulk.item-%d", i))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if _, err := svc.Create(ctx, store.UserPath("benwa", "Bulk")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Two racing subtree deletes must remove every mailbox exactly once
	// between them.
	var wg sync.WaitGroup
	totals := make(chan int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed, err := svc.DeleteSubtree(ctx, store.UserPath("benwa", "Bulk"))
			if err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("delete subtree failed: %v", err)
			}
			totals <- removed
		}()
	}
	wg.Wait()
	close(totals)

	sum := 0
	for n := range totals {
		sum += n
	}
	if sum != width+1 {
		t.Errorf("expected %d total removals across racers, got %d", width+1, sum)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty tree, got %v", all)
	}
}
