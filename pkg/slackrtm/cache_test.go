// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestResolveUser_BulkThenCached(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.AddUser("U2", "carol")
	ctx := context.Background()

	for range 3 {
		ident, err := c.ResolveUser(ctx, "U1")
		if err != nil {
			t.Fatalf("ResolveUser: %v", err)
		}
		if ident.Name != "bob" {
			t.Errorf("name = %q, want bob", ident.Name)
		}
	}
	if ident, err := c.ResolveUser(ctx, "U2"); err != nil || ident.Name != "carol" {
		t.Errorf("ResolveUser(U2) = %+v, %v", ident, err)
	}

	if n := srv.CallCount("users.list"); n != 1 {
		t.Errorf("users.list called %d times, want 1", n)
	}
	if n := srv.CallCount("users.info"); n != 0 {
		t.Errorf("users.info called %d times, want 0", n)
	}
}

func TestResolveUser_MissAfterBulkFetchesSingle(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.AddUnlistedUser("U9", "guest")
	ctx := context.Background()

	// Empty cache and absent from the listing: bulk then single.
	ident, err := c.ResolveUser(ctx, "U9")
	if err != nil {
		t.Fatalf("ResolveUser: %v", err)
	}
	if ident.Name != "guest" {
		t.Errorf("name = %q, want guest", ident.Name)
	}
	if _, err = c.ResolveUser(ctx, "U9"); err != nil {
		t.Fatal(err)
	}
	if l, i := srv.CallCount("users.list"), srv.CallCount("users.info"); l != 1 || i != 1 {
		t.Errorf("calls: users.list=%d users.info=%d, want 1 and 1", l, i)
	}

	// Non-empty cache miss: single fetch only.
	srv.AddUser("U3", "dave")
	if ident, err = c.ResolveUser(ctx, "U3"); err != nil || ident.Name != "dave" {
		t.Fatalf("ResolveUser(U3) = %+v, %v", ident, err)
	}
	if l, i := srv.CallCount("users.list"), srv.CallCount("users.info"); l != 1 || i != 2 {
		t.Errorf("calls: users.list=%d users.info=%d, want 1 and 2", l, i)
	}
}

func TestResolveRoom_UnknownIsError(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddRoom("C1", "general")

	_, err := c.ResolveRoom(context.Background(), "C404")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "channel_not_found" {
		t.Fatalf("expected channel_not_found APIError, got %v", err)
	}
	users, rooms := c.CacheSize()
	if users != 0 || rooms != 1 {
		t.Errorf("CacheSize = %d, %d; want 0, 1", users, rooms)
	}
}

func TestResolveUser_BulkFailurePropagates(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.Fail("users.list", "ratelimited")

	_, err := c.ResolveUser(context.Background(), "U1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Method != "users.list" {
		t.Fatalf("expected users.list APIError, got %v", err)
	}
	if n := srv.CallCount("users.info"); n != 0 {
		t.Errorf("users.info should not be tried after a failed bulk fetch, got %d calls", n)
	}
}

func TestResolveUser_ConcurrentMissesShareOneBulkFetch(t *testing.T) {
	t.Parallel()
	c, srv := newTestClient(t)
	srv.AddUser("U1", "bob")
	srv.AddUser("U2", "carol")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		id := "U1"
		if i%2 == 1 {
			id = "U2"
		}
		wg.Go(func() {
			if _, err := c.ResolveUser(context.Background(), id); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ResolveUser: %v", err)
	}
	if n := srv.CallCount("users.list"); n != 1 {
		t.Errorf("users.list called %d times, want 1", n)
	}
}
