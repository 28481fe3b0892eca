package rewards

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedProfile(store *stubStore, userID string, total, available, redeemed Points) {
	store.profiles[userID] = AccountProfile{
		UserID:          userID,
		TotalPoints:     total,
		AvailablePoints: available,
		RedeemedPoints:  redeemed,
	}
}

func TestLoadAccountFiltersAndSorts(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 5000, 5000, 0)
	base := time.Unix(1700000000, 0).UTC()
	store.entries = []LedgerEntry{
		{EntryID: "e1", UserID: "user-1", Kind: EntryEarned, Amount: 100, Status: EntryStatusCompleted, CreatedAt: base.Add(time.Minute)},
		{EntryID: "e2", UserID: "user-1", Kind: EntryBonus, Amount: 50, Status: EntryStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
		{EntryID: "e3", UserID: "user-1", Kind: EntryRedeemed, Amount: -1000, Status: EntryStatusPending, CreatedAt: base.Add(3 * time.Minute)},
	}
	service := mustNewService(test, store)

	view := service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if view.ProfileErr != nil || view.EntriesErr != nil {
		test.Fatalf("unexpected section errors: %v / %v", view.ProfileErr, view.EntriesErr)
	}
	if len(view.Entries) != 2 {
		test.Fatalf("expected bonus entry dropped, got %d entries", len(view.Entries))
	}
	if view.Entries[0].EntryID != "e3" || view.Entries[1].EntryID != "e1" {
		test.Fatalf("expected newest-first order e3,e1; got %s,%s", view.Entries[0].EntryID, view.Entries[1].EntryID)
	}
	if view.Entries[0].Amount != 1000 {
		test.Fatalf("expected redeemed amount normalized to 1000, got %d", view.Entries[0].Amount)
	}
}

func TestLoadAccountStableOrderOnEqualTimestamps(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 0, 0, 0)
	at := time.Unix(1700000000, 0).UTC()
	store.entries = []LedgerEntry{
		{EntryID: "first", UserID: "user-1", Kind: EntryEarned, Amount: 10, Status: EntryStatusCompleted, CreatedAt: at},
		{EntryID: "second", UserID: "user-1", Kind: EntryEarned, Amount: 20, Status: EntryStatusCompleted, CreatedAt: at},
	}
	service := mustNewService(test, store)

	view := service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if view.Entries[0].EntryID != "first" || view.Entries[1].EntryID != "second" {
		test.Fatalf("tie must keep arrival order, got %s,%s", view.Entries[0].EntryID, view.Entries[1].EntryID)
	}
}

func TestLoadAccountIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 100, 100, 0)
	at := time.Unix(1700000000, 0).UTC()
	store.entries = []LedgerEntry{
		{EntryID: "a", UserID: "user-1", Kind: EntryEarned, Amount: 10, Status: EntryStatusCompleted, CreatedAt: at.Add(time.Hour)},
		{EntryID: "b", UserID: "user-1", Kind: EntryRedeemed, Amount: 5, Status: EntryStatusCompleted, CreatedAt: at},
	}
	service := mustNewService(test, store)
	userID := mustUserID(test, "user-1")

	firstView := service.LoadAccount(context.Background(), userID, 0)
	secondView := service.LoadAccount(context.Background(), userID, 0)
	if len(firstView.Entries) != len(secondView.Entries) {
		test.Fatalf("entry counts differ: %d vs %d", len(firstView.Entries), len(secondView.Entries))
	}
	for index := range firstView.Entries {
		if firstView.Entries[index].EntryID != secondView.Entries[index].EntryID {
			test.Fatalf("order differs at %d: %s vs %s", index, firstView.Entries[index].EntryID, secondView.Entries[index].EntryID)
		}
	}
}

func TestLoadAccountSectionsFailIndependently(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	at := time.Unix(1700000000, 0).UTC()
	store.entries = []LedgerEntry{
		{EntryID: "a", UserID: "user-1", Kind: EntryEarned, Amount: 10, Status: EntryStatusCompleted, CreatedAt: at},
	}
	service := mustNewService(test, store, WithProfileRetry(RetryPolicy{Attempts: 1}))

	view := service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if !errors.Is(view.ProfileErr, ErrProfileNotFound) {
		test.Fatalf("expected profile not found, got %v", view.ProfileErr)
	}
	if view.EntriesErr != nil || len(view.Entries) != 1 {
		test.Fatalf("entries must load despite profile failure: %v, %d entries", view.EntriesErr, len(view.Entries))
	}

	store.listEntriesErr = ErrUpstream
	seedProfile(store, "user-1", 100, 100, 0)
	view = service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if view.Profile == nil {
		test.Fatalf("profile must load despite entries failure: %v", view.ProfileErr)
	}
	if !errors.Is(view.EntriesErr, ErrUpstream) {
		test.Fatalf("expected upstream entries error, got %v", view.EntriesErr)
	}
}

func TestLoadAccountRetriesMissingProfileOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 100, 100, 0)
	store.profileErrs = []error{ErrProfileNotFound}
	service := mustNewService(test, store, WithProfileRetry(RetryPolicy{Attempts: 2, Delay: time.Millisecond}))

	view := service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if view.Profile == nil {
		test.Fatalf("expected profile after retry, got %v", view.ProfileErr)
	}
	if store.profileCalls != 2 {
		test.Fatalf("expected exactly 2 profile fetches, got %d", store.profileCalls)
	}
}

func TestLoadAccountDoesNotRetryUpstreamErrors(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.profileErrs = []error{ErrUpstream}
	service := mustNewService(test, store, WithProfileRetry(RetryPolicy{Attempts: 2, Delay: time.Millisecond}))

	view := service.LoadAccount(context.Background(), mustUserID(test, "user-1"), 0)
	if !errors.Is(view.ProfileErr, ErrUpstream) {
		test.Fatalf("expected upstream error, got %v", view.ProfileErr)
	}
	if store.profileCalls != 1 {
		test.Fatalf("upstream errors must not be retried, got %d fetches", store.profileCalls)
	}
}
