package rewards

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

const defaultHistoryLimit = 50

// RetryPolicy bounds the profile re-fetch used to tolerate replication lag on
// freshly created accounts.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy returns the standard two-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2, Delay: 500 * time.Millisecond}
}

// AccountView is the canonical client view of an account: the profile
// snapshot and the filtered, sorted ledger. The two sections load and fail
// independently; callers degrade per section instead of failing the screen.
type AccountView struct {
	Profile    *AccountProfile
	Entries    []LedgerEntry
	ProfileErr error
	EntriesErr error
}

// LoadAccount fetches the profile and the entry history concurrently and
// normalizes both into an AccountView. A failed profile fetch never blocks
// entry loading, and vice versa.
func (service *Service) LoadAccount(ctx context.Context, userID UserID, historyLimit int) AccountView {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	var view AccountView
	var group sync.WaitGroup
	group.Add(2)
	go func() {
		defer group.Done()
		profile, err := service.fetchProfileWithRetry(ctx, userID)
		if err != nil {
			view.ProfileErr = err
			return
		}
		view.Profile = &profile
	}()
	go func() {
		defer group.Done()
		entries, err := service.store.ListEntries(ctx, userID.String(), historyLimit)
		if err != nil {
			view.EntriesErr = err
			return
		}
		view.Entries = canonicalLedgerView(entries)
	}()
	group.Wait()

	operationError := view.ProfileErr
	if operationError == nil {
		operationError = view.EntriesErr
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationLoadAccount,
		UserID:    userID.String(),
		Error:     operationError,
	})
	return view
}

func (service *Service) fetchProfileWithRetry(ctx context.Context, userID UserID) (AccountProfile, error) {
	for attempt := 1; ; attempt++ {
		profile, err := service.store.GetProfile(ctx, userID.String())
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrProfileNotFound) || attempt >= service.retry.Attempts {
			return AccountProfile{}, err
		}
		select {
		case <-ctx.Done():
			return AccountProfile{}, ctx.Err()
		case <-time.After(service.retry.Delay):
		}
	}
}

// canonicalLedgerView keeps only earned and redeemed entries, normalizes
// amounts to positive magnitudes, and sorts newest first. The sort is stable
// so entries sharing a timestamp keep their arrival order.
func canonicalLedgerView(entries []LedgerEntry) []LedgerEntry {
	view := make([]LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Kind != EntryEarned && entry.Kind != EntryRedeemed {
			continue
		}
		if entry.Amount < 0 {
			entry.Amount = -entry.Amount
		}
		if entry.Status == "" {
			entry.Status = EntryStatusCompleted
		}
		view = append(view, entry)
	}
	sort.SliceStable(view, func(left, right int) bool {
		return view[left].CreatedAt.After(view[right].CreatedAt)
	})
	return view
}
