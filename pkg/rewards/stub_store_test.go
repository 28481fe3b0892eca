package rewards

import (
	"context"
	"sync"
	"testing"
	"time"
)

// stubStore is an in-memory Store double with per-call failure injection.
type stubStore struct {
	mutex       sync.Mutex
	profiles    map[string]AccountProfile
	entries     []LedgerEntry
	redemptions map[string]RedemptionRequest

	profileErrs        []error
	listEntriesErr     error
	insertRedemptionErr error
	insertEntryErr     error

	profileCalls int
}

func newStubStore() *stubStore {
	return &stubStore{
		profiles:    make(map[string]AccountProfile),
		redemptions: make(map[string]RedemptionRequest),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) CreateProfile(ctx context.Context, profile AccountProfile) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.profiles[profile.UserID] = profile
	return nil
}

func (store *stubStore) GetProfile(ctx context.Context, userID string) (AccountProfile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.profileCalls++
	if len(store.profileErrs) > 0 {
		err := store.profileErrs[0]
		store.profileErrs = store.profileErrs[1:]
		if err != nil {
			return AccountProfile{}, err
		}
	}
	profile, ok := store.profiles[userID]
	if !ok {
		return AccountProfile{}, ErrProfileNotFound
	}
	return profile, nil
}

func (store *stubStore) UpdateProfilePoints(ctx context.Context, userID string, total, available, redeemed Points) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, ok := store.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	profile.TotalPoints = total
	profile.AvailablePoints = available
	profile.RedeemedPoints = redeemed
	store.profiles[userID] = profile
	return nil
}

func (store *stubStore) UpdateProfileTier(ctx context.Context, userID string, tier Tier) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, ok := store.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	profile.Tier = tier
	store.profiles[userID] = profile
	return nil
}

func (store *stubStore) ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.listEntriesErr != nil {
		return nil, store.listEntriesErr
	}
	listed := make([]LedgerEntry, 0, len(store.entries))
	for _, entry := range store.entries {
		if entry.UserID == userID {
			listed = append(listed, entry)
		}
		if len(listed) == limit {
			break
		}
	}
	return listed, nil
}

func (store *stubStore) InsertEntry(ctx context.Context, entry LedgerEntry) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertEntryErr != nil {
		return store.insertEntryErr
	}
	store.entries = append(store.entries, entry)
	return nil
}

func (store *stubStore) UpdateEntryStatusByReference(ctx context.Context, referenceID string, from, to EntryStatus) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for index, entry := range store.entries {
		if entry.ReferenceID == referenceID && entry.Status == from {
			store.entries[index].Status = to
			return nil
		}
	}
	// The paired entry is best-effort; a missing one is not an error.
	return nil
}

func (store *stubStore) InsertRedemption(ctx context.Context, request RedemptionRequest) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.insertRedemptionErr != nil {
		return store.insertRedemptionErr
	}
	store.redemptions[request.RequestID] = request
	return nil
}

func (store *stubStore) GetRedemption(ctx context.Context, requestID string) (RedemptionRequest, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	request, ok := store.redemptions[requestID]
	if !ok {
		return RedemptionRequest{}, ErrRedemptionNotFound
	}
	return request, nil
}

func (store *stubStore) ListRedemptions(ctx context.Context, userID string) ([]RedemptionRequest, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	listed := make([]RedemptionRequest, 0, len(store.redemptions))
	for _, request := range store.redemptions {
		if request.UserID == userID {
			listed = append(listed, request)
		}
	}
	return listed, nil
}

func (store *stubStore) UpdateRedemptionStatus(ctx context.Context, requestID string, from, to RedemptionStatus) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	request, ok := store.redemptions[requestID]
	if !ok {
		return ErrRedemptionNotFound
	}
	if request.Status != from {
		return ErrRedemptionClosed
	}
	request.Status = to
	store.redemptions[requestID] = request
	return nil
}

// recordingLogger captures operation logs for assertions.
type recordingLogger struct {
	mutex sync.Mutex
	logs  []OperationLog
}

func (logger *recordingLogger) LogOperation(ctx context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.logs = append(logger.logs, entry)
}

func (logger *recordingLogger) entries() []OperationLog {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	return append([]OperationLog(nil), logger.logs...)
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id %q: %v", raw, err)
	}
	return userID
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() time.Time { return time.Unix(1700000000, 0).UTC() }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustNewCoordinator(test *testing.T, store Store, logger OperationLogger) *Coordinator {
	test.Helper()
	coordinator, err := NewCoordinator(store, func() time.Time { return time.Unix(1700000000, 0).UTC() }, logger)
	if err != nil {
		test.Fatalf("new coordinator: %v", err)
	}
	return coordinator
}
