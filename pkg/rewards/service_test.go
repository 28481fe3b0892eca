package rewards

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestGrantPointsUpdatesProfileAndLedger(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 400, 300, 100)
	service := mustNewService(test, store)

	if err := service.GrantPoints(context.Background(), mustUserID(test, "user-1"), 250, "store visit"); err != nil {
		test.Fatalf("grant: %v", err)
	}
	profile := store.profiles["user-1"]
	if profile.TotalPoints != 650 || profile.AvailablePoints != 550 || profile.RedeemedPoints != 100 {
		test.Fatalf("unexpected profile totals: %+v", profile)
	}
	if len(store.entries) != 1 {
		test.Fatalf("expected one ledger entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.Kind != EntryEarned || entry.Status != EntryStatusCompleted || entry.Amount != 250 {
		test.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestGrantPointsRejectsNonPositiveAmount(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 0, 0, 0)
	service := mustNewService(test, store)

	err := service.GrantPoints(context.Background(), mustUserID(test, "user-1"), 0, "noop")
	if !errors.Is(err, ErrInvalidPoints) {
		test.Fatalf("expected invalid points, got %v", err)
	}
	if len(store.entries) != 0 {
		test.Fatalf("no entry on rejected grant")
	}
}

func seedPendingRedemption(store *stubStore, requestID, userID string, points Points) {
	store.redemptions[requestID] = RedemptionRequest{
		RequestID:      requestID,
		UserID:         userID,
		PointsRedeemed: points,
		CashAmount:     CashValue(points),
		Status:         RedemptionStatusPending,
	}
	store.entries = append(store.entries, LedgerEntry{
		EntryID:     "paired-" + requestID,
		UserID:      userID,
		Kind:        EntryRedeemed,
		Amount:      points,
		Status:      EntryStatusPending,
		ReferenceID: requestID,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	})
}

func TestProcessRedemptionApproveDeductsPoints(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 5000, 5000, 0)
	seedPendingRedemption(store, "req-1", "user-1", 1000)
	service := mustNewService(test, store)

	if err := service.ProcessRedemption(context.Background(), "req-1", true); err != nil {
		test.Fatalf("process: %v", err)
	}
	profile := store.profiles["user-1"]
	if profile.AvailablePoints != 4000 || profile.RedeemedPoints != 1000 || profile.TotalPoints != 5000 {
		test.Fatalf("unexpected totals after approval: %+v", profile)
	}
	if store.redemptions["req-1"].Status != RedemptionStatusCompleted {
		test.Fatalf("expected completed request, got %s", store.redemptions["req-1"].Status)
	}
	if store.entries[0].Status != EntryStatusCompleted {
		test.Fatalf("paired entry must complete, got %s", store.entries[0].Status)
	}
}

func TestProcessRedemptionRejectLeavesBalance(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 5000, 5000, 0)
	seedPendingRedemption(store, "req-1", "user-1", 1000)
	service := mustNewService(test, store)

	if err := service.ProcessRedemption(context.Background(), "req-1", false); err != nil {
		test.Fatalf("process: %v", err)
	}
	profile := store.profiles["user-1"]
	if profile.AvailablePoints != 5000 || profile.RedeemedPoints != 0 {
		test.Fatalf("rejection must not touch balance: %+v", profile)
	}
	if store.redemptions["req-1"].Status != RedemptionStatusRejected {
		test.Fatalf("expected rejected request, got %s", store.redemptions["req-1"].Status)
	}
	if store.entries[0].Status != EntryStatusFailed {
		test.Fatalf("paired entry must fail, got %s", store.entries[0].Status)
	}
}

func TestProcessRedemptionClosedRequest(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 5000, 5000, 0)
	seedPendingRedemption(store, "req-1", "user-1", 1000)
	request := store.redemptions["req-1"]
	request.Status = RedemptionStatusCompleted
	store.redemptions["req-1"] = request
	service := mustNewService(test, store)

	err := service.ProcessRedemption(context.Background(), "req-1", true)
	if !errors.Is(err, ErrRedemptionClosed) {
		test.Fatalf("expected closed error, got %v", err)
	}
}

func TestProcessRedemptionInsufficientBalanceAtApproval(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 500, 500, 0)
	seedPendingRedemption(store, "req-1", "user-1", 1000)
	service := mustNewService(test, store)

	err := service.ProcessRedemption(context.Background(), "req-1", true)
	var balanceError InsufficientBalanceError
	if !errors.As(err, &balanceError) {
		test.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if balanceError.Available != 500 || balanceError.Requested != 1000 {
		test.Fatalf("unexpected error payload: %+v", balanceError)
	}
}

func TestSyncTierPersistsChange(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 21000, 21000, 0)
	service := mustNewService(test, store)

	tier, err := service.SyncTier(context.Background(), mustUserID(test, "user-1"))
	if err != nil {
		test.Fatalf("sync tier: %v", err)
	}
	if tier != TierGold {
		test.Fatalf("expected Gold, got %s", tier)
	}
	if store.profiles["user-1"].Tier != TierGold {
		test.Fatalf("tier not persisted: %s", store.profiles["user-1"].Tier)
	}
}

func TestRedemptionHistoryScopedToUser(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	seedProfile(store, "user-1", 5000, 5000, 0)
	seedPendingRedemption(store, "req-1", "user-1", 1000)
	seedPendingRedemption(store, "req-2", "user-2", 2000)
	service := mustNewService(test, store)

	history, err := service.RedemptionHistory(context.Background(), mustUserID(test, "user-1"))
	if err != nil {
		test.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].RequestID != "req-1" {
		test.Fatalf("unexpected history: %+v", history)
	}
	if !history[0].CashAmount.Equal(decimal.NewFromInt(10)) {
		test.Fatalf("expected cash 10, got %s", history[0].CashAmount)
	}
}
