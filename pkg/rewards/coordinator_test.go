package rewards

import (
	"context"
	"errors"
	"testing"
)

func TestSubmitWritesRequestAndPairedEntry(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	coordinator := mustNewCoordinator(test, store, nil)
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 5000})

	result := coordinator.Submit(context.Background(), mustUserID(test, "user-1"), validInput())
	if result.State != SubmissionSucceeded {
		test.Fatalf("expected success, got %s (%s)", result.State, result.Message)
	}
	request, ok := store.redemptions[result.RequestID]
	if !ok {
		test.Fatalf("redemption request not stored")
	}
	if request.Status != RedemptionStatusPending {
		test.Fatalf("expected pending request, got %s", request.Status)
	}
	if request.CashAmount.StringFixed(2) != "10.00" {
		test.Fatalf("expected cash 10.00, got %s", request.CashAmount)
	}
	if len(store.entries) != 1 {
		test.Fatalf("expected paired ledger entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.Kind != EntryRedeemed || entry.Status != EntryStatusPending {
		test.Fatalf("expected pending redeemed entry, got %s/%s", entry.Kind, entry.Status)
	}
	if entry.ReferenceID != result.RequestID {
		test.Fatalf("paired entry must reference the request, got %q", entry.ReferenceID)
	}
}

func TestSubmitAppliesOptimisticDecrement(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	coordinator := mustNewCoordinator(test, store, nil)
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 5000})

	result := coordinator.Submit(context.Background(), mustUserID(test, "user-1"), validInput())
	if result.State != SubmissionSucceeded {
		test.Fatalf("expected success, got %s", result.State)
	}
	balance := coordinator.Balance()
	if balance.Available != 4000 {
		test.Fatalf("expected optimistic balance 4000, got %d", balance.Available)
	}
	if balance.Confidence != ConfidenceOptimistic {
		test.Fatalf("expected optimistic confidence, got %s", balance.Confidence)
	}

	// The next authoritative snapshot wins, whatever it says.
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 4700})
	balance = coordinator.Balance()
	if balance.Available != 4700 || balance.Confidence != ConfidenceConfirmed {
		test.Fatalf("authoritative reload must supersede: %+v", balance)
	}
}

func TestSubmitValidationFailureMakesNoStoreCall(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	coordinator := mustNewCoordinator(test, store, nil)
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 500})

	result := coordinator.Submit(context.Background(), mustUserID(test, "user-1"), validInput())
	if result.State != SubmissionFailed {
		test.Fatalf("expected failure, got %s", result.State)
	}
	if len(result.FieldErrors) != 1 || result.FieldErrors[0].Code != CodeInsufficientBalance {
		test.Fatalf("expected insufficient balance field error, got %+v", result.FieldErrors)
	}
	if len(store.redemptions) != 0 || len(store.entries) != 0 {
		test.Fatalf("validation failure must not touch the store")
	}
	if coordinator.Balance().Available != 500 {
		test.Fatalf("no optimistic mutation on failure, got %d", coordinator.Balance().Available)
	}
}

func TestSubmitRequestInsertFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.insertRedemptionErr = ErrUpstream
	coordinator := mustNewCoordinator(test, store, nil)
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 5000})

	result := coordinator.Submit(context.Background(), mustUserID(test, "user-1"), validInput())
	if result.State != SubmissionFailed {
		test.Fatalf("expected failure, got %s", result.State)
	}
	if !errors.Is(result.Err, ErrUpstream) {
		test.Fatalf("expected upstream error, got %v", result.Err)
	}
	if coordinator.Balance().Available != 5000 {
		test.Fatalf("no optimistic mutation on failed insert, got %d", coordinator.Balance().Available)
	}
	if coordinator.Balance().Confidence != ConfidenceConfirmed {
		test.Fatalf("confidence must stay confirmed on failure")
	}
}

func TestSubmitPairedEntryFailureStillSucceeds(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.insertEntryErr = ErrUpstream
	logger := &recordingLogger{}
	coordinator := mustNewCoordinator(test, store, logger)
	coordinator.AdoptAuthoritative(AccountProfile{AvailablePoints: 5000})

	result := coordinator.Submit(context.Background(), mustUserID(test, "user-1"), validInput())
	if result.State != SubmissionSucceeded {
		test.Fatalf("request write succeeded, submission must succeed: %s", result.State)
	}
	if coordinator.Balance().Available != 4000 {
		test.Fatalf("optimistic decrement still applies, got %d", coordinator.Balance().Available)
	}

	logged := logger.entries()
	if len(logged) != 1 {
		test.Fatalf("expected one operation log, got %d", len(logged))
	}
	if !errors.Is(logged[0].Error, ErrInconsistentWrite) {
		test.Fatalf("inconsistent paired write must be logged, got %v", logged[0].Error)
	}
	if logged[0].Status != operationStatusOK {
		test.Fatalf("submission is still reported ok, got %s", logged[0].Status)
	}
}
