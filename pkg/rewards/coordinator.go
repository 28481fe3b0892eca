package rewards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubmissionState tracks one redemption attempt through its lifecycle.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionValidating SubmissionState = "validating"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionSucceeded  SubmissionState = "succeeded"
	SubmissionFailed     SubmissionState = "failed"
)

// SubmissionResult is the terminal outcome of one redemption attempt.
// Exactly one user-facing Message is produced per terminal state.
type SubmissionResult struct {
	State       SubmissionState
	RequestID   string
	Redemption  NormalizedRedemption
	FieldErrors []FieldError
	Message     string
	Err         error
}

// Coordinator submits redemption requests and owns the in-memory balance for
// one client session. The balance it tracks is a UI signal against
// double-submission; the upstream store stays authoritative and every
// LoadAccount supersedes it.
type Coordinator struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger

	mutex   sync.Mutex
	balance Balance
}

// NewCoordinator wires a Coordinator. The logger may be nil.
func NewCoordinator(store Store, now func() time.Time, logger OperationLogger) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Coordinator{store: store, nowFn: now, logger: logger}, nil
}

// AdoptAuthoritative replaces the tracked balance with a server-confirmed
// snapshot, discarding any optimistic adjustment.
func (coordinator *Coordinator) AdoptAuthoritative(profile AccountProfile) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	coordinator.balance = Balance{
		Available:  profile.AvailablePoints,
		Confidence: ConfidenceConfirmed,
	}
}

// Balance returns the tracked balance with its confidence tag.
func (coordinator *Coordinator) Balance() Balance {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	return coordinator.balance
}

// Submit validates the redemption against the tracked balance and, when every
// rule passes, writes the request plus its paired pending ledger entry.
// The pair is not atomic: a failed paired entry is logged and the submission
// still succeeds, because the request record is the payout authority.
// Terminal states are never retried here; the caller re-invokes the flow.
func (coordinator *Coordinator) Submit(ctx context.Context, userID UserID, input RawRedemptionInput) SubmissionResult {
	validation := ValidateRedemption(input, coordinator.Balance().Available)
	if !validation.OK() {
		return SubmissionResult{
			State:       SubmissionFailed,
			FieldErrors: validation.FieldErrors(),
			Message:     "please correct the highlighted fields",
		}
	}
	redemption := validation.Redemption()

	request := RedemptionRequest{
		RequestID:       uuid.NewString(),
		UserID:          userID.String(),
		PayoutAccountID: redemption.PayoutAccountID,
		PayoutName:      redemption.PayoutName,
		PayoutNumber:    redemption.PayoutNumber,
		PointsRedeemed:  redemption.PointsToRedeem,
		CashAmount:      redemption.CashAmount,
		Status:          RedemptionStatusPending,
		CreatedAt:       coordinator.nowFn(),
	}
	if err := coordinator.store.InsertRedemption(ctx, request); err != nil {
		coordinator.logOperation(ctx, OperationLog{
			Operation: operationSubmit,
			UserID:    userID.String(),
			Points:    redemption.PointsToRedeem,
			Error:     err,
		})
		return SubmissionResult{
			State:   SubmissionFailed,
			Err:     err,
			Message: "failed to process redemption, please try again",
		}
	}

	// Points are deducted only when an operator approves the request; the
	// pending entry keeps the redemption visible in the ledger meanwhile.
	entry := LedgerEntry{
		UserID:      userID.String(),
		Kind:        EntryRedeemed,
		Amount:      redemption.PointsToRedeem,
		Description: fmt.Sprintf("Redemption request - %d points to GCash (%s)", redemption.PointsToRedeem, redemption.PayoutNumber),
		Status:      EntryStatusPending,
		ReferenceID: request.RequestID,
		CreatedAt:   coordinator.nowFn(),
	}
	if err := coordinator.store.InsertEntry(ctx, entry); err != nil {
		coordinator.logOperation(ctx, OperationLog{
			Operation: operationSubmit,
			UserID:    userID.String(),
			RequestID: request.RequestID,
			Points:    redemption.PointsToRedeem,
			Status:    operationStatusOK,
			Error:     fmt.Errorf("%w: %v", ErrInconsistentWrite, err),
		})
	} else {
		coordinator.logOperation(ctx, OperationLog{
			Operation: operationSubmit,
			UserID:    userID.String(),
			RequestID: request.RequestID,
			Points:    redemption.PointsToRedeem,
		})
	}

	coordinator.applyOptimisticDecrement(redemption.PointsToRedeem)
	return SubmissionResult{
		State:      SubmissionSucceeded,
		RequestID:  request.RequestID,
		Redemption: redemption,
		Message: fmt.Sprintf(
			"%s points (₱%s) will be sent to your GCash account within 1-3 business days",
			FormatPoints(redemption.PointsToRedeem),
			redemption.CashAmount.StringFixed(2),
		),
	}
}

func (coordinator *Coordinator) applyOptimisticDecrement(points Points) {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()
	coordinator.balance = Balance{
		Available:  coordinator.balance.Available - points,
		Confidence: ConfidenceOptimistic,
	}
}

func (coordinator *Coordinator) logOperation(ctx context.Context, entry OperationLog) {
	if coordinator.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	coordinator.logger.LogOperation(ctx, entry)
}
