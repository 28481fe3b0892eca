package rewards

import (
	"context"
	"fmt"
	"time"
)

// Service contains the ledger-side domain logic over a Store: account loads,
// point grants, tier sync, and the operator half of redemption processing.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
	retry  RetryPolicy
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, retry: DefaultRetryPolicy()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// GrantPoints credits earned points: bumps the profile totals and appends a
// completed earned entry in one transaction.
func (service *Service) GrantPoints(ctx context.Context, userID UserID, amount Points, description string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := NewPoints(amount.Int64()); err != nil {
			return err
		}
		profile, err := transactionStore.GetProfile(ctx, userID.String())
		if err != nil {
			return err
		}
		err = transactionStore.UpdateProfilePoints(
			ctx,
			userID.String(),
			profile.TotalPoints+amount,
			profile.AvailablePoints+amount,
			profile.RedeemedPoints,
		)
		if err != nil {
			return err
		}
		return transactionStore.InsertEntry(ctx, LedgerEntry{
			UserID:      userID.String(),
			Kind:        EntryEarned,
			Amount:      amount,
			Description: description,
			Status:      EntryStatusCompleted,
			CreatedAt:   service.nowFn(),
		})
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationGrant,
		UserID:    userID.String(),
		Points:    amount,
		Error:     operationError,
	})
	return operationError
}

// SyncTier recomputes the tier from the lifetime total using the canonical
// table and persists it when it changed.
func (service *Service) SyncTier(ctx context.Context, userID UserID) (Tier, error) {
	profile, err := service.store.GetProfile(ctx, userID.String())
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationSyncTier, UserID: userID.String(), Error: err})
		return "", err
	}
	tier := ClassifyTier(profile.TotalPoints)
	if tier != profile.Tier {
		if err := service.store.UpdateProfileTier(ctx, userID.String(), tier); err != nil {
			service.logOperation(ctx, OperationLog{Operation: operationSyncTier, UserID: userID.String(), Error: err})
			return "", err
		}
	}
	service.logOperation(ctx, OperationLog{Operation: operationSyncTier, UserID: userID.String()})
	return tier, nil
}

// RedemptionHistory lists the user's redemption requests, newest first.
func (service *Service) RedemptionHistory(ctx context.Context, userID UserID) ([]RedemptionRequest, error) {
	return service.store.ListRedemptions(ctx, userID.String())
}

// ProcessRedemption settles a pending request from the operator side.
// Approval deducts the points and completes the paired ledger entry; rejection
// leaves the balance untouched and fails the paired entry.
func (service *Service) ProcessRedemption(ctx context.Context, requestID string, approve bool) error {
	var userID string
	var points Points
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRedemption(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RedemptionStatusPending && request.Status != RedemptionStatusProcessing {
			return ErrRedemptionClosed
		}
		userID = request.UserID
		points = request.PointsRedeemed

		if !approve {
			if err := transactionStore.UpdateRedemptionStatus(ctx, requestID, request.Status, RedemptionStatusRejected); err != nil {
				return err
			}
			return transactionStore.UpdateEntryStatusByReference(ctx, requestID, EntryStatusPending, EntryStatusFailed)
		}

		profile, err := transactionStore.GetProfile(ctx, request.UserID)
		if err != nil {
			return err
		}
		if profile.AvailablePoints < request.PointsRedeemed {
			return InsufficientBalanceError{Available: profile.AvailablePoints, Requested: request.PointsRedeemed}
		}
		err = transactionStore.UpdateProfilePoints(
			ctx,
			request.UserID,
			profile.TotalPoints,
			profile.AvailablePoints-request.PointsRedeemed,
			profile.RedeemedPoints+request.PointsRedeemed,
		)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateRedemptionStatus(ctx, requestID, request.Status, RedemptionStatusCompleted); err != nil {
			return err
		}
		return transactionStore.UpdateEntryStatusByReference(ctx, requestID, EntryStatusPending, EntryStatusCompleted)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationProcess,
		UserID:    userID,
		RequestID: requestID,
		Points:    points,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
