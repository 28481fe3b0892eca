package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peraclub/rewards/pkg/rewards"
	"gorm.io/gorm"
)

const (
	errorOperationStore    = "store"
	errorSubjectProfile    = "profile"
	errorSubjectEntry      = "entry"
	errorSubjectRedemption = "redemption"
	errorCodeGet           = "get"
	errorCodeInsert        = "insert"
	errorCodeInvalid       = "invalid"
	errorCodeList          = "list"
	errorCodeUpdate        = "update"
)

// Store implements rewards.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates the rewards tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserProfile{}, &Transaction{}, &RedemptionRequest{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore rewards.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateProfile(ctx context.Context, profile rewards.AccountProfile) error {
	var phone *string
	if profile.PhoneNumber != "" {
		value := profile.PhoneNumber
		phone = &value
	}
	row := UserProfile{
		UserID:          profile.UserID,
		FullName:        profile.FullName,
		Email:           profile.Email,
		PhoneNumber:     phone,
		TotalPoints:     profile.TotalPoints.Int64(),
		AvailablePoints: profile.AvailablePoints.Int64(),
		RedeemedPoints:  profile.RedeemedPoints.Int64(),
		Tier:            profile.Tier.String(),
		MemberSince:     profile.MemberSince,
		MemberNumber:    profile.MemberNumber,
	}
	if row.MemberSince.IsZero() {
		row.MemberSince = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetProfile(ctx context.Context, userID string) (rewards.AccountProfile, error) {
	var row UserProfile
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.AccountProfile{}, rewards.ErrProfileNotFound
	}
	if err != nil {
		return rewards.AccountProfile{}, wrapUpstream(errorSubjectProfile, errorCodeGet, err)
	}
	return mapProfile(row), nil
}

func (store *Store) UpdateProfilePoints(ctx context.Context, userID string, total, available, redeemed rewards.Points) error {
	result := store.db.WithContext(ctx).
		Model(&UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_points":     total.Int64(),
			"available_points": available.Int64(),
			"redeemed_points":  redeemed.Int64(),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return rewards.ErrProfileNotFound
	}
	return nil
}

func (store *Store) UpdateProfileTier(ctx context.Context, userID string, tier rewards.Tier) error {
	result := store.db.WithContext(ctx).
		Model(&UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"tier":       tier.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapUpstream(errorSubjectProfile, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return rewards.ErrProfileNotFound
	}
	return nil
}

func (store *Store) ListEntries(ctx context.Context, userID string, limit int) ([]rewards.LedgerEntry, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapUpstream(errorSubjectEntry, errorCodeList, err)
	}
	entries := make([]rewards.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) InsertEntry(ctx context.Context, entry rewards.LedgerEntry) error {
	var referenceID *string
	if entry.ReferenceID != "" {
		value := entry.ReferenceID
		referenceID = &value
	}
	row := Transaction{
		ID:          entry.EntryID,
		UserID:      entry.UserID,
		Type:        entry.Kind.String(),
		Amount:      entry.Amount.Int64(),
		Description: entry.Description,
		Status:      entry.Status.String(),
		ReferenceID: referenceID,
		CreatedAt:   entry.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapUpstream(errorSubjectEntry, errorCodeInsert, err)
	}
	return nil
}

// UpdateEntryStatusByReference flips the paired ledger entry of a redemption
// request. The pair is best-effort: no matching row is not an error.
func (store *Store) UpdateEntryStatusByReference(ctx context.Context, referenceID string, from, to rewards.EntryStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("reference_id = ? AND status = ?", referenceID, from.String()).
		Updates(map[string]interface{}{
			"status":     to.String(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapUpstream(errorSubjectEntry, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) InsertRedemption(ctx context.Context, request rewards.RedemptionRequest) error {
	row := RedemptionRequest{
		ID:             request.RequestID,
		UserID:         request.UserID,
		AccountID:      request.PayoutAccountID,
		FullName:       request.PayoutName,
		GcashNumber:    request.PayoutNumber,
		PointsRedeemed: request.PointsRedeemed.Int64(),
		CashAmount:     request.CashAmount,
		Status:         request.Status.String(),
		CreatedAt:      request.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapUpstream(errorSubjectRedemption, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetRedemption(ctx context.Context, requestID string) (rewards.RedemptionRequest, error) {
	var row RedemptionRequest
	err := store.db.WithContext(ctx).Where("id = ?", requestID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.RedemptionRequest{}, rewards.ErrRedemptionNotFound
	}
	if err != nil {
		return rewards.RedemptionRequest{}, wrapUpstream(errorSubjectRedemption, errorCodeGet, err)
	}
	return mapRedemption(row), nil
}

func (store *Store) ListRedemptions(ctx context.Context, userID string) ([]rewards.RedemptionRequest, error) {
	var rows []RedemptionRequest
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapUpstream(errorSubjectRedemption, errorCodeList, err)
	}
	requests := make([]rewards.RedemptionRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, mapRedemption(row))
	}
	return requests, nil
}

func (store *Store) UpdateRedemptionStatus(ctx context.Context, requestID string, from, to rewards.RedemptionStatus) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     to.String(),
		"updated_at": now,
	}
	if to == rewards.RedemptionStatusCompleted || to == rewards.RedemptionStatusRejected {
		updates["processed_at"] = now
	}
	result := store.db.WithContext(ctx).
		Model(&RedemptionRequest{}).
		Where("id = ? AND status = ?", requestID, from.String()).
		Updates(updates)
	if result.Error != nil {
		return wrapUpstream(errorSubjectRedemption, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return rewards.ErrRedemptionClosed
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return rewards.WrapError(errorOperationStore, subject, code, err)
}

// wrapUpstream tags a backend failure so callers can degrade with
// errors.Is(err, rewards.ErrUpstream).
func wrapUpstream(subject string, code string, err error) error {
	return wrapStoreError(subject, code, fmt.Errorf("%w: %v", rewards.ErrUpstream, err))
}

func mapProfile(row UserProfile) rewards.AccountProfile {
	var phone string
	if row.PhoneNumber != nil {
		phone = *row.PhoneNumber
	}
	return rewards.AccountProfile{
		UserID:          row.UserID,
		FullName:        row.FullName,
		Email:           row.Email,
		PhoneNumber:     phone,
		TotalPoints:     rewards.Points(row.TotalPoints),
		AvailablePoints: rewards.Points(row.AvailablePoints),
		RedeemedPoints:  rewards.Points(row.RedeemedPoints),
		Tier:            rewards.Tier(row.Tier),
		MemberSince:     row.MemberSince,
		MemberNumber:    row.MemberNumber,
	}
}

func mapTransaction(row Transaction) (rewards.LedgerEntry, error) {
	kind, err := rewards.ParseEntryKind(row.Type)
	if err != nil {
		return rewards.LedgerEntry{}, err
	}
	amount := row.Amount
	if amount < 0 {
		amount = -amount
	}
	var referenceID string
	if row.ReferenceID != nil {
		referenceID = *row.ReferenceID
	}
	return rewards.LedgerEntry{
		EntryID:     row.ID,
		UserID:      row.UserID,
		Kind:        kind,
		Amount:      rewards.Points(amount),
		Description: row.Description,
		Status:      rewards.EntryStatus(row.Status),
		ReferenceID: referenceID,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func mapRedemption(row RedemptionRequest) rewards.RedemptionRequest {
	return rewards.RedemptionRequest{
		RequestID:       row.ID,
		UserID:          row.UserID,
		PayoutAccountID: row.AccountID,
		PayoutName:      row.FullName,
		PayoutNumber:    row.GcashNumber,
		PointsRedeemed:  rewards.Points(row.PointsRedeemed),
		CashAmount:      row.CashAmount,
		Status:          rewards.RedemptionStatus(row.Status),
		CreatedAt:       row.CreatedAt,
	}
}
