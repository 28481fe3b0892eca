package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Points is an integer loyalty-point quantity.
type Points int64

// NewPoints validates a point amount and ensures it is strictly positive.
func NewPoints(raw int64) (Points, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPoints)
	}
	return Points(raw), nil
}

// Int64 returns the raw point count.
func (points Points) Int64() int64 {
	return int64(points)
}

// UserID identifies an account owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrNotAuthenticated)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// EntryKind enumerates ledger entry kinds as stored upstream.
type EntryKind string

const (
	EntryEarned   EntryKind = "earned"
	EntryRedeemed EntryKind = "redeemed"
	EntryBonus    EntryKind = "bonus"
)

// ParseEntryKind maps a stored kind string to an EntryKind.
func ParseEntryKind(raw string) (EntryKind, error) {
	switch EntryKind(raw) {
	case EntryEarned, EntryRedeemed, EntryBonus:
		return EntryKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, raw)
}

// String returns the stored representation.
func (kind EntryKind) String() string {
	return string(kind)
}

// EntryStatus defines the ledger entry lifecycle.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
)

// String returns the stored representation.
func (status EntryStatus) String() string {
	return string(status)
}

// RedemptionStatus defines the redemption request lifecycle. Transitions past
// pending are driven by an operator, never by the client core.
type RedemptionStatus string

const (
	RedemptionStatusPending    RedemptionStatus = "pending"
	RedemptionStatusProcessing RedemptionStatus = "processing"
	RedemptionStatusCompleted  RedemptionStatus = "completed"
	RedemptionStatusRejected   RedemptionStatus = "rejected"
)

// String returns the stored representation.
func (status RedemptionStatus) String() string {
	return string(status)
}

// AccountProfile is a read-only snapshot of a user's point account.
type AccountProfile struct {
	UserID          string
	FullName        string
	Email           string
	PhoneNumber     string
	TotalPoints     Points
	AvailablePoints Points
	RedeemedPoints  Points
	Tier            Tier
	MemberSince     time.Time
	MemberNumber    string
}

// LedgerEntry is one immutable earn or redeem event. Amount is always
// positive; direction is carried by Kind.
type LedgerEntry struct {
	EntryID     string
	UserID      string
	Kind        EntryKind
	Amount      Points
	Description string
	Status      EntryStatus
	ReferenceID string
	CreatedAt   time.Time
}

// RedemptionRequest is a payout instruction owned by the upstream store once
// submitted.
type RedemptionRequest struct {
	RequestID       string
	UserID          string
	PayoutAccountID string
	PayoutName      string
	PayoutNumber    string
	PointsRedeemed  Points
	CashAmount      decimal.Decimal
	Status          RedemptionStatus
	CreatedAt       time.Time
}

// Confidence tags an in-memory balance as server-confirmed or locally
// adjusted ahead of confirmation.
type Confidence string

const (
	ConfidenceConfirmed  Confidence = "confirmed"
	ConfidenceOptimistic Confidence = "optimistic"
)

// Balance is the redeemable point balance with its provenance tag.
type Balance struct {
	Available  Points
	Confidence Confidence
}

// Store is the persistence contract used by Service and Coordinator.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateProfile(ctx context.Context, profile AccountProfile) error
	GetProfile(ctx context.Context, userID string) (AccountProfile, error)
	UpdateProfilePoints(ctx context.Context, userID string, total, available, redeemed Points) error
	UpdateProfileTier(ctx context.Context, userID string, tier Tier) error
	ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
	InsertEntry(ctx context.Context, entry LedgerEntry) error
	UpdateEntryStatusByReference(ctx context.Context, referenceID string, from, to EntryStatus) error
	InsertRedemption(ctx context.Context, request RedemptionRequest) error
	GetRedemption(ctx context.Context, requestID string) (RedemptionRequest, error)
	ListRedemptions(ctx context.Context, userID string) ([]RedemptionRequest, error)
	UpdateRedemptionStatus(ctx context.Context, requestID string, from, to RedemptionStatus) error
}
