package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserProfile mirrors the user_profiles table.
type UserProfile struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	UserID          string    `gorm:"not null;uniqueIndex:uniq_profiles_user"`
	FullName        string    `gorm:"not null"`
	Email           string    `gorm:"not null"`
	PhoneNumber     *string   `gorm:""`
	TotalPoints     int64     `gorm:"not null;default:0"`
	AvailablePoints int64     `gorm:"not null;default:0"`
	RedeemedPoints  int64     `gorm:"not null;default:0"`
	Tier            string    `gorm:"not null;default:'Bronze'"`
	MemberSince     time.Time `gorm:"not null"`
	MemberNumber    string    `gorm:"not null;uniqueIndex:uniq_profiles_member_number"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (profile *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table. Amount is positive; direction
// is carried by Type.
type Transaction struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"not null;index:idx_transactions_user_created,priority:1"`
	Type        string    `gorm:"not null"`
	Amount      int64     `gorm:"not null"`
	Description string    `gorm:"not null"`
	Status      string    `gorm:"not null;default:'pending'"`
	ReferenceID *string   `gorm:"index:idx_transactions_reference"`
	CreatedAt   time.Time `gorm:"not null;index:idx_transactions_user_created,priority:2"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	return nil
}

// RedemptionRequest mirrors the redemption_requests table.
type RedemptionRequest struct {
	ID             string          `gorm:"type:uuid;primaryKey"`
	UserID         string          `gorm:"not null;index:idx_redemptions_user_created,priority:1"`
	AccountID      string          `gorm:"not null"`
	FullName       string          `gorm:"not null"`
	GcashNumber    string          `gorm:"not null"`
	PointsRedeemed int64           `gorm:"not null"`
	CashAmount     decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Status         string          `gorm:"not null;default:'pending'"`
	ProcessedAt    *time.Time      `gorm:""`
	CreatedAt      time.Time       `gorm:"not null;index:idx_redemptions_user_created,priority:2"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

func (RedemptionRequest) TableName() string { return "redemption_requests" }

func (request *RedemptionRequest) BeforeCreate(tx *gorm.DB) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	return nil
}
