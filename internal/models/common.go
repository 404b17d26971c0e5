// internal/models/common.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Enums
type UserType string

const (
	UserTypeBidder UserType = "bidder"
	UserTypeSeller UserType = "seller"
	UserTypeAdmin  UserType = "admin"
)

type AuctionStatus string

const (
	AuctionStatusActive AuctionStatus = "active"
	AuctionStatusEnded  AuctionStatus = "ended"
	AuctionStatusFailed AuctionStatus = "failed"
)

// SettlementStatus is the stored transaction status. The step-by-step
// settlement position is derived from the confirmation flags, never stored.
type SettlementStatus int

const (
	SettlementStatusCancelled  SettlementStatus = 0
	SettlementStatusProcessing SettlementStatus = 1
	SettlementStatusSuccess    SettlementStatus = 2
)

// SettlementState is the derived position in the buyer/seller handshake.
type SettlementState string

const (
	SettlementStateNeedsAddress  SettlementState = "needs_address"
	SettlementStateNeedsPayment  SettlementState = "needs_payment"
	SettlementStateNeedsShipping SettlementState = "needs_shipping"
	SettlementStateNeedsReceipt  SettlementState = "needs_receipt"
	SettlementStateComplete      SettlementState = "complete"
	SettlementStateCancelled     SettlementState = "cancelled"
)
