// internal/models/transaction.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the post-auction settlement record between the winning
// bidder and the seller. Exactly one exists per auction that terminated with
// a winner.
type Transaction struct {
	BaseModel
	AuctionID  uuid.UUID       `json:"auction_id" gorm:"type:uuid;not null;uniqueIndex"`
	BuyerID    uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID   uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	FinalPrice decimal.Decimal `json:"final_price" gorm:"type:decimal(14,2);not null"`

	ShippingAddress   string `json:"shipping_address" gorm:"size:500"`
	PaymentConfirmed  bool   `json:"payment_confirmed" gorm:"default:false"`
	ShippingConfirmed bool   `json:"shipping_confirmed" gorm:"default:false"`
	BuyerConfirmed    bool   `json:"buyer_confirmed" gorm:"default:false"`

	// Evidence artifact references under the per-transaction namespace.
	PaymentProofKey  string `json:"payment_proof_key,omitempty" gorm:"size:500"`
	ShippingProofKey string `json:"shipping_proof_key,omitempty" gorm:"size:500"`

	Status SettlementStatus `json:"status" gorm:"not null;default:1;index"`

	Auction *Auction `json:"auction,omitempty" gorm:"foreignKey:AuctionID"`
	Buyer   *User    `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller  *User    `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
}

// State derives the settlement position from the stored flags. It is never
// persisted alongside them.
func (t *Transaction) State() SettlementState {
	switch {
	case t.Status == SettlementStatusCancelled:
		return SettlementStateCancelled
	case t.BuyerConfirmed:
		return SettlementStateComplete
	case t.ShippingConfirmed:
		return SettlementStateNeedsReceipt
	case t.PaymentConfirmed:
		return SettlementStateNeedsShipping
	case t.ShippingAddress != "":
		return SettlementStateNeedsPayment
	default:
		return SettlementStateNeedsAddress
	}
}

// Terminal reports whether the handshake can no longer advance.
func (t *Transaction) Terminal() bool {
	return t.Status != SettlementStatusProcessing
}

// Rating is one party's feedback on a finished transaction, one per
// (transaction, rater).
type Rating struct {
	BaseModel
	TransactionID uuid.UUID `json:"transaction_id" gorm:"type:uuid;not null;uniqueIndex:idx_ratings_transaction_rater"`
	RaterID       uuid.UUID `json:"rater_id" gorm:"type:uuid;not null;uniqueIndex:idx_ratings_transaction_rater"`
	RateeID       uuid.UUID `json:"ratee_id" gorm:"type:uuid;not null;index"`
	IsPositive    bool      `json:"is_positive" gorm:"not null"`
	Comment       string    `json:"comment" gorm:"type:text"`

	Rater *User `json:"rater,omitempty" gorm:"foreignKey:RaterID"`
}
