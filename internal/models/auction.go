// internal/models/auction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Auction struct {
	BaseModel
	SellerID    uuid.UUID `json:"seller_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Category    string    `json:"category" gorm:"size:100;index"`

	Images pq.StringArray `json:"images" gorm:"type:text[]"`

	StartPrice  decimal.Decimal     `json:"start_price" gorm:"type:decimal(14,2);not null"`
	BidStep     decimal.Decimal     `json:"bid_step" gorm:"type:decimal(14,2);not null"`
	BuyNowPrice decimal.NullDecimal `json:"buy_now_price" gorm:"type:decimal(14,2)"`

	// CurrentPrice, LeaderID and LeaderMax are null while the auction has no
	// leader. LeaderMax >= CurrentPrice holds whenever a leader exists.
	CurrentPrice decimal.NullDecimal `json:"current_price" gorm:"type:decimal(14,2)"`
	LeaderID     *uuid.UUID          `json:"leader_id" gorm:"type:uuid;index"`
	LeaderMax    decimal.NullDecimal `json:"-" gorm:"type:decimal(14,2)"`

	Status       AuctionStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	EndTime      time.Time     `json:"end_time" gorm:"not null;index"`
	IsAutoExtend bool          `json:"is_auto_extend" gorm:"default:false"`
	// IsAccepted marks rating-gated auctions: only bidders with a positive
	// feedback ratio above the configured threshold may bid.
	IsAccepted bool `json:"is_accepted" gorm:"default:false"`

	// Version backs the optimistic conditional update that serializes
	// concurrent bids and the scheduler's finalize on this row.
	Version int `json:"-" gorm:"not null;default:0"`

	// Relationships
	Seller *User `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Leader *User `json:"leader,omitempty" gorm:"foreignKey:LeaderID"`
	Bids   []Bid `json:"bids,omitempty" gorm:"foreignKey:AuctionID"`
}

func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

func (a *Auction) HasLeader() bool {
	return a.LeaderID != nil
}

// Bid is one row of the append-only ledger. Every successful placement call
// inserts exactly one row; rows are never mutated or deleted.
type Bid struct {
	BaseModel
	AuctionID uuid.UUID       `json:"auction_id" gorm:"type:uuid;not null;index"`
	BidderID  uuid.UUID       `json:"bidder_id" gorm:"type:uuid;not null;index"`
	BidAmount decimal.Decimal `json:"bid_amount" gorm:"type:decimal(14,2);not null"`
	// MaxAutoBid is the raw ceiling the bidder authorized on this call.
	MaxAutoBid decimal.Decimal `json:"-" gorm:"type:decimal(14,2);not null"`

	Bidder *User `json:"bidder,omitempty" gorm:"foreignKey:BidderID"`
}

// Ban excludes a bidder from one auction, inserted by the seller.
type Ban struct {
	BaseModel
	AuctionID uuid.UUID `json:"auction_id" gorm:"type:uuid;not null;uniqueIndex:idx_bans_auction_bidder"`
	BidderID  uuid.UUID `json:"bidder_id" gorm:"type:uuid;not null;uniqueIndex:idx_bans_auction_bidder"`
}
