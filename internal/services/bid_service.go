// internal/services/bid_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/database"
	"github.com/openbid/auction-backend/internal/models"
)

// BidService is the proxy bidding engine. A submitted ceiling (max auto-bid)
// is converted into a new price/leader per English auction rules, with the
// ledger append and the price update committing atomically.
type BidService struct {
	db            *gorm.DB
	config        *config.Config
	eligibility   *EligibilityService
	notifications *NotificationService
}

type BidResult struct {
	AuctionID     uuid.UUID       `json:"auction_id"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	LeaderChanged bool            `json:"leader_changed"`
	BoughtNow     bool            `json:"bought_now"`
}

func NewBidService(db *gorm.DB, config *config.Config, eligibility *EligibilityService, notifications *NotificationService) *BidService {
	return &BidService{
		db:            db,
		config:        config,
		eligibility:   eligibility,
		notifications: notifications,
	}
}

// PlaceBid runs one placement call: eligibility gate, proxy computation,
// conditional auction update plus ledger append, and the buy-now
// short-circuit. Concurrent placements on the same auction are serialized by
// the version check; a lost race surfaces as a conflict.
func (s *BidService) PlaceBid(auctionID, bidderID uuid.UUID, maxBid decimal.Decimal) (*BidResult, error) {
	if !maxBid.IsPositive() {
		return nil, apperrors.Validation("bid amount must be greater than zero")
	}

	var result *BidResult
	var events []Event

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var auction models.Auction
		if err := tx.First(&auction, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("auction")
			}
			return fmt.Errorf("failed to load auction: %w", err)
		}

		if !auction.IsActive() {
			return apperrors.InvalidState("auction has ended")
		}
		if auction.SellerID == bidderID {
			return apperrors.Forbidden("seller cannot bid on own auction")
		}

		// The gate is a pure read and must pass before anything mutates.
		if err := s.eligibility.CheckEligible(tx, &auction, bidderID); err != nil {
			return err
		}

		outcome, err := computeProxyOutcome(&auction, bidderID, maxBid)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"current_price": decimal.NewNullDecimal(outcome.price),
			"leader_id":     outcome.leaderID,
			"leader_max":    decimal.NewNullDecimal(outcome.leaderMax),
			"version":       auction.Version + 1,
		}

		if outcome.boughtNow {
			updates["status"] = models.AuctionStatusEnded
		} else if auction.IsAutoExtend && time.Until(auction.EndTime) <= s.extendThreshold() {
			// Anti-sniping: a late bid pushes the close forward.
			updates["end_time"] = auction.EndTime.Add(s.extendAdd())
			events = append(events, Event{
				Type:        EventAuctionExtended,
				RecipientID: auction.SellerID,
				AuctionID:   auction.ID,
			})
		}

		// Conditional update serializes concurrent placements and the
		// scheduler's finalize on this row.
		res := tx.Model(&models.Auction{}).
			Where("id = ? AND version = ? AND status = ?", auction.ID, auction.Version, models.AuctionStatusActive).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("auction was modified concurrently")
		}

		// Exactly one ledger row per successful call, self-raises included.
		bid := &models.Bid{
			AuctionID:  auction.ID,
			BidderID:   bidderID,
			BidAmount:  outcome.price,
			MaxAutoBid: maxBid,
		}
		if err := tx.Create(bid).Error; err != nil {
			return fmt.Errorf("failed to append bid: %w", err)
		}

		if outcome.boughtNow {
			transaction := &models.Transaction{
				AuctionID:  auction.ID,
				BuyerID:    bidderID,
				SellerID:   auction.SellerID,
				FinalPrice: outcome.price,
				Status:     models.SettlementStatusProcessing,
			}
			if err := tx.Create(transaction).Error; err != nil {
				return fmt.Errorf("failed to create settlement transaction: %w", err)
			}
			events = append(events,
				Event{Type: EventAuctionWon, RecipientID: bidderID, AuctionID: auction.ID, TransactionID: transaction.ID},
				Event{Type: EventAuctionSold, RecipientID: auction.SellerID, AuctionID: auction.ID, TransactionID: transaction.ID},
			)
		} else {
			events = append(events, Event{
				Type:        EventBidConfirmed,
				RecipientID: bidderID,
				AuctionID:   auction.ID,
				Payload:     map[string]interface{}{"price": outcome.price.String()},
			})
			if outcome.priceChanged {
				events = append(events, Event{
					Type:        EventPriceUpdated,
					RecipientID: auction.SellerID,
					AuctionID:   auction.ID,
					Payload:     map[string]interface{}{"price": outcome.price.String()},
				})
			}
			if outcome.displaced != nil {
				events = append(events, Event{
					Type:        EventOutbid,
					RecipientID: *outcome.displaced,
					AuctionID:   auction.ID,
					Payload:     map[string]interface{}{"price": outcome.price.String()},
				})
			}
		}

		result = &BidResult{
			AuctionID:     auction.ID,
			FinalPrice:    outcome.price,
			LeaderChanged: outcome.leaderChanged,
			BoughtNow:     outcome.boughtNow,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Emit(events...)
	return result, nil
}

// proxyOutcome is the computed post-bid auction state.
type proxyOutcome struct {
	price         decimal.Decimal
	leaderID      *uuid.UUID
	leaderMax     decimal.Decimal
	leaderChanged bool
	priceChanged  bool
	boughtNow     bool
	displaced     *uuid.UUID
}

// computeProxyOutcome applies the auction rules to one submitted ceiling.
// The incumbent keeps leadership against any ceiling at or below their own;
// a higher ceiling takes over at one step above the incumbent's max, capped
// by the challenger's ceiling.
func computeProxyOutcome(auction *models.Auction, bidderID uuid.UUID, maxBid decimal.Decimal) (*proxyOutcome, error) {
	if auction.BuyNowPrice.Valid && maxBid.GreaterThanOrEqual(auction.BuyNowPrice.Decimal) {
		price := auction.BuyNowPrice.Decimal
		leaderChanged := auction.LeaderID == nil || *auction.LeaderID != bidderID
		return &proxyOutcome{
			price:         price,
			leaderID:      &bidderID,
			leaderMax:     price,
			leaderChanged: leaderChanged,
			priceChanged:  true,
			boughtNow:     true,
			displaced:     displacedLeader(auction, bidderID),
		}, nil
	}

	if !auction.HasLeader() {
		if maxBid.LessThan(auction.StartPrice) {
			return nil, apperrors.Validation("bid must be at least the starting price")
		}
		return &proxyOutcome{
			price:         auction.StartPrice,
			leaderID:      &bidderID,
			leaderMax:     maxBid,
			leaderChanged: true,
			priceChanged:  true,
		}, nil
	}

	currentPrice := auction.CurrentPrice.Decimal
	leaderMax := auction.LeaderMax.Decimal

	if *auction.LeaderID == bidderID {
		// Self-raise: price and leadership untouched, the ceiling only goes
		// up. The ledger row still records the intent.
		newMax := leaderMax
		if maxBid.GreaterThan(leaderMax) {
			newMax = maxBid
		}
		return &proxyOutcome{
			price:     currentPrice,
			leaderID:  auction.LeaderID,
			leaderMax: newMax,
		}, nil
	}

	if maxBid.LessThanOrEqual(currentPrice) {
		return nil, apperrors.Validation("bid must exceed the current price")
	}

	if maxBid.LessThanOrEqual(leaderMax) {
		// The incumbent's ceiling covers the challenge: price rises to the
		// challenger's ceiling, leadership stays put.
		return &proxyOutcome{
			price:        maxBid,
			leaderID:     auction.LeaderID,
			leaderMax:    leaderMax,
			priceChanged: true,
		}, nil
	}

	price := decimal.Min(maxBid, leaderMax.Add(auction.BidStep))
	displaced := *auction.LeaderID
	return &proxyOutcome{
		price:         price,
		leaderID:      &bidderID,
		leaderMax:     maxBid,
		leaderChanged: true,
		priceChanged:  true,
		displaced:     &displaced,
	}, nil
}

func displacedLeader(auction *models.Auction, bidderID uuid.UUID) *uuid.UUID {
	if auction.LeaderID == nil || *auction.LeaderID == bidderID {
		return nil
	}
	displaced := *auction.LeaderID
	return &displaced
}

func (s *BidService) extendThreshold() time.Duration {
	return time.Duration(s.config.Auction.ExtendThresholdMinutes) * time.Minute
}

func (s *BidService) extendAdd() time.Duration {
	return time.Duration(s.config.Auction.ExtendAddMinutes) * time.Minute
}
