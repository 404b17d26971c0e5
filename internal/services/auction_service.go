// internal/services/auction_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/database"
	"github.com/openbid/auction-backend/internal/models"
	"github.com/openbid/auction-backend/internal/utils"
)

type AuctionService struct {
	db            *gorm.DB
	config        *config.Config
	notifications *NotificationService
}

type CreateAuctionRequest struct {
	Title           string          `json:"title" validate:"required,min=3,max=255"`
	Description     string          `json:"description" validate:"required,min=10"`
	Category        string          `json:"category" validate:"required"`
	StartPrice      decimal.Decimal `json:"start_price" validate:"positive_decimal"`
	BidStep         decimal.Decimal `json:"bid_step" validate:"positive_decimal"`
	BuyNowPrice     decimal.Decimal `json:"buy_now_price,omitempty"`
	Images          []string        `json:"images,omitempty" validate:"max=10"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,min=5"`
	IsAutoExtend    bool            `json:"is_auto_extend"`
	IsAccepted      bool            `json:"is_accepted"`
}

type AuctionSearchParams struct {
	utils.PaginationParams
	SellerID *uuid.UUID            `json:"seller_id,omitempty"`
	Status   *models.AuctionStatus `json:"status,omitempty"`
}

func NewAuctionService(db *gorm.DB, config *config.Config, notifications *NotificationService) *AuctionService {
	return &AuctionService{
		db:            db,
		config:        config,
		notifications: notifications,
	}
}

func (s *AuctionService) CreateAuction(sellerID uuid.UUID, req *CreateAuctionRequest) (*models.Auction, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("validation failed: %v", err))
	}

	auction := &models.Auction{
		SellerID:     sellerID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Images:       pq.StringArray(req.Images),
		StartPrice:   req.StartPrice,
		BidStep:      req.BidStep,
		Status:       models.AuctionStatusActive,
		EndTime:      time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute),
		IsAutoExtend: req.IsAutoExtend,
		IsAccepted:   req.IsAccepted,
	}

	if req.BuyNowPrice.IsPositive() {
		if req.BuyNowPrice.LessThanOrEqual(req.StartPrice) {
			return nil, apperrors.Validation("buy-now price must exceed the starting price")
		}
		auction.BuyNowPrice = decimal.NewNullDecimal(req.BuyNowPrice)
	}

	if err := s.db.Create(auction).Error; err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	return auction, nil
}

func (s *AuctionService) GetAuction(id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	if err := s.db.Preload("Seller").First(&auction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("auction")
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}
	return &auction, nil
}

func (s *AuctionService) SearchAuctions(params AuctionSearchParams) ([]models.Auction, int64, error) {
	query := s.db.Model(&models.Auction{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		query = query.Where("title LIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count auctions: %w", err)
	}

	allowedSortFields := []string{"created_at", "end_time", "current_price"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var auctions []models.Auction
	if err := query.Find(&auctions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch auctions: %w", err)
	}

	return auctions, total, nil
}

// BidLedgerEntry is the public view of one ledger row. Bidder names are
// masked and authorized ceilings never leave the service.
type BidLedgerEntry struct {
	ID        uuid.UUID       `json:"id"`
	BidAmount decimal.Decimal `json:"bid_amount"`
	Bidder    string          `json:"bidder"`
	CreatedAt time.Time       `json:"created_at"`
}

// GetBidLedger returns the auction's append-only bid history, newest first.
func (s *AuctionService) GetBidLedger(auctionID uuid.UUID) ([]BidLedgerEntry, error) {
	var bids []models.Bid
	err := s.db.Preload("Bidder").
		Where("auction_id = ?", auctionID).
		Order("created_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bid ledger: %w", err)
	}

	entries := make([]BidLedgerEntry, 0, len(bids))
	for _, bid := range bids {
		name := ""
		if bid.Bidder != nil {
			name = maskUsername(bid.Bidder.Username)
		}
		entries = append(entries, BidLedgerEntry{
			ID:        bid.ID,
			BidAmount: bid.BidAmount,
			Bidder:    name,
			CreatedAt: bid.CreatedAt,
		})
	}
	return entries, nil
}

// maskUsername keeps the first and last character of the name.
func maskUsername(username string) string {
	runes := []rune(username)
	if len(runes) <= 2 {
		return "**"
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}

// GetUserBidAuctions lists the distinct auctions a user has bid on.
func (s *AuctionService) GetUserBidAuctions(bidderID uuid.UUID) ([]models.Auction, error) {
	var auctions []models.Auction
	err := s.db.
		Joins("JOIN bids ON bids.auction_id = auctions.id").
		Where("bids.bidder_id = ?", bidderID).
		Distinct("auctions.*").
		Find(&auctions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user auctions: %w", err)
	}
	return auctions, nil
}

// AppendDescription adds a timestamped block to the description. History is
// never edited in place, so earlier bidders keep what they bid on.
func (s *AuctionService) AppendDescription(auctionID, sellerID uuid.UUID, addition string) (*models.Auction, error) {
	if addition == "" {
		return nil, apperrors.Validation("description addition is required")
	}

	var auction models.Auction
	var events []Event

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&auction, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("auction")
			}
			return fmt.Errorf("failed to load auction: %w", err)
		}

		if auction.SellerID != sellerID {
			return apperrors.Forbidden("only the seller can update the description")
		}
		if !auction.IsActive() {
			return apperrors.InvalidState("auction has ended")
		}

		auction.Description = fmt.Sprintf("%s\n\n[%s]\n%s",
			auction.Description, time.Now().Format("2006-01-02 15:04"), addition)

		if err := tx.Model(&models.Auction{}).Where("id = ?", auction.ID).
			Update("description", auction.Description).Error; err != nil {
			return fmt.Errorf("failed to update description: %w", err)
		}

		if auction.HasLeader() {
			events = append(events, Event{
				Type:        EventDescriptionUpdated,
				RecipientID: *auction.LeaderID,
				AuctionID:   auction.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Emit(events...)
	return &auction, nil
}

// RejectBidder bans a bidder from one auction and, when the banned bidder
// led, recomputes price and leadership from the remaining eligible ledger.
func (s *AuctionService) RejectBidder(auctionID, sellerID, bidderID uuid.UUID) error {
	var events []Event

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var auction models.Auction
		if err := tx.First(&auction, auctionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("auction")
			}
			return fmt.Errorf("failed to load auction: %w", err)
		}

		if auction.SellerID != sellerID {
			return apperrors.Forbidden("only the seller can reject bidders")
		}
		if !auction.IsActive() {
			return apperrors.InvalidState("auction has ended")
		}

		var existing models.Ban
		err := tx.Where("auction_id = ? AND bidder_id = ?", auctionID, bidderID).First(&existing).Error
		if err == nil {
			return apperrors.InvalidState("bidder is already restricted")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check ban list: %w", err)
		}

		if err := tx.Create(&models.Ban{AuctionID: auctionID, BidderID: bidderID}).Error; err != nil {
			return fmt.Errorf("failed to create ban: %w", err)
		}

		events = append(events, Event{
			Type:        EventBidderRejected,
			RecipientID: bidderID,
			AuctionID:   auctionID,
		})

		if !auction.HasLeader() || *auction.LeaderID != bidderID {
			return nil
		}

		promoted, err := s.reassignLeadership(tx, &auction)
		if err != nil {
			return err
		}
		if promoted != nil {
			events = append(events, Event{
				Type:        EventPriceUpdated,
				RecipientID: *promoted,
				AuctionID:   auctionID,
				Payload:     map[string]interface{}{"promoted": true},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifications.Emit(events...)
	return nil
}

// reassignLeadership replays the ledger against the ban list: the highest
// remaining ceiling takes the lead at one step over the runner-up, and with
// nobody left the auction reverts to its no-leader state.
func (s *AuctionService) reassignLeadership(tx *gorm.DB, auction *models.Auction) (*uuid.UUID, error) {
	type ceiling struct {
		BidderID uuid.UUID
		MaxBid   decimal.Decimal
	}

	// Highest authorized ceiling per remaining bidder, best first.
	var ceilings []ceiling
	err := tx.Model(&models.Bid{}).
		Select("bidder_id, MAX(max_auto_bid) AS max_bid").
		Where("auction_id = ?", auction.ID).
		Where("bidder_id NOT IN (?)",
			tx.Model(&models.Ban{}).Select("bidder_id").Where("auction_id = ?", auction.ID)).
		Group("bidder_id").
		Order("max_bid DESC").
		Scan(&ceilings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan remaining ceilings: %w", err)
	}

	updates := map[string]interface{}{
		"version": auction.Version + 1,
	}

	var promoted *uuid.UUID
	if len(ceilings) == 0 {
		// Sole bidder banned: back to the no-leader state, still active.
		updates["current_price"] = decimal.NullDecimal{}
		updates["leader_id"] = nil
		updates["leader_max"] = decimal.NullDecimal{}
	} else {
		winner := ceilings[0]
		price := auction.StartPrice
		if len(ceilings) > 1 {
			price = decimal.Min(winner.MaxBid, ceilings[1].MaxBid.Add(auction.BidStep))
		}
		updates["current_price"] = decimal.NewNullDecimal(price)
		updates["leader_id"] = winner.BidderID
		updates["leader_max"] = decimal.NewNullDecimal(winner.MaxBid)
		promoted = &winner.BidderID
	}

	res := tx.Model(&models.Auction{}).
		Where("id = ? AND version = ? AND status = ?", auction.ID, auction.Version, models.AuctionStatusActive).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to reassign leadership: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.Conflict("auction was modified concurrently")
	}

	return promoted, nil
}
