// internal/services/eligibility_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/models"
)

// EligibilityService is the read-only precondition gate run before the
// bidding engine mutates anything.
type EligibilityService struct {
	db     *gorm.DB
	config *config.Config
}

func NewEligibilityService(db *gorm.DB, config *config.Config) *EligibilityService {
	return &EligibilityService{
		db:     db,
		config: config,
	}
}

// CheckEligible denies banned bidders first, then applies the rating gate on
// accepted-only auctions. It reads through tx so the decision and the
// subsequent mutation see the same snapshot.
func (s *EligibilityService) CheckEligible(tx *gorm.DB, auction *models.Auction, bidderID uuid.UUID) error {
	var ban models.Ban
	err := tx.Where("auction_id = ? AND bidder_id = ?", auction.ID, bidderID).First(&ban).Error
	if err == nil {
		return apperrors.Forbidden("restricted by seller")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check ban list: %w", err)
	}

	if !auction.IsAccepted {
		return nil
	}

	var bidder models.User
	if err := tx.First(&bidder, bidderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("bidder")
		}
		return fmt.Errorf("failed to load bidder: %w", err)
	}

	ratio, hasHistory := bidder.PositiveRatio()
	if !hasHistory {
		return apperrors.Forbidden("no rating history")
	}
	if ratio < s.config.Auction.RatingThreshold {
		return apperrors.Forbidden("insufficient rating")
	}

	return nil
}
