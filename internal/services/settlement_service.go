// internal/services/settlement_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/database"
	"github.com/openbid/auction-backend/internal/models"
)

// SettlementService drives the post-auction buyer/seller handshake. Each
// step is actor-identity check, guard check and a single flag flip; steps
// never skip and never revert.
type SettlementService struct {
	db            *gorm.DB
	config        *config.Config
	storage       *StorageService
	notifications *NotificationService
}

type SubmitRatingRequest struct {
	IsPositive bool   `json:"is_positive"`
	Comment    string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

func NewSettlementService(db *gorm.DB, config *config.Config, storage *StorageService, notifications *NotificationService) *SettlementService {
	return &SettlementService{
		db:            db,
		config:        config,
		storage:       storage,
		notifications: notifications,
	}
}

func (s *SettlementService) GetTransaction(id uuid.UUID, actorID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Auction").Preload("Buyer").Preload("Seller").
		First(&transaction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("transaction")
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if transaction.BuyerID != actorID && transaction.SellerID != actorID {
		return nil, apperrors.Forbidden("not a party to this transaction")
	}

	return &transaction, nil
}

func (s *SettlementService) GetTransactionByAuction(auctionID uuid.UUID, actorID uuid.UUID) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Where("auction_id = ?", auctionID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("transaction")
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	if transaction.BuyerID != actorID && transaction.SellerID != actorID {
		return nil, apperrors.Forbidden("not a party to this transaction")
	}

	return &transaction, nil
}

// SetShippingAddress is the buyer's first step.
func (s *SettlementService) SetShippingAddress(transactionID, actorID uuid.UUID, address string) (*models.Transaction, error) {
	if address == "" {
		return nil, apperrors.Validation("shipping address is required")
	}

	return s.advance(transactionID, func(t *models.Transaction) error {
		if actorID != t.BuyerID {
			return apperrors.Forbidden("only the buyer can set the shipping address")
		}
		if t.State() != models.SettlementStateNeedsAddress {
			return apperrors.InvalidState("shipping address is already set")
		}
		t.ShippingAddress = address
		return nil
	})
}

// ConfirmPayment records the buyer's payment proof. The uploaded artifact is
// promoted into the per-transaction namespace.
func (s *SettlementService) ConfirmPayment(transactionID, actorID uuid.UUID, imageRef string) (*models.Transaction, error) {
	if imageRef == "" {
		return nil, apperrors.Validation("payment proof image is required")
	}

	return s.advance(transactionID, func(t *models.Transaction) error {
		if actorID != t.BuyerID {
			return apperrors.Forbidden("only the buyer can confirm payment")
		}
		if t.State() != models.SettlementStateNeedsPayment {
			return apperrors.InvalidState("payment confirmation is not the pending step")
		}

		key, err := s.storage.PromoteEvidence(imageRef, t.ID, "payment.jpg")
		if err != nil {
			return fmt.Errorf("failed to store payment proof: %w", err)
		}
		t.PaymentProofKey = key
		t.PaymentConfirmed = true
		return nil
	})
}

// ConfirmShipping records the seller's shipping proof. Payment must already
// be confirmed.
func (s *SettlementService) ConfirmShipping(transactionID, actorID uuid.UUID, imageRef string) (*models.Transaction, error) {
	if imageRef == "" {
		return nil, apperrors.Validation("shipping proof image is required")
	}

	return s.advance(transactionID, func(t *models.Transaction) error {
		if actorID != t.SellerID {
			return apperrors.Forbidden("only the seller can confirm shipping")
		}
		if !t.PaymentConfirmed {
			return apperrors.InvalidState("payment must be confirmed before shipping")
		}
		if t.ShippingConfirmed {
			return apperrors.InvalidState("shipping is already confirmed")
		}

		key, err := s.storage.PromoteEvidence(imageRef, t.ID, "shipping.jpg")
		if err != nil {
			return fmt.Errorf("failed to store shipping proof: %w", err)
		}
		t.ShippingProofKey = key
		t.ShippingConfirmed = true
		return nil
	})
}

// ConfirmReceipt is the buyer's final step; the transaction completes.
func (s *SettlementService) ConfirmReceipt(transactionID, actorID uuid.UUID) (*models.Transaction, error) {
	return s.advance(transactionID, func(t *models.Transaction) error {
		if actorID != t.BuyerID {
			return apperrors.Forbidden("only the buyer can confirm receipt")
		}
		if !t.ShippingConfirmed {
			return apperrors.InvalidState("shipping must be confirmed before receipt")
		}
		if t.BuyerConfirmed {
			return apperrors.InvalidState("receipt is already confirmed")
		}
		t.BuyerConfirmed = true
		t.Status = models.SettlementStatusSuccess
		return nil
	})
}

// Cancel aborts an unfinished settlement. Either party may cancel while the
// handshake is still in progress.
func (s *SettlementService) Cancel(transactionID, actorID uuid.UUID) (*models.Transaction, error) {
	return s.advance(transactionID, func(t *models.Transaction) error {
		if actorID != t.BuyerID && actorID != t.SellerID {
			return apperrors.Forbidden("not a party to this transaction")
		}
		t.Status = models.SettlementStatusCancelled
		return nil
	})
}

// advance loads the transaction, applies one step mutation under the shared
// guards, and persists the flipped flags atomically.
func (s *SettlementService) advance(transactionID uuid.UUID, step func(*models.Transaction) error) (*models.Transaction, error) {
	var transaction models.Transaction
	var events []Event

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&transaction, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("transaction")
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		if transaction.Terminal() {
			return apperrors.InvalidState("settlement is already closed")
		}

		if err := step(&transaction); err != nil {
			return err
		}

		if err := tx.Save(&transaction).Error; err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}

		counterpart := transaction.SellerID
		if transaction.State() == models.SettlementStateNeedsReceipt {
			counterpart = transaction.BuyerID
		}
		events = append(events, Event{
			Type:          EventSettlementAdvanced,
			RecipientID:   counterpart,
			AuctionID:     transaction.AuctionID,
			TransactionID: transaction.ID,
			Payload:       map[string]interface{}{"state": string(transaction.State())},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Emit(events...)
	return &transaction, nil
}

// SubmitRating records one party's feedback on a closed transaction and
// updates the counterpart's point totals consumed by the eligibility gate.
func (s *SettlementService) SubmitRating(transactionID, raterID uuid.UUID, req *SubmitRatingRequest) (*models.Rating, error) {
	var rating *models.Rating
	var events []Event

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var transaction models.Transaction
		if err := tx.First(&transaction, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("transaction")
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		if raterID != transaction.BuyerID && raterID != transaction.SellerID {
			return apperrors.Forbidden("not a party to this transaction")
		}
		if !transaction.Terminal() {
			return apperrors.InvalidState("settlement is still in progress")
		}

		var existing models.Rating
		err := tx.Where("transaction_id = ? AND rater_id = ?", transactionID, raterID).First(&existing).Error
		if err == nil {
			return apperrors.InvalidState("rating already submitted")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing rating: %w", err)
		}

		rateeID := transaction.SellerID
		if raterID == transaction.SellerID {
			rateeID = transaction.BuyerID
		}

		rating = &models.Rating{
			TransactionID: transactionID,
			RaterID:       raterID,
			RateeID:       rateeID,
			IsPositive:    req.IsPositive,
			Comment:       req.Comment,
		}
		if err := tx.Create(rating).Error; err != nil {
			return fmt.Errorf("failed to create rating: %w", err)
		}

		updates := map[string]interface{}{
			"points": gorm.Expr("points + 1"),
		}
		if req.IsPositive {
			updates["positive_points"] = gorm.Expr("positive_points + 1")
		}
		if err := tx.Model(&models.User{}).Where("id = ?", rateeID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update rating totals: %w", err)
		}

		events = append(events, Event{
			Type:          EventRatingReceived,
			RecipientID:   rateeID,
			TransactionID: transactionID,
			Payload:       map[string]interface{}{"is_positive": req.IsPositive},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.Emit(events...)
	return rating, nil
}

// GetUserRatings lists the feedback a user has received, newest first.
func (s *SettlementService) GetUserRatings(userID uuid.UUID) ([]models.Rating, error) {
	var ratings []models.Rating
	err := s.db.Preload("Rater").
		Where("ratee_id = ?", userID).
		Order("created_at DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ratings: %w", err)
	}
	return ratings, nil
}
