// internal/services/scheduler_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/database"
	"github.com/openbid/auction-backend/internal/models"
)

// SchedulerService finalizes expired auctions on a fixed cadence: winners get
// a settlement transaction, no-bid auctions fail.
type SchedulerService struct {
	db            *gorm.DB
	config        *config.Config
	notifications *NotificationService
}

func NewSchedulerService(db *gorm.DB, config *config.Config, notifications *NotificationService) *SchedulerService {
	return &SchedulerService{
		db:            db,
		config:        config,
		notifications: notifications,
	}
}

// Start runs the sweep on a ticker until ctx is cancelled.
func (s *SchedulerService) Start(ctx context.Context) {
	interval := time.Duration(s.config.Auction.SweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	logrus.WithField("interval", interval.String()).Info("Auction lifecycle scheduler started")

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logrus.Info("Auction lifecycle scheduler stopped")
				return
			case <-ticker.C:
				if err := s.SweepExpiredAuctions(ctx); err != nil {
					logrus.WithError(err).Error("Auction sweep failed")
				}
			}
		}
	}()
}

// SweepExpiredAuctions finalizes every active auction whose end time has
// passed. Each auction is finalized in its own transaction so one bad row
// does not block the rest of the sweep.
func (s *SchedulerService) SweepExpiredAuctions(ctx context.Context) error {
	var expired []models.Auction
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", models.AuctionStatusActive, time.Now()).
		Find(&expired).Error
	if err != nil {
		return fmt.Errorf("failed to scan expired auctions: %w", err)
	}

	for _, auction := range expired {
		if err := s.FinalizeAuction(auction.ID); err != nil {
			// A conflict means a concurrent bid or buy-now beat the sweep;
			// the next tick picks the auction up again if still active.
			if apperrors.Is(err, apperrors.CodeConflict) || apperrors.Is(err, apperrors.CodeInvalidState) {
				continue
			}
			logrus.WithField("auction_id", auction.ID).WithError(err).Error("Failed to finalize auction")
		}
	}

	return nil
}

// FinalizeAuction flips one auction from active to its terminal status and,
// when a leader exists, creates the settlement transaction. The flip shares
// the bidding engine's version guard, so an auction is never finalized twice
// and a last-second bid either lands before the flip or is rejected after it.
func (s *SchedulerService) FinalizeAuction(auctionID uuid.UUID) error {
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
			return apperrors.InvalidState("auction already finalized")
		}

		terminal := models.AuctionStatusFailed
		if auction.HasLeader() {
			terminal = models.AuctionStatusEnded
		}

		res := tx.Model(&models.Auction{}).
			Where("id = ? AND version = ? AND status = ?", auction.ID, auction.Version, models.AuctionStatusActive).
			Updates(map[string]interface{}{
				"status":  terminal,
				"version": auction.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to finalize auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("auction was modified concurrently")
		}

		if !auction.HasLeader() {
			events = append(events, Event{
				Type:        EventAuctionFailed,
				RecipientID: auction.SellerID,
				AuctionID:   auction.ID,
			})
			return nil
		}

		transaction := &models.Transaction{
			AuctionID:  auction.ID,
			BuyerID:    *auction.LeaderID,
			SellerID:   auction.SellerID,
			FinalPrice: auction.CurrentPrice.Decimal,
			Status:     models.SettlementStatusProcessing,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return fmt.Errorf("failed to create settlement transaction: %w", err)
		}

		events = append(events,
			Event{Type: EventAuctionWon, RecipientID: *auction.LeaderID, AuctionID: auction.ID, TransactionID: transaction.ID},
			Event{Type: EventAuctionSold, RecipientID: auction.SellerID, AuctionID: auction.ID, TransactionID: transaction.ID},
		)
		return nil
	})
	if err != nil {
		return err
	}

	s.notifications.Emit(events...)
	return nil
}
