// internal/services/scheduler_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/models"
)

type SchedulerServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *SchedulerService
	bids    *BidService
	seller  *models.User
	alice   *models.User
}

func (suite *SchedulerServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	cfg := newTestConfig()
	notifications := NewNotificationService(&recordingPublisher{})
	suite.service = NewSchedulerService(suite.db, cfg, notifications)
	suite.bids = NewBidService(suite.db, cfg, NewEligibilityService(suite.db, cfg), notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.alice = createTestUser(suite.T(), suite.db, "alice")
}

func (suite *SchedulerServiceTestSuite) expire(auctionID uuid.UUID) {
	suite.Require().NoError(suite.db.Model(&models.Auction{}).
		Where("id = ?", auctionID).
		Update("end_time", time.Now().Add(-time.Minute)).Error)
}

func (suite *SchedulerServiceTestSuite) TestExpiredAuctionWithLeaderEnds() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})
	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	suite.expire(auction.ID)

	suite.Require().NoError(suite.service.SweepExpiredAuctions(context.Background()))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(models.AuctionStatusEnded, updated.Status)

	var transaction models.Transaction
	suite.Require().NoError(suite.db.Where("auction_id = ?", auction.ID).First(&transaction).Error)
	suite.Equal(suite.alice.ID, transaction.BuyerID)
	suite.Equal(suite.seller.ID, transaction.SellerID)
	assertDecimal(suite.T(), "50", transaction.FinalPrice)
	suite.Equal(models.SettlementStatusProcessing, transaction.Status)
}

func (suite *SchedulerServiceTestSuite) TestExpiredAuctionWithoutBidsFails() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	suite.expire(auction.ID)

	suite.Require().NoError(suite.service.SweepExpiredAuctions(context.Background()))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(models.AuctionStatusFailed, updated.Status)

	var count int64
	suite.db.Model(&models.Transaction{}).Where("auction_id = ?", auction.ID).Count(&count)
	suite.Zero(count)
}

func (suite *SchedulerServiceTestSuite) TestSweepIsIdempotent() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})
	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	suite.expire(auction.ID)

	suite.Require().NoError(suite.service.SweepExpiredAuctions(context.Background()))
	suite.Require().NoError(suite.service.SweepExpiredAuctions(context.Background()))

	var count int64
	suite.db.Model(&models.Transaction{}).Where("auction_id = ?", auction.ID).Count(&count)
	suite.EqualValues(1, count)
}

func (suite *SchedulerServiceTestSuite) TestSweepLeavesRunningAuctionsAlone() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{endsIn: time.Hour})

	suite.Require().NoError(suite.service.SweepExpiredAuctions(context.Background()))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(models.AuctionStatusActive, updated.Status)
}

func (suite *SchedulerServiceTestSuite) TestNoBidsLandAfterFinalize() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})
	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	suite.expire(auction.ID)

	suite.Require().NoError(suite.service.FinalizeAuction(auction.ID))

	bob := createTestUser(suite.T(), suite.db, "bob")
	_, err = suite.bids.PlaceBid(auction.ID, bob.ID, dec("500"))
	suite.Error(err)

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(suite.alice.ID, *updated.LeaderID)
}

func TestSchedulerServiceSuite(t *testing.T) {
	suite.Run(t, new(SchedulerServiceTestSuite))
}
