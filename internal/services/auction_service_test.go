// internal/services/auction_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/models"
	"github.com/openbid/auction-backend/internal/utils"
)

type AuctionServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *AuctionService
	bids    *BidService
	seller  *models.User
	alice   *models.User
	bob     *models.User
}

func (suite *AuctionServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	cfg := newTestConfig()
	notifications := NewNotificationService(&recordingPublisher{})
	suite.service = NewAuctionService(suite.db, cfg, notifications)
	suite.bids = NewBidService(suite.db, cfg, NewEligibilityService(suite.db, cfg), notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.alice = createTestUser(suite.T(), suite.db, "alice")
	suite.bob = createTestUser(suite.T(), suite.db, "bob")
}

func (suite *AuctionServiceTestSuite) TestCreateAuction() {
	auction, err := suite.service.CreateAuction(suite.seller.ID, &CreateAuctionRequest{
		Title:           "Film camera lot",
		Description:     "Three bodies, sold as-is, shutters untested.",
		Category:        "cameras",
		StartPrice:      dec("30"),
		BidStep:         dec("5"),
		BuyNowPrice:     dec("90"),
		DurationMinutes: 60,
	})
	suite.Require().NoError(err)

	suite.Equal(models.AuctionStatusActive, auction.Status)
	suite.True(auction.BuyNowPrice.Valid)
	suite.Nil(auction.LeaderID)
	suite.False(auction.CurrentPrice.Valid)
}

func (suite *AuctionServiceTestSuite) TestCreateAuctionRejectsLowBuyNow() {
	_, err := suite.service.CreateAuction(suite.seller.ID, &CreateAuctionRequest{
		Title:           "Film camera lot",
		Description:     "Three bodies, sold as-is, shutters untested.",
		Category:        "cameras",
		StartPrice:      dec("100"),
		BidStep:         dec("5"),
		BuyNowPrice:     dec("80"),
		DurationMinutes: 60,
	})
	suite.True(apperrors.Is(err, apperrors.CodeValidation))
}

func (suite *AuctionServiceTestSuite) TestAppendDescriptionKeepsHistory() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	original := auction.Description

	updated, err := suite.service.AppendDescription(auction.ID, suite.seller.ID, "Box and papers included.")
	suite.Require().NoError(err)

	suite.Contains(updated.Description, original)
	suite.Contains(updated.Description, "Box and papers included.")
}

func (suite *AuctionServiceTestSuite) TestAppendDescriptionSellerOnly() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})

	_, err := suite.service.AppendDescription(auction.ID, suite.alice.ID, "not my listing")
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
}

func (suite *AuctionServiceTestSuite) TestRejectBidderAddsBan() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})

	suite.Require().NoError(suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.alice.ID))

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))

	err = suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.alice.ID)
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState), "second rejection is reported, not re-applied")
}

func (suite *AuctionServiceTestSuite) TestRejectBidderSellerOnly() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})

	err := suite.service.RejectBidder(auction.ID, suite.bob.ID, suite.alice.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
}

func (suite *AuctionServiceTestSuite) TestRejectLeaderPromotesRunnerUp() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50", bidStep: "10"})

	// alice leads on a 100 ceiling, bob pushed the price to 70.
	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	_, err = suite.bids.PlaceBid(auction.ID, suite.bob.ID, dec("70"))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.alice.ID))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(suite.bob.ID, *updated.LeaderID)
	// Sole remaining ceiling: the price falls back to the opening price.
	assertDecimal(suite.T(), "50", updated.CurrentPrice.Decimal)
	assertDecimal(suite.T(), "70", updated.LeaderMax.Decimal)
	suite.Equal(models.AuctionStatusActive, updated.Status)
}

func (suite *AuctionServiceTestSuite) TestRejectLeaderReplaysRemainingCeilings() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50", bidStep: "10"})
	carol := createTestUser(suite.T(), suite.db, "carol")

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("200"))
	suite.Require().NoError(err)
	_, err = suite.bids.PlaceBid(auction.ID, suite.bob.ID, dec("120"))
	suite.Require().NoError(err)
	_, err = suite.bids.PlaceBid(auction.ID, carol.ID, dec("150"))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.alice.ID))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(carol.ID, *updated.LeaderID)
	// min(150, 120+10)
	assertDecimal(suite.T(), "130", updated.CurrentPrice.Decimal)
	assertDecimal(suite.T(), "150", updated.LeaderMax.Decimal)
}

func (suite *AuctionServiceTestSuite) TestRejectSoleBidderResetsAuction() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.alice.ID))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Nil(updated.LeaderID)
	suite.False(updated.CurrentPrice.Valid)
	suite.False(updated.LeaderMax.Valid)
	suite.Equal(models.AuctionStatusActive, updated.Status)

	// The ledger keeps the banned bidder's rows.
	var count int64
	suite.db.Model(&models.Bid{}).Where("auction_id = ?", auction.ID).Count(&count)
	suite.EqualValues(1, count)
}

func (suite *AuctionServiceTestSuite) TestRejectNonLeaderLeavesPriceAlone() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	_, err = suite.bids.PlaceBid(auction.ID, suite.bob.ID, dec("70"))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.RejectBidder(auction.ID, suite.seller.ID, suite.bob.ID))

	updated := reloadAuction(suite.T(), suite.db, auction.ID)
	suite.Equal(suite.alice.ID, *updated.LeaderID)
	assertDecimal(suite.T(), "70", updated.CurrentPrice.Decimal)
}

func (suite *AuctionServiceTestSuite) TestSearchFiltersByStatusAndSeller() {
	active := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	ended := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	suite.Require().NoError(suite.db.Model(ended).Update("status", models.AuctionStatusEnded).Error)
	createTestAuction(suite.T(), suite.db, suite.alice.ID, auctionOptions{})

	status := models.AuctionStatusActive
	results, total, err := suite.service.SearchAuctions(AuctionSearchParams{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"},
		Status:           &status,
		SellerID:         &suite.seller.ID,
	})
	suite.Require().NoError(err)
	suite.EqualValues(1, total)
	suite.Require().Len(results, 1)
	suite.Equal(active.ID, results[0].ID)
}

func (suite *AuctionServiceTestSuite) TestBidLedgerMasksBidderNames() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)

	entries, err := suite.service.GetBidLedger(auction.ID)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Equal("a***e", entries[0].Bidder)
	assertDecimal(suite.T(), "50", entries[0].BidAmount)
}

func (suite *AuctionServiceTestSuite) TestUserBidAuctionsAreDistinct() {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{startPrice: "50"})

	_, err := suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("100"))
	suite.Require().NoError(err)
	_, err = suite.bids.PlaceBid(auction.ID, suite.alice.ID, dec("150"))
	suite.Require().NoError(err)

	auctions, err := suite.service.GetUserBidAuctions(suite.alice.ID)
	suite.Require().NoError(err)
	suite.Len(auctions, 1)
}

func TestAuctionServiceSuite(t *testing.T) {
	suite.Run(t, new(AuctionServiceTestSuite))
}
