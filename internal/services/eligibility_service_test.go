// internal/services/eligibility_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/models"
)

type EligibilityServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *EligibilityService
	seller  *models.User
}

func (suite *EligibilityServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	suite.service = NewEligibilityService(suite.db, newTestConfig())
	suite.seller = createTestUser(suite.T(), suite.db, "seller")
}

func (suite *EligibilityServiceTestSuite) TestBannedBidderDenied() {
	bidder := createTestUser(suite.T(), suite.db, "banned")
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	suite.Require().NoError(suite.db.Create(&models.Ban{AuctionID: auction.ID, BidderID: bidder.ID}).Error)

	err := suite.service.CheckEligible(suite.db, auction, bidder.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
	suite.EqualError(err, "restricted by seller")
}

func (suite *EligibilityServiceTestSuite) TestNoHistoryDeniedOnAcceptedAuction() {
	bidder := createTestUser(suite.T(), suite.db, "newcomer")
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{isAccepted: true})

	err := suite.service.CheckEligible(suite.db, auction, bidder.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
	suite.EqualError(err, "no rating history")
}

func (suite *EligibilityServiceTestSuite) TestLowRatioDeniedOnAcceptedAuction() {
	bidder := createTestUserWithRating(suite.T(), suite.db, "shaky", 4, 3) // 0.75
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{isAccepted: true})

	err := suite.service.CheckEligible(suite.db, auction, bidder.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
	suite.EqualError(err, "insufficient rating")
}

func (suite *EligibilityServiceTestSuite) TestRatioAtThresholdAllowed() {
	bidder := createTestUserWithRating(suite.T(), suite.db, "solid", 5, 4) // 0.80 exactly
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{isAccepted: true})

	suite.NoError(suite.service.CheckEligible(suite.db, auction, bidder.ID))
}

func (suite *EligibilityServiceTestSuite) TestOpenAuctionSkipsRatingGate() {
	bidder := createTestUser(suite.T(), suite.db, "newcomer")
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})

	suite.NoError(suite.service.CheckEligible(suite.db, auction, bidder.ID))
}

func (suite *EligibilityServiceTestSuite) TestBanWinsOverRatingGate() {
	bidder := createTestUserWithRating(suite.T(), suite.db, "banned-solid", 10, 10)
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{isAccepted: true})
	suite.Require().NoError(suite.db.Create(&models.Ban{AuctionID: auction.ID, BidderID: bidder.ID}).Error)

	err := suite.service.CheckEligible(suite.db, auction, bidder.ID)
	suite.EqualError(err, "restricted by seller")
}

func TestEligibilityServiceSuite(t *testing.T) {
	suite.Run(t, new(EligibilityServiceTestSuite))
}
