// internal/services/settlement_service_test.go
package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/apperrors"
	"github.com/openbid/auction-backend/internal/models"
)

type SettlementServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *SettlementService
	storage *StorageService
	seller  *models.User
	buyer   *models.User
}

func (suite *SettlementServiceTestSuite) SetupTest() {
	suite.db = newTestDB(suite.T())
	cfg := newTestConfig()
	suite.storage = &StorageService{config: cfg, localDir: suite.T().TempDir()}
	notifications := NewNotificationService(&recordingPublisher{})
	suite.service = NewSettlementService(suite.db, cfg, suite.storage, notifications)

	suite.seller = createTestUser(suite.T(), suite.db, "seller")
	suite.buyer = createTestUser(suite.T(), suite.db, "buyer")
}

func (suite *SettlementServiceTestSuite) newTransaction() *models.Transaction {
	auction := createTestAuction(suite.T(), suite.db, suite.seller.ID, auctionOptions{})
	suite.Require().NoError(suite.db.Model(auction).Update("status", models.AuctionStatusEnded).Error)

	transaction := &models.Transaction{
		AuctionID:  auction.ID,
		BuyerID:    suite.buyer.ID,
		SellerID:   suite.seller.ID,
		FinalPrice: dec("120"),
		Status:     models.SettlementStatusProcessing,
	}
	suite.Require().NoError(suite.db.Create(transaction).Error)
	return transaction
}

// stageEvidence drops a file under the temp prefix so a settlement step can
// promote it.
func (suite *SettlementServiceTestSuite) stageEvidence(name string) string {
	key := "temp/" + name
	path := filepath.Join(suite.storage.localDir, filepath.FromSlash(key))
	suite.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	suite.Require().NoError(os.WriteFile(path, []byte("evidence"), 0o644))
	return key
}

func (suite *SettlementServiceTestSuite) TestHappyPathAdvancesInOrder() {
	transaction := suite.newTransaction()
	suite.Equal(models.SettlementStateNeedsAddress, transaction.State())

	updated, err := suite.service.SetShippingAddress(transaction.ID, suite.buyer.ID, "1-2-3 Shibuya, Tokyo")
	suite.Require().NoError(err)
	suite.Equal(models.SettlementStateNeedsPayment, updated.State())

	updated, err = suite.service.ConfirmPayment(transaction.ID, suite.buyer.ID, suite.stageEvidence("pay.jpg"))
	suite.Require().NoError(err)
	suite.Equal(models.SettlementStateNeedsShipping, updated.State())
	suite.Equal("transactions/"+transaction.ID.String()+"/payment.jpg", updated.PaymentProofKey)

	updated, err = suite.service.ConfirmShipping(transaction.ID, suite.seller.ID, suite.stageEvidence("ship.jpg"))
	suite.Require().NoError(err)
	suite.Equal(models.SettlementStateNeedsReceipt, updated.State())

	updated, err = suite.service.ConfirmReceipt(transaction.ID, suite.buyer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.SettlementStateComplete, updated.State())
	suite.Equal(models.SettlementStatusSuccess, updated.Status)
}

func (suite *SettlementServiceTestSuite) TestStepsCannotSkip() {
	transaction := suite.newTransaction()

	_, err := suite.service.ConfirmPayment(transaction.ID, suite.buyer.ID, suite.stageEvidence("pay.jpg"))
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState), "payment before address")

	_, err = suite.service.ConfirmShipping(transaction.ID, suite.seller.ID, suite.stageEvidence("ship.jpg"))
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState), "shipping before payment")

	_, err = suite.service.ConfirmReceipt(transaction.ID, suite.buyer.ID)
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState), "receipt before shipping")
}

func (suite *SettlementServiceTestSuite) TestStepsAreRoleGated() {
	transaction := suite.newTransaction()

	_, err := suite.service.SetShippingAddress(transaction.ID, suite.seller.ID, "somewhere")
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))

	_, err = suite.service.SetShippingAddress(transaction.ID, suite.buyer.ID, "1-2-3 Shibuya, Tokyo")
	suite.Require().NoError(err)

	_, err = suite.service.ConfirmPayment(transaction.ID, suite.seller.ID, suite.stageEvidence("pay.jpg"))
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))

	_, err = suite.service.ConfirmPayment(transaction.ID, suite.buyer.ID, suite.stageEvidence("pay2.jpg"))
	suite.Require().NoError(err)

	_, err = suite.service.ConfirmShipping(transaction.ID, suite.buyer.ID, suite.stageEvidence("ship.jpg"))
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
}

func (suite *SettlementServiceTestSuite) TestStepsNeverRepeat() {
	transaction := suite.newTransaction()

	_, err := suite.service.SetShippingAddress(transaction.ID, suite.buyer.ID, "1-2-3 Shibuya, Tokyo")
	suite.Require().NoError(err)

	_, err = suite.service.SetShippingAddress(transaction.ID, suite.buyer.ID, "another address")
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState))
}

func (suite *SettlementServiceTestSuite) TestOutsiderCannotView() {
	transaction := suite.newTransaction()
	outsider := createTestUser(suite.T(), suite.db, "outsider")

	_, err := suite.service.GetTransaction(transaction.ID, outsider.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))

	_, err = suite.service.GetTransactionByAuction(transaction.AuctionID, outsider.ID)
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
}

func (suite *SettlementServiceTestSuite) TestCancelClosesSettlement() {
	transaction := suite.newTransaction()

	cancelled, err := suite.service.Cancel(transaction.ID, suite.seller.ID)
	suite.Require().NoError(err)
	suite.Equal(models.SettlementStatusCancelled, cancelled.Status)
	suite.Equal(models.SettlementStateCancelled, cancelled.State())

	_, err = suite.service.SetShippingAddress(transaction.ID, suite.buyer.ID, "too late")
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState))

	_, err = suite.service.Cancel(transaction.ID, suite.buyer.ID)
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState))
}

func (suite *SettlementServiceTestSuite) TestRatingRequiresClosedSettlement() {
	transaction := suite.newTransaction()

	_, err := suite.service.SubmitRating(transaction.ID, suite.buyer.ID, &SubmitRatingRequest{IsPositive: true})
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState))
}

func (suite *SettlementServiceTestSuite) TestRatingUpdatesCounterpartTotals() {
	transaction := suite.newTransaction()
	_, err := suite.service.Cancel(transaction.ID, suite.buyer.ID)
	suite.Require().NoError(err)

	rating, err := suite.service.SubmitRating(transaction.ID, suite.buyer.ID, &SubmitRatingRequest{
		IsPositive: true,
		Comment:    "smooth deal",
	})
	suite.Require().NoError(err)
	suite.Equal(suite.seller.ID, rating.RateeID)

	var seller models.User
	suite.Require().NoError(suite.db.First(&seller, suite.seller.ID).Error)
	suite.Equal(1, seller.Points)
	suite.Equal(1, seller.PositivePoints)

	// Negative feedback from the other side bumps only the total.
	_, err = suite.service.SubmitRating(transaction.ID, suite.seller.ID, &SubmitRatingRequest{IsPositive: false})
	suite.Require().NoError(err)

	var buyer models.User
	suite.Require().NoError(suite.db.First(&buyer, suite.buyer.ID).Error)
	suite.Equal(1, buyer.Points)
	suite.Equal(0, buyer.PositivePoints)
}

func (suite *SettlementServiceTestSuite) TestDuplicateRatingRejected() {
	transaction := suite.newTransaction()
	_, err := suite.service.Cancel(transaction.ID, suite.buyer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.SubmitRating(transaction.ID, suite.buyer.ID, &SubmitRatingRequest{IsPositive: true})
	suite.Require().NoError(err)

	_, err = suite.service.SubmitRating(transaction.ID, suite.buyer.ID, &SubmitRatingRequest{IsPositive: false})
	suite.True(apperrors.Is(err, apperrors.CodeInvalidState))
}

func (suite *SettlementServiceTestSuite) TestOutsiderCannotRate() {
	transaction := suite.newTransaction()
	_, err := suite.service.Cancel(transaction.ID, suite.buyer.ID)
	suite.Require().NoError(err)

	outsider := createTestUser(suite.T(), suite.db, "outsider")
	_, err = suite.service.SubmitRating(transaction.ID, outsider.ID, &SubmitRatingRequest{IsPositive: true})
	suite.True(apperrors.Is(err, apperrors.CodeForbidden))
}

func TestSettlementServiceSuite(t *testing.T) {
	suite.Run(t, new(SettlementServiceTestSuite))
}
