// internal/services/helpers_test.go
package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/models"
)

// recordingPublisher captures emitted events for inspection.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named shared-cache in-memory database so every pooled connection sees
	// the same schema.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Auction{},
		&models.Bid{},
		&models.Ban{},
		&models.Transaction{},
		&models.Rating{},
	)
	require.NoError(t, err)

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auction: config.AuctionConfig{
			ExtendThresholdMinutes: 5,
			ExtendAddMinutes:       10,
			RatingThreshold:        0.80,
			SweepIntervalSeconds:   60,
		},
	}
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
	}
	require.NoError(t, user.SetPassword("TestPass123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestUserWithRating(t *testing.T, db *gorm.DB, username string, points, positive int) *models.User {
	t.Helper()

	user := createTestUser(t, db, username)
	user.Points = points
	user.PositivePoints = positive
	require.NoError(t, db.Save(user).Error)
	return user
}

type auctionOptions struct {
	startPrice   string
	bidStep      string
	buyNowPrice  string
	endsIn       time.Duration
	isAutoExtend bool
	isAccepted   bool
}

func createTestAuction(t *testing.T, db *gorm.DB, sellerID uuid.UUID, opts auctionOptions) *models.Auction {
	t.Helper()

	if opts.startPrice == "" {
		opts.startPrice = "50"
	}
	if opts.bidStep == "" {
		opts.bidStep = "10"
	}
	if opts.endsIn == 0 {
		opts.endsIn = time.Hour
	}

	auction := &models.Auction{
		SellerID:     sellerID,
		Title:        "Vintage mechanical watch",
		Description:  "Runs well, some scratches on the case back.",
		Category:     "watches",
		StartPrice:   dec(opts.startPrice),
		BidStep:      dec(opts.bidStep),
		Status:       models.AuctionStatusActive,
		EndTime:      time.Now().Add(opts.endsIn),
		IsAutoExtend: opts.isAutoExtend,
		IsAccepted:   opts.isAccepted,
	}
	if opts.buyNowPrice != "" {
		auction.BuyNowPrice = decimal.NewNullDecimal(dec(opts.buyNowPrice))
	}
	require.NoError(t, db.Create(auction).Error)
	return auction
}

func reloadAuction(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Auction {
	t.Helper()

	var auction models.Auction
	require.NoError(t, db.First(&auction, id).Error)
	return &auction
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, actual.Equal(dec(expected)), "expected %s, got %s", expected, actual)
}
