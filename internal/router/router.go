// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/openbid/auction-backend/internal/config"
	"github.com/openbid/auction-backend/internal/handlers"
	"github.com/openbid/auction-backend/internal/middleware"
	"github.com/openbid/auction-backend/internal/services"
	"github.com/openbid/auction-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, notificationService *services.NotificationService) *gin.Engine {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage service")
	}

	authService := services.NewAuthService(db, cfg)
	eligibilityService := services.NewEligibilityService(db, cfg)
	bidService := services.NewBidService(db, cfg, eligibilityService, notificationService)
	auctionService := services.NewAuctionService(db, cfg, notificationService)
	settlementService := services.NewSettlementService(db, cfg, storageService, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	auctionHandler := handlers.NewAuctionHandler(auctionService, bidService)
	settlementHandler := handlers.NewSettlementHandler(settlementService, storageService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Auction routes
		auctions := v1.Group("/auctions")
		{
			auctions.GET("", middleware.OptionalAuth(), auctionHandler.GetAuctions)
			auctions.GET("/:id", middleware.OptionalAuth(), auctionHandler.GetAuction)
			auctions.GET("/:id/bids", auctionHandler.GetBidLedger)

			// Authenticated routes
			protected := auctions.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.GET("/my-bids", auctionHandler.GetMyBidAuctions)
				protected.POST("", auctionHandler.CreateAuction)
				protected.POST("/:id/bids", middleware.BidRateLimit(), auctionHandler.PlaceBid)
				protected.POST("/:id/description", auctionHandler.AppendDescription)
				protected.DELETE("/:id/bidders/:bidderId", auctionHandler.RejectBidder)
				protected.GET("/:id/transaction", settlementHandler.GetTransactionByAuction)
			}
		}

		// Settlement routes
		transactions := v1.Group("/transactions")
		transactions.Use(middleware.AuthRequired())
		{
			transactions.GET("/:id", settlementHandler.GetTransaction)
			transactions.PUT("/:id/address", settlementHandler.SetShippingAddress)
			transactions.PUT("/:id/payment", settlementHandler.ConfirmPayment)
			transactions.PUT("/:id/shipping", settlementHandler.ConfirmShipping)
			transactions.PUT("/:id/receipt", settlementHandler.ConfirmReceipt)
			transactions.PUT("/:id/cancel", settlementHandler.Cancel)
			transactions.POST("/:id/ratings", settlementHandler.SubmitRating)
		}

		// User feedback (public)
		users := v1.Group("/users")
		{
			users.GET("/:id/ratings", settlementHandler.GetUserRatings)
		}

		// Evidence uploads
		uploads := v1.Group("/uploads")
		uploads.Use(middleware.AuthRequired(), middleware.UploadRateLimit())
		{
			uploads.POST("", settlementHandler.UploadEvidence)
		}
	}

	return r
}
