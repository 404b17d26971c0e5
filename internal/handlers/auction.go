// internal/handlers/auction.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbid/auction-backend/internal/models"
	"github.com/openbid/auction-backend/internal/services"
	"github.com/openbid/auction-backend/internal/utils"
)

type AuctionHandler struct {
	auctionService *services.AuctionService
	bidService     *services.BidService
}

func NewAuctionHandler(auctionService *services.AuctionService, bidService *services.BidService) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		bidService:     bidService,
	}
}

// GET /auctions
func (h *AuctionHandler) GetAuctions(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	searchParams := services.AuctionSearchParams{
		PaginationParams: params,
	}

	if status := c.Query("status"); status != "" {
		auctionStatus := models.AuctionStatus(status)
		searchParams.Status = &auctionStatus
	}

	if sellerIDStr := c.Query("seller_id"); sellerIDStr != "" {
		if sellerID, err := uuid.Parse(sellerIDStr); err == nil {
			searchParams.SellerID = &sellerID
		}
	}

	auctions, total, err := h.auctionService.SearchAuctions(searchParams)
	if err != nil {
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(auctions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /auctions/:id
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction id", nil)
		return
	}

	auction, err := h.auctionService.GetAuction(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, auction)
}

// GET /auctions/:id/bids
func (h *AuctionHandler) GetBidLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction id", nil)
		return
	}

	bids, err := h.auctionService.GetBidLedger(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, bids)
}

// GET /auctions/my-bids
func (h *AuctionHandler) GetMyBidAuctions(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	auctions, err := h.auctionService.GetUserBidAuctions(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, auctions)
}

// POST /auctions
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	auction, err := h.auctionService.CreateAuction(userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, auction)
}

type placeBidRequest struct {
	MaxBid decimal.Decimal `json:"max_bid" binding:"required"`
}

// POST /auctions/:id/bids
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction id", nil)
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	result, err := h.bidService.PlaceBid(auctionID, userID, req.MaxBid)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

type appendDescriptionRequest struct {
	Addition string `json:"addition" binding:"required"`
}

// POST /auctions/:id/description
func (h *AuctionHandler) AppendDescription(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction id", nil)
		return
	}

	var req appendDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	auction, err := h.auctionService.AppendDescription(auctionID, userID, req.Addition)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, auction)
}

// DELETE /auctions/:id/bidders/:bidderId
func (h *AuctionHandler) RejectBidder(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid auction id", nil)
		return
	}

	bidderID, err := uuid.Parse(c.Param("bidderId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid bidder id", nil)
		return
	}

	if err := h.auctionService.RejectBidder(auctionID, userID, bidderID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"rejected": bidderID})
}
