// internal/handlers/settlement.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openbid/auction-backend/internal/services"
	"github.com/openbid/auction-backend/internal/utils"
)

type SettlementHandler struct {
	settlementService *services.SettlementService
	storageService    *services.StorageService
}

func NewSettlementHandler(settlementService *services.SettlementService, storageService *services.StorageService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
		storageService:    storageService,
	}
}

// GET /transactions/:id
func (h *SettlementHandler) GetTransaction(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	transaction, err := h.settlementService.GetTransaction(id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

// GET /auctions/:id/transaction
func (h *SettlementHandler) GetTransactionByAuction(c *gin.Context) {
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

	transaction, err := h.settlementService.GetTransactionByAuction(auctionID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

type shippingAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

// PUT /transactions/:id/address
func (h *SettlementHandler) SetShippingAddress(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	var req shippingAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	transaction, err := h.settlementService.SetShippingAddress(id, userID, req.Address)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

type evidenceRequest struct {
	ImageRef string `json:"image_ref" binding:"required"`
}

// PUT /transactions/:id/payment
func (h *SettlementHandler) ConfirmPayment(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	var req evidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	transaction, err := h.settlementService.ConfirmPayment(id, userID, req.ImageRef)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

// PUT /transactions/:id/shipping
func (h *SettlementHandler) ConfirmShipping(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	var req evidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	transaction, err := h.settlementService.ConfirmShipping(id, userID, req.ImageRef)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

// PUT /transactions/:id/receipt
func (h *SettlementHandler) ConfirmReceipt(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	transaction, err := h.settlementService.ConfirmReceipt(id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

// PUT /transactions/:id/cancel
func (h *SettlementHandler) Cancel(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	transaction, err := h.settlementService.Cancel(id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": transaction,
		"state":       transaction.State(),
	})
}

// POST /transactions/:id/ratings
func (h *SettlementHandler) SubmitRating(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction id", nil)
		return
	}

	var req services.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", nil)
		return
	}

	rating, err := h.settlementService.SubmitRating(id, userID, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, rating)
}

// GET /users/:id/ratings
func (h *SettlementHandler) GetUserRatings(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user id", nil)
		return
	}

	ratings, err := h.settlementService.GetUserRatings(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, ratings)
}

// POST /uploads
func (h *SettlementHandler) UploadEvidence(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, "Image file is required", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadTemp(file, header, services.UploadOptions{
		MaxSize:      10 << 20, // 10 MB
		AllowedTypes: []string{".jpg", ".jpeg", ".png"},
	})
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, result)
}
