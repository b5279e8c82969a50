package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/service"
)

type CheckoutHandler struct {
	checkoutService    *service.CheckoutService
	transactionService *service.TransactionService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService, transactionService *service.TransactionService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService, transactionService: transactionService}
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidCart, err))
		return
	}

	txn, err := h.checkoutService.Checkout(c.Request.Context(), middleware.GetUserID(c), req.Cart)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckoutResponse{Message: "order placed", OrderID: txn.ID})
}

func (h *CheckoutHandler) ListOrders(c *gin.Context) {
	entries, err := h.transactionService.ListMine(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionResponses(entries))
}

func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.transactionService.GetForBuyer(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToTransactionResponse(*entry))
}

func transactionResponses(entries []model.TransactionEntry) []dto.TransactionResponse {
	out := make([]dto.TransactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, service.ToTransactionResponse(e))
	}
	return out
}
