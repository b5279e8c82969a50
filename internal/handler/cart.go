package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/service"
)

type CartHandler struct {
	svc *service.CartService
}

func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	items, err := h.svc.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToCartResponse(items))
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Add(c.Request.Context(), middleware.GetUserID(c), req.ListingID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "item added"})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req dto.UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.Update(c.Request.Context(), middleware.GetUserID(c), req.ListingID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item updated"})
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	listingID, ok := parseID(c, "listingId")
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), middleware.GetUserID(c), listingID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
