package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/service"
)

type ProfileHandler struct {
	profileService  *service.ProfileService
	wishlistService *service.WishlistService
}

func NewProfileHandler(profileService *service.ProfileService, wishlistService *service.WishlistService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, wishlistService: wishlistService}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.profileService.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToUserResponse(user))
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.profileService.Update(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToUserResponse(user))
}

func (h *ProfileHandler) VerifyPassword(c *gin.Context) {
	var req dto.VerifyPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.profileService.VerifyPassword(c.Request.Context(), middleware.GetUserID(c), req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password verified"})
}

func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.profileService.ChangePassword(c.Request.Context(), middleware.GetUserID(c), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

func (h *ProfileHandler) Wishlist(c *gin.Context) {
	items, err := h.wishlistService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryResponses(items))
}

func (h *ProfileHandler) AddToWishlist(c *gin.Context) {
	var req dto.WishlistRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.wishlistService.Add(c.Request.Context(), middleware.GetUserID(c), req.ListingID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "added to wishlist"})
}

func (h *ProfileHandler) RemoveFromWishlist(c *gin.Context) {
	listingID, ok := parseID(c, "listingId")
	if !ok {
		return
	}
	if err := h.wishlistService.Remove(c.Request.Context(), middleware.GetUserID(c), listingID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
