package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/service"
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) Add(c *gin.Context) {
	listingID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	review, err := h.reviewService.Add(c.Request.Context(), listingID, middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToReviewResponse(service.VisibleReview{Review: *review, ToDisplay: !review.Hidden()}))
}

func (h *ReviewHandler) Toggle(c *gin.Context) {
	reviewID, ok := parseID(c, "reviewId")
	if !ok {
		return
	}
	res, err := h.reviewService.Toggle(c.Request.Context(), currentActor(c), reviewID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToToggleResponse(res))
}

func (h *ReviewHandler) SetVisibility(c *gin.Context) {
	reviewID, ok := parseID(c, "reviewId")
	if !ok {
		return
	}
	var req dto.SetReviewVisibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.reviewService.SetVisibility(c.Request.Context(), currentActor(c), reviewID, *req.Hidden)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToToggleResponse(res))
}

// Mine lists reviews the caller wrote.
func (h *ReviewHandler) Mine(c *gin.Context) {
	entries, err := h.reviewService.ListByReviewer(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviewEntryResponses(entries))
}

func reviewEntryResponses(entries []model.ReviewEntry) []dto.ReviewEntryResponse {
	out := make([]dto.ReviewEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, service.ToReviewEntryResponse(e))
	}
	return out
}
