package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/service"
)

type ListingHandler struct {
	listingService *service.ListingService
}

func NewListingHandler(listingService *service.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

func (h *ListingHandler) Search(c *gin.Context) {
	var req dto.SearchListingsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter := model.ListingFilter{Brand: req.Brand, Title: req.Title}
	if req.MaxPrice != "" {
		maxPrice, err := decimal.NewFromString(req.MaxPrice)
		if err != nil {
			badRequest(c, "invalid maxPrice")
			return
		}
		filter.MaxPrice = maxPrice
	}

	page := dto.PageRequest{Page: req.Page, Limit: req.Limit, Sort: "title", Order: "asc"}
	listings, total, err := h.listingService.Search(c.Request.Context(), filter, page.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, listingResponses(listings), total, page)
}

func (h *ListingHandler) AlmostSoldOut(c *gin.Context) {
	summaries, err := h.listingService.AlmostSoldOut(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryResponses(summaries))
}

func (h *ListingHandler) BestSellers(c *gin.Context) {
	summaries, err := h.listingService.BestSellers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaryResponses(summaries))
}

func (h *ListingHandler) Brands(c *gin.Context) {
	brands, err := h.listingService.Brands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if brands == nil {
		brands = []string{}
	}
	c.JSON(http.StatusOK, brands)
}

func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.listingService.GetDetail(c.Request.Context(), id, optionalViewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detailResponse(detail))
}

// Mine lists the caller's own listings, including disabled ones.
func (h *ListingHandler) Mine(c *gin.Context) {
	listings, err := h.listingService.ListBySeller(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingResponses(listings))
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req dto.CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	actor := currentActor(c)
	actor.Admin = false

	listing, err := h.listingService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToListingResponse(listing))
}

func (h *ListingHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.Update(c.Request.Context(), currentActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToListingResponse(listing))
}

func (h *ListingHandler) SetStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetListingStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listingService.SetDisabled(c.Request.Context(), currentActor(c), id, *req.Disabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToListingResponse(listing))
}

func (h *ListingHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.listingService.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func listingResponses(listings []model.Listing) []dto.ListingResponse {
	out := make([]dto.ListingResponse, 0, len(listings))
	for i := range listings {
		out = append(out, service.ToListingResponse(&listings[i]))
	}
	return out
}

func summaryResponses(summaries []model.ListingSummary) []dto.ListingSummaryResponse {
	out := make([]dto.ListingSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, service.ToListingSummary(s))
	}
	return out
}

func detailResponse(d *service.ListingDetail) dto.ListingDetailResponse {
	reviews := make([]dto.ReviewResponse, 0, len(d.Reviews))
	for _, r := range d.Reviews {
		reviews = append(reviews, service.ToReviewResponse(r))
	}
	return dto.ListingDetailResponse{
		ListingResponse: service.ToListingResponse(d.Listing),
		Seller:          service.ToPerson(d.Seller),
		Reviews:         reviews,
	}
}
