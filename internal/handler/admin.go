package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/service"
)

const ssePingInterval = 25 * time.Second

// EventSource feeds the live admin dashboard.
type EventSource interface {
	Subscribe() (<-chan model.OrderEvent, func())
}

type AdminHandler struct {
	auth         *service.AuthService
	listings     *service.ListingService
	users        *service.UserService
	reviews      *service.ReviewService
	transactions *service.TransactionService
	audit        *service.AuditService
	events       EventSource
}

func NewAdminHandler(
	auth *service.AuthService,
	listings *service.ListingService,
	users *service.UserService,
	reviews *service.ReviewService,
	transactions *service.TransactionService,
	audit *service.AuditService,
	events EventSource,
) *AdminHandler {
	return &AdminHandler{
		auth: auth, listings: listings, users: users, reviews: reviews,
		transactions: transactions, audit: audit, events: events,
	}
}

func (h *AdminHandler) record(c *gin.Context, action, targetType, targetID string, details map[string]any) {
	h.audit.Record(h.entry(c, action, targetType, targetID, details))
}

func (h *AdminHandler) entry(c *gin.Context, action, targetType, targetID string, details map[string]any) service.AuditEntry {
	return service.AuditEntry{
		AdminID:    middleware.GetUserID(c),
		AdminName:  middleware.GetUserName(c),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
}

// --- Session ---

func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.auth.AdminLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Record(service.AuditEntry{
		AdminID: resp.User.ID, AdminName: resp.User.FirstName + " " + resp.User.LastName,
		Action: model.ActionLogin, TargetType: model.TargetSystem,
		IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Logout(c *gin.Context) {
	h.record(c, model.ActionLogout, model.TargetSystem, "", nil)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// --- Listings ---

func (h *AdminHandler) ListListings(c *gin.Context) {
	var req dto.AdminListingsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter := model.ListingFilter{Search: req.Search, Brand: req.Brand, Status: model.ListingStatus(req.Status)}
	listings, total, err := h.listings.List(c.Request.Context(), filter, req.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, listingResponses(listings), total, req.PageRequest)
}

func (h *AdminHandler) GetListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listings.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	reviews := make([]dto.ReviewResponse, 0, len(listing.Reviews))
	for _, r := range listing.Reviews {
		reviews = append(reviews, service.ToReviewResponse(service.VisibleReview{Review: r, ToDisplay: !r.Hidden()}))
	}
	c.JSON(http.StatusOK, dto.ListingDetailResponse{ListingResponse: service.ToListingResponse(listing), Reviews: reviews})
}

func (h *AdminHandler) CreateListing(c *gin.Context) {
	var req dto.CreateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listings.Create(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionCreate, model.TargetListing, listing.ID.String(), map[string]any{"title": listing.Title})
	c.JSON(http.StatusCreated, service.ToListingResponse(listing))
}

func (h *AdminHandler) UpdateListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listings.Update(c.Request.Context(), currentActor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionUpdate, model.TargetListing, id.String(), map[string]any{"title": listing.Title})
	c.JSON(http.StatusOK, service.ToListingResponse(listing))
}

func (h *AdminHandler) ToggleListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	listing, err := h.listings.ToggleStatus(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	action := model.ActionEnable
	if listing.Status == model.ListingStatusDisabled {
		action = model.ActionDisable
	}
	h.record(c, action, model.TargetListing, id.String(), map[string]any{"title": listing.Title})
	c.JSON(http.StatusOK, service.ToListingResponse(listing))
}

func (h *AdminHandler) DeleteListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.listings.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionDelete, model.TargetListing, id.String(), nil)
	c.Status(http.StatusNoContent)
}

// --- Users ---

func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req dto.AdminUsersRequest
	if !bindQuery(c, &req) {
		return
	}
	users, total, err := h.users.List(c.Request.Context(),
		model.UserFilter{Search: req.Search, Status: model.UserStatus(req.Status)}, req.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, service.ToUserResponse(&users[i]))
	}
	paged(c, out, total, req.PageRequest)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToUserResponse(user))
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionUpdate, model.TargetUser, id.String(), map[string]any{"email": user.Email})
	c.JSON(http.StatusOK, service.ToUserResponse(user))
}

func (h *AdminHandler) ToggleUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.ToggleStatus(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	action := model.ActionEnable
	if user.Status == model.UserStatusDisabled {
		action = model.ActionDisable
	}
	h.record(c, action, model.TargetUser, id.String(), map[string]any{"email": user.Email})
	c.JSON(http.StatusOK, service.ToUserResponse(user))
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), currentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionDelete, model.TargetUser, id.String(), nil)
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) UserListings(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	listings, err := h.listings.ListBySeller(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listingResponses(listings))
}

func (h *AdminHandler) UserReviews(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.reviews.ListByReviewer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviewEntryResponses(entries))
}

// --- Reviews ---

func (h *AdminHandler) ListReviews(c *gin.Context) {
	var req dto.AdminReviewsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter := model.ReviewFilter{Text: req.Text, Visibility: model.ReviewVisibility(req.Status)}
	if req.ListingID != "" {
		id, err := uuid.Parse(req.ListingID)
		if err != nil {
			badRequest(c, "invalid listingId")
			return
		}
		filter.ListingID = &id
	}
	entries, total, err := h.reviews.List(c.Request.Context(), filter, req.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, reviewEntryResponses(entries), total, req.PageRequest)
}

func (h *AdminHandler) ToggleReview(c *gin.Context) {
	id, ok := parseID(c, "reviewId")
	if !ok {
		return
	}
	res, err := h.reviews.Toggle(c.Request.Context(), currentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	action := model.ActionShow
	if res.CurrentlyHidden {
		action = model.ActionHide
	}
	h.record(c, action, model.TargetReview, id.String(), map[string]any{
		"previouslyHidden": res.PreviouslyHidden,
		"currentlyHidden":  res.CurrentlyHidden,
	})
	c.JSON(http.StatusOK, service.ToToggleResponse(res))
}

// --- Transactions ---

func (h *AdminHandler) transactionFilter(c *gin.Context, status, start, end, search string) (model.TransactionFilter, bool) {
	from, err := parseDate(start, false)
	if err != nil {
		badRequest(c, "invalid startDate")
		return model.TransactionFilter{}, false
	}
	to, err := parseDate(end, true)
	if err != nil {
		badRequest(c, "invalid endDate")
		return model.TransactionFilter{}, false
	}
	return model.TransactionFilter{Status: model.TransactionStatus(status), From: from, To: to, Search: search}, true
}

func (h *AdminHandler) ListTransactions(c *gin.Context) {
	var req dto.AdminTransactionsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter, ok := h.transactionFilter(c, req.Status, req.StartDate, req.EndDate, req.Search)
	if !ok {
		return
	}
	entries, total, err := h.transactions.List(c.Request.Context(), filter, req.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	paged(c, transactionResponses(entries), total, req.PageRequest)
}

func (h *AdminHandler) GetTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.transactions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToTransactionResponse(*entry))
}

func (h *AdminHandler) CreateTransaction(c *gin.Context) {
	var req dto.CreateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	txn, err := h.transactions.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.record(c, model.ActionCreate, model.TargetTransaction, txn.ID.String(), map[string]any{"total": txn.TotalAmount.String()})
	c.JSON(http.StatusCreated, service.ToTransactionView(txn))
}

func (h *AdminHandler) ExportTransactions(c *gin.Context) {
	var req dto.ExportTransactionsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter, ok := h.transactionFilter(c, req.Status, req.StartDate, req.EndDate, req.Search)
	if !ok {
		return
	}

	var buf bytes.Buffer
	n, err := h.transactions.Export(c.Request.Context(), &buf, req.Format, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	if req.Format == service.ExportJSON {
		contentType = "application/json"
	}
	filename := fmt.Sprintf("transactions-%s.%s", time.Now().UTC().Format("20060102-150405"), req.Format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
	h.record(c, model.ActionExport, model.TargetTransaction, "", map[string]any{"format": req.Format, "count": n})
}

// --- Operations log ---

func (h *AdminHandler) ListOperations(c *gin.Context) {
	var req dto.AdminOperationsRequest
	if !bindQuery(c, &req) {
		return
	}
	filter := model.AdminLogFilter{Action: req.Action, TargetType: req.TargetType}
	if req.AdminID != "" {
		id, err := uuid.Parse(req.AdminID)
		if err != nil {
			badRequest(c, "invalid adminId")
			return
		}
		filter.AdminID = &id
	}
	logs, total, err := h.audit.List(c.Request.Context(), filter, req.ToPage())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.AdminLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, service.ToAdminLogResponse(l))
	}
	paged(c, out, total, req.PageRequest)
}

func (h *AdminHandler) LogOperation(c *gin.Context) {
	var req dto.LogActionRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.audit.Log(c.Request.Context(), h.entry(c, req.Action, req.TargetType, req.TargetID, req.Details))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToAdminLogResponse(*entry))
}

// --- Live events ---

// Events streams new-order notifications as Server-Sent Events.
func (h *AdminHandler) Events(c *gin.Context) {
	events, cancel := h.events.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.SSEvent("ready", gin.H{"status": "connected"})
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Event, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		}
	})
}
