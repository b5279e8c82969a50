package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/middleware"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/service"
)

// Machine-readable codes sent next to the human-readable error text.
const (
	codeInvalidInput     = "invalid_input"
	codeNotAuthenticated = "not_authenticated"
	codeNotFound         = "not_found"
	codeForbidden        = "forbidden"
	codeConflict         = "conflict"
	codeInsufficient     = "insufficient_stock"
	codeInternal         = "internal_error"
)

// errorCodes is checked in order; specific errors come before their class.
var errorCodes = []struct {
	err  error
	code string
}{
	{service.ErrInvalidCart, "invalid_cart"},
	{service.ErrInvalidQuantity, "invalid_quantity"},
	{service.ErrInvalidRating, "invalid_rating"},
	{service.ErrMissingComment, "missing_comment"},
	{service.ErrInvalidPrice, "invalid_price"},
	{service.ErrInvalidStock, "invalid_stock"},
	{service.ErrWrongPassword, "wrong_password"},
	{service.ErrListingNotFound, "listing_not_found"},
	{service.ErrUserNotFound, "user_not_found"},
	{service.ErrReviewNotFound, "review_not_found"},
	{service.ErrCartItemNotFound, "cart_item_not_found"},
	{service.ErrTransactionNotFound, "transaction_not_found"},
	{service.ErrInvalidCredentials, "invalid_credentials"},
	{service.ErrAccountDisabled, "account_disabled"},
	{service.ErrSelfModification, "self_modification"},
	{service.ErrUserAlreadyExists, "user_already_exists"},
	{service.ErrInsufficientStock, codeInsufficient},
	{service.ErrNotAuthenticated, codeNotAuthenticated},
	{service.ErrNotFound, codeNotFound},
	{service.ErrForbidden, codeForbidden},
	{service.ErrInvalidInput, codeInvalidInput},
	{service.ErrConflict, codeConflict},
}

func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return codeInternal
}

// respondError maps service errors onto HTTP statuses. Unclassified errors
// are logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	code := errorCode(err)
	var stockErr *service.StockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        stockErr.Error(),
			"code":         codeInsufficient,
			"listingId":    stockErr.ListingID,
			"listingTitle": stockErr.Title,
			"available":    stockErr.Available,
		})
	case errors.Is(err, service.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": code})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": code})
	default:
		span := trace.SpanFromContext(c.Request.Context())
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": codeInternal})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": codeInvalidInput})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		badRequest(c, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func currentActor(c *gin.Context) service.Actor {
	return service.Actor{
		ID:    middleware.GetUserID(c),
		Admin: middleware.GetUserRole(c) == model.RoleAdmin,
	}
}

func optionalViewer(c *gin.Context) *uuid.UUID {
	if id, ok := middleware.LookupUserID(c); ok {
		return &id
	}
	return nil
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD. A bare end date covers
// the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func paged[T any](c *gin.Context, items []T, total int, req dto.PageRequest) {
	c.JSON(http.StatusOK, dto.NewPagedResponse(items, total, req.Page, req.Limit))
}
