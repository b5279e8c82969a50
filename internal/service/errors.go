package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Error classes. Business-rule failures match one of these with errors.Is;
// anything else is an internal failure.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
)

var (
	ErrListingNotFound     = fmt.Errorf("listing %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrReviewNotFound      = fmt.Errorf("review %w", ErrNotFound)
	ErrCartItemNotFound    = fmt.Errorf("cart item %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)

	ErrInvalidCart     = fmt.Errorf("%w: cart is empty or malformed", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be between 1 and 2147483647", ErrInvalidInput)
	ErrInvalidRating   = fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	ErrMissingComment  = fmt.Errorf("%w: comment is required", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	ErrInvalidStock    = fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
)

// MaxLineQuantity bounds a single cart or checkout line. It matches the
// INTEGER columns that store quantities and stock.
const MaxLineQuantity = math.MaxInt32

// StockError reports the first cart line that cannot be fulfilled.
type StockError struct {
	ListingID uuid.UUID
	Title     string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: only %d available", e.Title, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
