package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/phone-marketplace/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	FirstName string           `json:"firstName"`
	LastName  string           `json:"lastName"`
	Role      string           `json:"role"`
	Status    model.UserStatus `json:"status"`
	LastLogin *time.Time       `json:"lastLogin,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// --- Profile ---

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=1"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// --- Listings ---

type CreateListingRequest struct {
	Title string          `json:"title" binding:"required"`
	Brand string          `json:"brand" binding:"required"`
	Image string          `json:"image"`
	Price decimal.Decimal `json:"price" binding:"required"`
	Stock int             `json:"stock" binding:"min=0"`
	// SellerID is honoured only on the admin route.
	SellerID *uuid.UUID `json:"sellerId"`
}

type UpdateListingRequest struct {
	Title *string          `json:"title" binding:"omitempty,min=1"`
	Brand *string          `json:"brand" binding:"omitempty,min=1"`
	Image *string          `json:"image"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock" binding:"omitempty,min=0"`
}

type SetListingStatusRequest struct {
	Disabled *bool `json:"disabled" binding:"required"`
}

type SearchListingsRequest struct {
	Brand    string `form:"brand"`
	Title    string `form:"title"`
	MaxPrice string `form:"maxPrice"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=50" binding:"min=1,max=100"`
}

type ListingResponse struct {
	ID        uuid.UUID           `json:"id"`
	Title     string              `json:"title"`
	Brand     string              `json:"brand"`
	Image     string              `json:"image"`
	Price     decimal.Decimal     `json:"price"`
	Stock     int                 `json:"stock"`
	SellerID  *uuid.UUID          `json:"sellerId,omitempty"`
	Status    model.ListingStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type ListingSummaryResponse struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Brand     string          `json:"brand,omitempty"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	AvgRating float64         `json:"avgRating,omitempty"`
}

type PersonResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

type ListingDetailResponse struct {
	ListingResponse
	Seller  *PersonResponse  `json:"seller"`
	Reviews []ReviewResponse `json:"reviews"`
}

// --- Reviews ---

type AddReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
	Hidden  bool   `json:"hidden"`
}

type SetReviewVisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

type ReviewResponse struct {
	ID         uuid.UUID       `json:"id"`
	ListingID  uuid.UUID       `json:"listingId"`
	ReviewerID uuid.UUID       `json:"reviewerId"`
	Reviewer   *PersonResponse `json:"reviewer"`
	Rating     int             `json:"rating"`
	Comment    string          `json:"comment"`
	Hidden     bool            `json:"hidden"`
	// ToDisplay is false for hidden reviews shown only to their author or the seller.
	ToDisplay bool      `json:"toDisplay"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReviewEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	ListingID     uuid.UUID `json:"listingId"`
	ListingTitle  string    `json:"listingTitle"`
	ReviewerID    uuid.UUID `json:"reviewerId"`
	ReviewerName  string    `json:"reviewer"`
	ReviewerEmail string    `json:"reviewerEmail,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	Hidden        bool      `json:"hidden"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ToggleReviewResponse struct {
	ReviewID         uuid.UUID `json:"reviewId"`
	PreviouslyHidden bool      `json:"previouslyHidden"`
	CurrentlyHidden  bool      `json:"currentlyHidden"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ListingID uuid.UUID `json:"listingId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	ListingID uuid.UUID `json:"listingId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type RemoveCartItemRequest struct {
	ListingID uuid.UUID `json:"listingId" binding:"required"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type CartItemResponse struct {
	ListingID uuid.UUID       `json:"listingId"`
	Title     string          `json:"title"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// --- Checkout ---

// CheckoutRequest carries the cart as the buyer saw it. Quantities are
// validated by the checkout engine rather than by binding tags so that the
// caller gets a precise invalid_quantity error. A body that does not decode,
// including a malformed listingId, is reported as invalid_cart.
type CheckoutRequest struct {
	Cart []CheckoutLine `json:"cart"`
}

type CheckoutLine struct {
	ListingID uuid.UUID `json:"listingId"`
	Quantity  int       `json:"quantity"`
}

type CheckoutResponse struct {
	Message string    `json:"message"`
	OrderID uuid.UUID `json:"orderId"`
}

// --- Wishlist ---

type WishlistRequest struct {
	ListingID uuid.UUID `json:"listingId" binding:"required"`
}

// --- Transactions ---

type TransactionResponse struct {
	ID          uuid.UUID                 `json:"id"`
	BuyerID     uuid.UUID                 `json:"buyerId"`
	BuyerName   string                    `json:"buyer,omitempty"`
	BuyerEmail  string                    `json:"buyerEmail,omitempty"`
	Items       []TransactionItemResponse `json:"items"`
	TotalAmount decimal.Decimal           `json:"totalAmount"`
	Status      model.TransactionStatus   `json:"status"`
	Timestamp   time.Time                 `json:"timestamp"`
}

type TransactionItemResponse struct {
	ListingID uuid.UUID       `json:"listingId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type CreateTransactionRequest struct {
	BuyerID uuid.UUID               `json:"buyerId" binding:"required"`
	Items   []CreateTransactionItem `json:"items" binding:"required,min=1,dive"`
	Status  model.TransactionStatus `json:"status"`
}

type CreateTransactionItem struct {
	ListingID uuid.UUID       `json:"listingId" binding:"required"`
	Title     string          `json:"title" binding:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
}

// --- Admin ---

type PageRequest struct {
	Page  int    `form:"page,default=1" binding:"min=1"`
	Limit int    `form:"limit,default=20" binding:"min=1,max=100"`
	Sort  string `form:"sort"`
	Order string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type AdminListingsRequest struct {
	PageRequest
	Search string `form:"search"`
	Brand  string `form:"brand"`
	Status string `form:"status" binding:"omitempty,oneof=active disabled"`
}

type AdminUsersRequest struct {
	PageRequest
	Search string `form:"search"`
	Status string `form:"status" binding:"omitempty,oneof=active disabled"`
}

type AdminReviewsRequest struct {
	PageRequest
	Text      string `form:"text"`
	ListingID string `form:"listingId"`
	Status    string `form:"status" binding:"omitempty,oneof=visible hidden"`
}

type AdminTransactionsRequest struct {
	PageRequest
	Status    string `form:"status" binding:"omitempty,oneof=pending completed cancelled"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Search    string `form:"search"`
}

type ExportTransactionsRequest struct {
	Format    string `form:"format,default=csv" binding:"oneof=csv json"`
	Status    string `form:"status" binding:"omitempty,oneof=pending completed cancelled"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Search    string `form:"search"`
}

type AdminOperationsRequest struct {
	PageRequest
	Action     string `form:"action"`
	TargetType string `form:"targetType"`
	AdminID    string `form:"adminId"`
}

type AdminUpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"firstName" binding:"omitempty,min=1"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1"`
}

type LogActionRequest struct {
	Action     string         `json:"action" binding:"required"`
	TargetType string         `json:"targetType" binding:"required"`
	TargetID   string         `json:"targetId"`
	Details    map[string]any `json:"details"`
}

type AdminLogResponse struct {
	ID         uuid.UUID      `json:"id"`
	AdminID    uuid.UUID      `json:"adminId"`
	AdminName  string         `json:"adminName"`
	Action     string         `json:"action"`
	TargetType string         `json:"targetType"`
	TargetID   string         `json:"targetId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type PagedResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func NewPagedResponse[T any](items []T, total, page, limit int) PagedResponse[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PagedResponse[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

func (p PageRequest) ToPage() model.Page {
	return model.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit, Sort: p.Sort, Order: p.Order}
}
