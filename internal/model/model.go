package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusDisabled ListingStatus = "disabled"
)

type ReviewVisibility string

const (
	ReviewVisible ReviewVisibility = "visible"
	ReviewHidden  ReviewVisibility = "hidden"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusCancelled:
		return true
	}
	return false
}

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	Status    UserStatus
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

type Listing struct {
	ID        uuid.UUID
	Title     string
	Brand     string
	Image     string
	Price     decimal.Decimal
	Stock     int
	SellerID  *uuid.UUID
	Status    ListingStatus
	Reviews   []Review
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *Listing) IsSeller(userID uuid.UUID) bool {
	return l.SellerID != nil && *l.SellerID == userID
}

type Review struct {
	ID         uuid.UUID
	ListingID  uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    string
	Visibility ReviewVisibility
	CreatedAt  time.Time
}

func (r *Review) Hidden() bool { return r.Visibility == ReviewHidden }

// ReviewEntry is a review joined with its listing for moderation views.
type ReviewEntry struct {
	Review
	ListingTitle  string
	ListingSeller *uuid.UUID
	ReviewerName  string
	ReviewerEmail string
}

type CartLine struct {
	ListingID uuid.UUID
	Quantity  int
}

// CartItem is a stored cart line joined with the current listing data.
type CartItem struct {
	ListingID uuid.UUID
	Quantity  int
	Title     string
	Image     string
	Price     decimal.Decimal
	Stock     int
	Resolved  bool
}

type Transaction struct {
	ID          uuid.UUID
	BuyerID     uuid.UUID
	Items       []TransactionItem
	TotalAmount decimal.Decimal
	Status      TransactionStatus
	Timestamp   time.Time
	CreatedAt   time.Time
}

type TransactionItem struct {
	ListingID uuid.UUID
	Title     string
	Price     decimal.Decimal
	Quantity  int
}

// TransactionEntry is a transaction joined with its buyer for admin views.
type TransactionEntry struct {
	Transaction
	BuyerName  string
	BuyerEmail string
}

type AdminLog struct {
	ID         uuid.UUID
	AdminID    uuid.UUID
	AdminName  string
	Action     string
	TargetType string
	TargetID   string
	Details    json.RawMessage
	IPAddress  string
	UserAgent  string
	Timestamp  time.Time
}

const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionDisable = "disable"
	ActionEnable  = "enable"
	ActionHide    = "hide"
	ActionShow    = "show"
	ActionExport  = "export"
	ActionLogin   = "login"
	ActionLogout  = "logout"
	ActionOther   = "other"

	TargetListing     = "listing"
	TargetReview      = "review"
	TargetTransaction = "transaction"
	TargetUser        = "user"
	TargetSystem      = "system"
)

var (
	validActions = map[string]bool{
		ActionCreate: true, ActionUpdate: true, ActionDelete: true, ActionDisable: true,
		ActionEnable: true, ActionHide: true, ActionShow: true, ActionExport: true,
		ActionLogin: true, ActionLogout: true, ActionOther: true,
	}
	validTargets = map[string]bool{
		TargetListing: true, TargetReview: true, TargetTransaction: true,
		TargetUser: true, TargetSystem: true,
	}
)

func ValidAction(a string) bool     { return validActions[a] }
func ValidTargetType(t string) bool { return validTargets[t] }

// OrderEvent is published after every completed checkout.
type OrderEvent struct {
	Event     string          `json:"event"`
	OrderID   uuid.UUID       `json:"orderId"`
	BuyerName string          `json:"buyerName"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	CreatedAt time.Time       `json:"createdAt"`
}

const EventNewOrder = "new-order"

// Page holds the offset pagination inputs shared by list queries.
type Page struct {
	Limit  int
	Offset int
	Sort   string
	Order  string
}

type ListingFilter struct {
	Search   string
	Brand    string
	Title    string
	MaxPrice decimal.Decimal
	SellerID *uuid.UUID
	Status   ListingStatus
}

type UserFilter struct {
	Search string
	Status UserStatus
}

type ReviewFilter struct {
	Text       string
	ListingID  *uuid.UUID
	ReviewerID *uuid.UUID
	Visibility ReviewVisibility
}

type TransactionFilter struct {
	Status  TransactionStatus
	From    *time.Time
	To      *time.Time
	Search  string
	BuyerID *uuid.UUID
}

type AdminLogFilter struct {
	Action     string
	TargetType string
	AdminID    *uuid.UUID
}

// ListingSummary is the compact catalogue projection.
type ListingSummary struct {
	ID        uuid.UUID
	Title     string
	Brand     string
	Image     string
	Price     decimal.Decimal
	Stock     int
	AvgRating float64
}
