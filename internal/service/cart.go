package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

type CartService struct {
	cartRepo    repository.CartRepository
	listingRepo repository.ListingRepository
}

func NewCartService(cartRepo repository.CartRepository, listingRepo repository.ListingRepository) *CartService {
	return &CartService{cartRepo: cartRepo, listingRepo: listingRepo}
}

// Get returns the joined cart. Lines whose listing no longer exists are
// removed from storage and left out of the result.
func (s *CartService) Get(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	items, err := s.cartRepo.GetItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}

	live := make([]model.CartItem, 0, len(items))
	var dead []uuid.UUID
	for _, it := range items {
		if !it.Resolved {
			dead = append(dead, it.ListingID)
			continue
		}
		live = append(live, it)
	}
	if len(dead) > 0 {
		if err := s.cartRepo.RemoveItems(ctx, userID, dead); err != nil {
			return nil, fmt.Errorf("prune cart: %w", err)
		}
	}
	return live, nil
}

// Add merges quantity into an existing line or appends a new one.
func (s *CartService) Add(ctx context.Context, userID, listingID uuid.UUID, quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}
	if listing == nil || listing.Status == model.ListingStatusDisabled {
		return ErrListingNotFound
	}

	existing, err := s.cartRepo.GetLine(ctx, userID, listingID)
	if err != nil {
		return fmt.Errorf("get cart line: %w", err)
	}
	requested := quantity
	if existing != nil {
		if quantity > MaxLineQuantity-existing.Quantity {
			return ErrInvalidQuantity
		}
		requested += existing.Quantity
	}
	if requested > listing.Stock {
		return &StockError{ListingID: listing.ID, Title: listing.Title, Available: listing.Stock, Requested: requested}
	}

	if _, err := s.cartRepo.AddItem(ctx, userID, listingID, quantity); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// Update sets the absolute quantity of an existing line.
func (s *CartService) Update(ctx context.Context, userID, listingID uuid.UUID, quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	found, err := s.cartRepo.SetQuantity(ctx, userID, listingID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if !found {
		return ErrCartItemNotFound
	}
	return nil
}

func (s *CartService) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	if err := s.cartRepo.RemoveItem(ctx, userID, listingID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func ToCartResponse(items []model.CartItem) dto.CartResponse {
	resp := dto.CartResponse{Items: make([]dto.CartItemResponse, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.CartItemResponse{
			ListingID: it.ListingID,
			Title:     it.Title,
			Image:     it.Image,
			Price:     it.Price,
			Stock:     it.Stock,
			Quantity:  it.Quantity,
		})
		resp.Total = resp.Total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return resp
}
