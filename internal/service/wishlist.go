package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

type WishlistService struct {
	wishlistRepo repository.WishlistRepository
	listingRepo  repository.ListingRepository
}

func NewWishlistService(wishlistRepo repository.WishlistRepository, listingRepo repository.ListingRepository) *WishlistService {
	return &WishlistService{wishlistRepo: wishlistRepo, listingRepo: listingRepo}
}

func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]model.ListingSummary, error) {
	items, err := s.wishlistRepo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	return items, nil
}

// Add is idempotent.
func (s *WishlistService) Add(ctx context.Context, userID, listingID uuid.UUID) error {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return ErrListingNotFound
	}
	if err := s.wishlistRepo.Add(ctx, userID, listingID); err != nil {
		return fmt.Errorf("add to wishlist: %w", err)
	}
	return nil
}

func (s *WishlistService) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	if err := s.wishlistRepo.Remove(ctx, userID, listingID); err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}
