package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

const (
	defaultListingCacheTTL = 60 * time.Second
	catalogueHighlightSize = 5
	bestSellerMinReviews   = 2
)

// ListingDetail is a listing as a particular viewer is allowed to see it.
type ListingDetail struct {
	Listing *model.Listing
	Seller  *model.User
	Reviews []VisibleReview
}

type ListingService struct {
	listingRepo repository.ListingRepository
	reviewRepo  repository.ReviewRepository
	userRepo    repository.UserRepository
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewListingService(
	listingRepo repository.ListingRepository,
	reviewRepo repository.ReviewRepository,
	userRepo repository.UserRepository,
	redisClient *redis.Client,
	cacheTTL time.Duration,
) *ListingService {
	if cacheTTL <= 0 {
		cacheTTL = defaultListingCacheTTL
	}
	return &ListingService{
		listingRepo: listingRepo, reviewRepo: reviewRepo, userRepo: userRepo,
		redisClient: redisClient, cacheTTL: cacheTTL,
	}
}

// Search returns active listings matching the storefront filters.
func (s *ListingService) Search(ctx context.Context, filter model.ListingFilter, page model.Page) ([]model.Listing, int, error) {
	filter.Status = model.ListingStatusActive
	filter.Search = ""
	filter.Brand = strings.TrimSpace(filter.Brand)
	filter.Title = strings.TrimSpace(filter.Title)
	listings, total, err := s.listingRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}
	return listings, total, nil
}

func (s *ListingService) AlmostSoldOut(ctx context.Context) ([]model.ListingSummary, error) {
	return s.listingRepo.AlmostSoldOut(ctx, catalogueHighlightSize)
}

func (s *ListingService) BestSellers(ctx context.Context) ([]model.ListingSummary, error) {
	return s.listingRepo.BestSellers(ctx, bestSellerMinReviews, catalogueHighlightSize)
}

func (s *ListingService) Brands(ctx context.Context) ([]string, error) {
	return s.listingRepo.Brands(ctx)
}

// GetDetail loads a listing with its seller and the reviews visible to
// viewer. A nil viewer is an anonymous reader. Disabled listings resolve
// only for their seller.
func (s *ListingService) GetDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*ListingDetail, error) {
	listing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status == model.ListingStatusDisabled && (viewer == nil || !listing.IsSeller(*viewer)) {
		return nil, ErrListingNotFound
	}

	reviews, err := s.reviewRepo.ListByListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	listing.Reviews = reviews

	visible := FilterReviews(listing, viewer)

	ids := make([]uuid.UUID, 0, len(visible)+1)
	if listing.SellerID != nil {
		ids = append(ids, *listing.SellerID)
	}
	for _, rv := range visible {
		ids = append(ids, rv.ReviewerID)
	}
	people, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get people: %w", err)
	}

	detail := &ListingDetail{Listing: listing, Reviews: visible}
	if listing.SellerID != nil {
		detail.Seller = people[*listing.SellerID]
	}
	for i := range detail.Reviews {
		detail.Reviews[i].Reviewer = people[detail.Reviews[i].ReviewerID]
	}
	return detail, nil
}

// Get returns the raw listing regardless of status.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	listing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviewRepo.ListByListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	listing.Reviews = reviews
	return listing, nil
}

func (s *ListingService) List(ctx context.Context, filter model.ListingFilter, page model.Page) ([]model.Listing, int, error) {
	listings, total, err := s.listingRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	return listings, total, nil
}

func (s *ListingService) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]model.Listing, error) {
	listings, _, err := s.listingRepo.List(ctx, model.ListingFilter{SellerID: &sellerID},
		model.Page{Limit: maxUnpagedRows, Sort: "createdAt", Order: "desc"})
	if err != nil {
		return nil, fmt.Errorf("list seller listings: %w", err)
	}
	return listings, nil
}

// Create stores a new listing. The admin console may assign any seller;
// other callers always sell as themselves.
func (s *ListingService) Create(ctx context.Context, actor Actor, req dto.CreateListingRequest) (*model.Listing, error) {
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if req.Stock < 0 {
		return nil, ErrInvalidStock
	}
	seller := &actor.ID
	if actor.Admin {
		seller = req.SellerID
	}
	listing := &model.Listing{
		Title:    strings.TrimSpace(req.Title),
		Brand:    strings.TrimSpace(req.Brand),
		Image:    req.Image,
		Price:    req.Price,
		Stock:    req.Stock,
		SellerID: seller,
		Status:   model.ListingStatusActive,
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return listing, nil
}

// Update applies a partial edit, including seller restock.
func (s *ListingService) Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateListingRequest) (*model.Listing, error) {
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		listing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Brand != nil {
		listing.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Image != nil {
		listing.Image = *req.Image
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		listing.Price = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, ErrInvalidStock
		}
		listing.Stock = *req.Stock
	}

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}
	s.InvalidateCache(ctx, id)
	return listing, nil
}

func (s *ListingService) SetDisabled(ctx context.Context, actor Actor, id uuid.UUID, disabled bool) (*model.Listing, error) {
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	status := model.ListingStatusActive
	if disabled {
		status = model.ListingStatusDisabled
	}
	if err := s.listingRepo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("set listing status: %w", err)
	}
	s.InvalidateCache(ctx, id)
	listing.Status = status
	return listing, nil
}

// ToggleStatus flips a listing between active and disabled.
func (s *ListingService) ToggleStatus(ctx context.Context, actor Actor, id uuid.UUID) (*model.Listing, error) {
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.SetDisabled(ctx, actor, id, listing.Status != model.ListingStatusDisabled)
}

func (s *ListingService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.listingRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrListingNotFound
		}
		return fmt.Errorf("delete listing: %w", err)
	}
	s.InvalidateCache(ctx, id)
	return nil
}

// InvalidateCache drops cached copies of the given listings.
func (s *ListingService) InvalidateCache(ctx context.Context, ids ...uuid.UUID) {
	if s.redisClient == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, listingCacheKey(id))
	}
	s.redisClient.Del(ctx, keys...)
}

func (s *ListingService) owned(ctx context.Context, actor Actor, id uuid.UUID) (*model.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if !actor.Admin && !listing.IsSeller(actor.ID) {
		return nil, ErrForbidden
	}
	return listing, nil
}

func (s *ListingService) get(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	cacheKey := listingCacheKey(id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var listing model.Listing
			if json.Unmarshal([]byte(cached), &listing) == nil {
				return &listing, nil
			}
		}
	}

	listing, err := s.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(listing); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return listing, nil
}

func listingCacheKey(id uuid.UUID) string { return "listing:" + id.String() }

// maxUnpagedRows caps list queries that have no paging in their API.
const maxUnpagedRows = 1000

func ToListingResponse(l *model.Listing) dto.ListingResponse {
	return dto.ListingResponse{
		ID:        l.ID,
		Title:     l.Title,
		Brand:     l.Brand,
		Image:     l.Image,
		Price:     l.Price,
		Stock:     l.Stock,
		SellerID:  l.SellerID,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func ToListingSummary(s model.ListingSummary) dto.ListingSummaryResponse {
	return dto.ListingSummaryResponse{
		ID: s.ID, Title: s.Title, Brand: s.Brand, Image: s.Image,
		Price: s.Price, Stock: s.Stock, AvgRating: s.AvgRating,
	}
}
