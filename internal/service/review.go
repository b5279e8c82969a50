package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

var tracer = otel.Tracer("github.com/flicky/phone-marketplace/internal/service")

// VisibleReview is a review as rendered for one viewer.
type VisibleReview struct {
	model.Review
	Reviewer *model.User
	// ToDisplay is false when the review is hidden and shown only because
	// the viewer is its author or the listing's seller.
	ToDisplay bool
}

// ToggleResult reports both sides of a visibility flip.
type ToggleResult struct {
	ReviewID         uuid.UUID
	PreviouslyHidden bool
	CurrentlyHidden  bool
}

type ReviewService struct {
	reviewRepo  repository.ReviewRepository
	listingRepo repository.ListingRepository
	logger      *slog.Logger
}

func NewReviewService(reviewRepo repository.ReviewRepository, listingRepo repository.ListingRepository, logger *slog.Logger) *ReviewService {
	return &ReviewService{reviewRepo: reviewRepo, listingRepo: listingRepo, logger: logger}
}

func (s *ReviewService) Add(ctx context.Context, listingID, reviewerID uuid.UUID, req dto.AddReviewRequest) (*model.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return nil, ErrMissingComment
	}

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if listing == nil || listing.Status == model.ListingStatusDisabled {
		return nil, ErrListingNotFound
	}

	review := &model.Review{
		ListingID:  listingID,
		ReviewerID: reviewerID,
		Rating:     req.Rating,
		Comment:    comment,
		Visibility: model.ReviewVisible,
	}
	if req.Hidden {
		review.Visibility = model.ReviewHidden
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// Toggle flips a review between visible and hidden in a single update.
// The listing's seller, the review's author and admins may toggle.
func (s *ReviewService) Toggle(ctx context.Context, actor Actor, reviewID uuid.UUID) (*ToggleResult, error) {
	ctx, span := tracer.Start(ctx, "review.toggle")
	defer span.End()
	span.SetAttributes(attribute.String("review.id", reviewID.String()))

	if err := s.authorize(ctx, actor, reviewID); err != nil {
		return nil, err
	}

	current, err := s.reviewRepo.ToggleVisibility(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("toggle review: %w", err)
	}

	res := &ToggleResult{
		ReviewID:         reviewID,
		CurrentlyHidden:  current == model.ReviewHidden,
		PreviouslyHidden: current != model.ReviewHidden,
	}
	s.logger.Info("review visibility toggled",
		"review_id", reviewID, "user_id", actor.ID, "hidden", res.CurrentlyHidden)
	return res, nil
}

// SetVisibility sets an explicit state. It is idempotent.
func (s *ReviewService) SetVisibility(ctx context.Context, actor Actor, reviewID uuid.UUID, hidden bool) (*ToggleResult, error) {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	if err := s.authorizeReview(ctx, actor, review); err != nil {
		return nil, err
	}

	visibility := model.ReviewVisible
	if hidden {
		visibility = model.ReviewHidden
	}
	if err := s.reviewRepo.SetVisibility(ctx, reviewID, visibility); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("set review visibility: %w", err)
	}
	return &ToggleResult{ReviewID: reviewID, PreviouslyHidden: review.Hidden(), CurrentlyHidden: hidden}, nil
}

// List is the moderation view across all listings.
func (s *ReviewService) List(ctx context.Context, filter model.ReviewFilter, page model.Page) ([]model.ReviewEntry, int, error) {
	entries, total, err := s.reviewRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return entries, total, nil
}

func (s *ReviewService) ListByReviewer(ctx context.Context, reviewerID uuid.UUID) ([]model.ReviewEntry, error) {
	entries, _, err := s.reviewRepo.List(ctx, model.ReviewFilter{ReviewerID: &reviewerID},
		model.Page{Limit: maxUnpagedRows, Sort: "createdAt", Order: "desc"})
	if err != nil {
		return nil, fmt.Errorf("list reviewer reviews: %w", err)
	}
	return entries, nil
}

func (s *ReviewService) authorize(ctx context.Context, actor Actor, reviewID uuid.UUID) error {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("get review: %w", err)
	}
	if review == nil {
		return ErrReviewNotFound
	}
	return s.authorizeReview(ctx, actor, review)
}

func (s *ReviewService) authorizeReview(ctx context.Context, actor Actor, review *model.Review) error {
	if actor.Admin || review.ReviewerID == actor.ID {
		return nil
	}
	listing, err := s.listingRepo.GetByID(ctx, review.ListingID)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}
	if listing != nil && listing.IsSeller(actor.ID) {
		return nil
	}
	return ErrForbidden
}

// FilterReviews returns the reviews of listing that viewer may see, in
// stored order. Hidden reviews are kept only for their author and the
// listing's seller, with ToDisplay cleared.
func FilterReviews(listing *model.Listing, viewer *uuid.UUID) []VisibleReview {
	out := make([]VisibleReview, 0, len(listing.Reviews))
	for _, r := range listing.Reviews {
		if !r.Hidden() {
			out = append(out, VisibleReview{Review: r, ToDisplay: true})
			continue
		}
		if viewer == nil {
			continue
		}
		if r.ReviewerID == *viewer || listing.IsSeller(*viewer) {
			out = append(out, VisibleReview{Review: r, ToDisplay: false})
		}
	}
	return out
}

func ToReviewResponse(r VisibleReview) dto.ReviewResponse {
	resp := dto.ReviewResponse{
		ID:         r.ID,
		ListingID:  r.ListingID,
		ReviewerID: r.ReviewerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		Hidden:     r.Hidden(),
		ToDisplay:  r.ToDisplay,
		CreatedAt:  r.CreatedAt,
	}
	if r.Reviewer != nil {
		resp.Reviewer = ToPerson(r.Reviewer)
	}
	return resp
}

func ToReviewEntryResponse(e model.ReviewEntry) dto.ReviewEntryResponse {
	return dto.ReviewEntryResponse{
		ID:            e.ID,
		ListingID:     e.ListingID,
		ListingTitle:  e.ListingTitle,
		ReviewerID:    e.ReviewerID,
		ReviewerName:  e.ReviewerName,
		ReviewerEmail: e.ReviewerEmail,
		Rating:        e.Rating,
		Comment:       e.Comment,
		Hidden:        e.Hidden(),
		CreatedAt:     e.CreatedAt,
	}
}

func ToToggleResponse(r *ToggleResult) dto.ToggleReviewResponse {
	return dto.ToggleReviewResponse{
		ReviewID:         r.ReviewID,
		PreviouslyHidden: r.PreviouslyHidden,
		CurrentlyHidden:  r.CurrentlyHidden,
	}
}

func ToPerson(u *model.User) *dto.PersonResponse {
	if u == nil {
		return nil
	}
	return &dto.PersonResponse{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
}
