package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/phone-marketplace/internal/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]model.Review, error)
	List(ctx context.Context, filter model.ReviewFilter, page model.Page) ([]model.ReviewEntry, int, error)
	// ToggleVisibility flips the visibility in a single statement and
	// returns the new state. pgx.ErrNoRows means the review does not exist.
	ToggleVisibility(ctx context.Context, id uuid.UUID) (model.ReviewVisibility, error)
	SetVisibility(ctx context.Context, id uuid.UUID, visibility model.ReviewVisibility) error
}

type pgReviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &pgReviewRepo{pool: pool}
}

const reviewColumns = `id, listing_id, reviewer_id, rating, comment, visibility, created_at`

func scanReview(row pgx.Row) (*model.Review, error) {
	rv := &model.Review{}
	if err := row.Scan(&rv.ID, &rv.ListingID, &rv.ReviewerID, &rv.Rating, &rv.Comment, &rv.Visibility, &rv.CreatedAt); err != nil {
		return nil, err
	}
	return rv, nil
}

func (r *pgReviewRepo) Create(ctx context.Context, review *model.Review) error {
	review.ID = uuid.New()
	if review.Visibility == "" {
		review.Visibility = model.ReviewVisible
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews (id, listing_id, reviewer_id, rating, comment, visibility, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp()) RETURNING created_at`,
		review.ID, review.ListingID, review.ReviewerID, review.Rating, review.Comment, string(review.Visibility),
	).Scan(&review.CreatedAt)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *pgReviewRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

func (r *pgReviewRepo) ListByListing(ctx context.Context, listingID uuid.UUID) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE listing_id = $1 ORDER BY created_at, id`, listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	return reviews, rows.Err()
}

func (r *pgReviewRepo) List(ctx context.Context, filter model.ReviewFilter, page model.Page) ([]model.ReviewEntry, int, error) {
	sort := sortColumn(page.Sort, map[string]string{
		"createdAt": "rv.created_at", "rating": "rv.rating",
		"listingTitle": "l.title", "hidden": "rv.visibility",
	}, "rv.created_at")
	order := sortOrder(page.Order)

	from := `FROM reviews rv
			 JOIN listings l ON l.id = rv.listing_id
			 LEFT JOIN users u ON u.id = rv.reviewer_id
			 WHERE ($1 = '' OR rv.comment ILIKE '%' || $1 || '%')
			   AND ($2::uuid IS NULL OR rv.listing_id = $2)
			   AND ($3::uuid IS NULL OR rv.reviewer_id = $3)
			   AND ($4 = '' OR rv.visibility = $4)`
	args := []any{filter.Text, filter.ListingID, filter.ReviewerID, string(filter.Visibility)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	query := fmt.Sprintf(`SELECT rv.id, rv.listing_id, rv.reviewer_id, rv.rating, rv.comment, rv.visibility, rv.created_at,
			l.title, l.seller_id, COALESCE(u.first_name || ' ' || u.last_name, ''), COALESCE(u.email, '')
		%s ORDER BY %s %s, rv.id LIMIT $5 OFFSET $6`, from, sort, order)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var entries []model.ReviewEntry
	for rows.Next() {
		var e model.ReviewEntry
		if err := rows.Scan(
			&e.ID, &e.ListingID, &e.ReviewerID, &e.Rating, &e.Comment, &e.Visibility, &e.CreatedAt,
			&e.ListingTitle, &e.ListingSeller, &e.ReviewerName, &e.ReviewerEmail,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *pgReviewRepo) ToggleVisibility(ctx context.Context, id uuid.UUID) (model.ReviewVisibility, error) {
	var v model.ReviewVisibility
	err := r.pool.QueryRow(ctx,
		`UPDATE reviews
		 SET visibility = CASE WHEN visibility = 'hidden' THEN 'visible' ELSE 'hidden' END
		 WHERE id = $1 RETURNING visibility`, id,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", pgx.ErrNoRows
		}
		return "", fmt.Errorf("toggle review visibility: %w", err)
	}
	return v, nil
}

func (r *pgReviewRepo) SetVisibility(ctx context.Context, id uuid.UUID, visibility model.ReviewVisibility) error {
	ct, err := r.pool.Exec(ctx, `UPDATE reviews SET visibility = $2 WHERE id = $1`, id, string(visibility))
	if err != nil {
		return fmt.Errorf("set review visibility: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
