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

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	List(ctx context.Context, filter model.ListingFilter, page model.Page) ([]model.Listing, int, error)
	AlmostSoldOut(ctx context.Context, limit int) ([]model.ListingSummary, error)
	BestSellers(ctx context.Context, minReviews, limit int) ([]model.ListingSummary, error)
	Brands(ctx context.Context) ([]string, error)
	Update(ctx context.Context, listing *model.Listing) error
	SetStatus(ctx context.Context, id uuid.UUID, status model.ListingStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DecrementStock subtracts quantity only when enough stock remains.
	// It reports false when the guard rejected the update.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type pgListingRepo struct{ pool *pgxpool.Pool }

func NewListingRepository(pool *pgxpool.Pool) ListingRepository {
	return &pgListingRepo{pool: pool}
}

const listingColumns = `id, title, brand, image, price, stock, seller_id, status, created_at, updated_at`

func scanListing(row pgx.Row) (*model.Listing, error) {
	l := &model.Listing{}
	err := row.Scan(
		&l.ID, &l.Title, &l.Brand, &l.Image, &l.Price, &l.Stock,
		&l.SellerID, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *pgListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	listing.ID = uuid.New()
	if listing.Status == "" {
		listing.Status = model.ListingStatusActive
	}
	query := `INSERT INTO listings (id, title, brand, image, price, stock, seller_id, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		listing.ID, listing.Title, listing.Brand, listing.Image, listing.Price,
		listing.Stock, listing.SellerID, listing.Status,
	).Scan(&listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (r *pgListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	l, err := scanListing(r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *pgListingRepo) List(ctx context.Context, filter model.ListingFilter, page model.Page) ([]model.Listing, int, error) {
	sort := sortColumn(page.Sort, map[string]string{
		"title": "title", "brand": "brand", "price": "price",
		"stock": "stock", "createdAt": "created_at",
	}, "created_at")
	order := sortOrder(page.Order)

	where := `WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%')
			  AND ($2 = '' OR brand = $2)
			  AND ($3 = '' OR title ILIKE '%' || $3 || '%')
			  AND ($4::numeric <= 0 OR price <= $4)
			  AND ($5::uuid IS NULL OR seller_id = $5)
			  AND ($6 = '' OR status = $6)`
	args := []any{filter.Search, filter.Brand, filter.Title, filter.MaxPrice, filter.SellerID, string(filter.Status)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY %s %s LIMIT $7 OFFSET $8`, listingColumns, where, sort, order)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, total, rows.Err()
}

func (r *pgListingRepo) AlmostSoldOut(ctx context.Context, limit int) ([]model.ListingSummary, error) {
	return r.summaries(ctx, "almost sold out",
		`SELECT id, title, brand, image, price, stock, 0::float8
		 FROM listings WHERE status = 'active' AND stock > 0
		 ORDER BY stock ASC, created_at ASC LIMIT $1`, limit)
}

func (r *pgListingRepo) BestSellers(ctx context.Context, minReviews, limit int) ([]model.ListingSummary, error) {
	return r.summaries(ctx, "best sellers",
		`SELECT l.id, l.title, l.brand, l.image, l.price, l.stock, AVG(rv.rating)::float8 AS avg_rating
		 FROM listings l JOIN reviews rv ON rv.listing_id = l.id
		 WHERE l.status = 'active'
		 GROUP BY l.id
		 HAVING COUNT(rv.id) >= $1
		 ORDER BY avg_rating DESC, l.created_at ASC LIMIT $2`, minReviews, limit)
}

func (r *pgListingRepo) summaries(ctx context.Context, op, query string, args ...any) ([]model.ListingSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []model.ListingSummary
	for rows.Next() {
		var s model.ListingSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Brand, &s.Image, &s.Price, &s.Stock, &s.AvgRating); err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgListingRepo) Brands(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT brand FROM listings ORDER BY brand`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	brands := []string{}
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (r *pgListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	query := `UPDATE listings SET title=$2, brand=$3, image=$4, price=$5, stock=$6, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		listing.ID, listing.Title, listing.Brand, listing.Image, listing.Price, listing.Stock,
	).Scan(&listing.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (r *pgListingRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.ListingStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE listings SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set listing status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgListingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgListingRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE listings SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
		id, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *pgListingRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE listings SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, id, quantity,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}
