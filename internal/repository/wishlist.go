package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/phone-marketplace/internal/model"
)

type WishlistRepository interface {
	Add(ctx context.Context, userID, listingID uuid.UUID) error
	Remove(ctx context.Context, userID, listingID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]model.ListingSummary, error)
}

type pgWishlistRepo struct{ pool *pgxpool.Pool }

func NewWishlistRepository(pool *pgxpool.Pool) WishlistRepository {
	return &pgWishlistRepo{pool: pool}
}

func (r *pgWishlistRepo) Add(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO wishlist_items (user_id, listing_id, created_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, listing_id) DO NOTHING`, userID, listingID,
	)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (r *pgWishlistRepo) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

func (r *pgWishlistRepo) List(ctx context.Context, userID uuid.UUID) ([]model.ListingSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.title, l.brand, l.image, l.price, l.stock
		 FROM wishlist_items w JOIN listings l ON l.id = w.listing_id
		 WHERE w.user_id = $1 ORDER BY w.created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var out []model.ListingSummary
	for rows.Next() {
		var s model.ListingSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Brand, &s.Image, &s.Price, &s.Stock); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
