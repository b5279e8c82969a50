package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/phone-marketplace/internal/model"
)

type CartRepository interface {
	// GetItems returns every stored line joined with its listing. Lines whose
	// listing no longer exists come back with Resolved=false.
	GetItems(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error)
	GetLine(ctx context.Context, userID, listingID uuid.UUID) (*model.CartLine, error)
	// AddItem merges quantity into an existing line and returns the new total.
	AddItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (int, error)
	SetQuantity(ctx context.Context, userID, listingID uuid.UUID, quantity int) (bool, error)
	RemoveItem(ctx context.Context, userID, listingID uuid.UUID) error
	RemoveItems(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetItems(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ci.listing_id, ci.quantity, l.id IS NOT NULL,
		        COALESCE(l.title, ''), COALESCE(l.image, ''), COALESCE(l.price, 0), COALESCE(l.stock, 0)
		 FROM cart_items ci LEFT JOIN listings l ON l.id = ci.listing_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.created_at, ci.listing_id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var (
			item  model.CartItem
			price decimal.Decimal
		)
		if err := rows.Scan(&item.ListingID, &item.Quantity, &item.Resolved,
			&item.Title, &item.Image, &price, &item.Stock); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Price = price
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgCartRepo) GetLine(ctx context.Context, userID, listingID uuid.UUID) (*model.CartLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT listing_id, quantity FROM cart_items WHERE user_id = $1 AND listing_id = $2`, userID, listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	line := &model.CartLine{}
	if err := rows.Scan(&line.ListingID, &line.Quantity); err != nil {
		return nil, fmt.Errorf("scan cart line: %w", err)
	}
	return line, nil
}

func (r *pgCartRepo) AddItem(ctx context.Context, userID, listingID uuid.UUID, quantity int) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, listing_id, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (user_id, listing_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING quantity`,
		userID, listingID, quantity,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add cart item: %w", err)
	}
	return total, nil
}

func (r *pgCartRepo) SetQuantity(ctx context.Context, userID, listingID uuid.UUID, quantity int) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3, updated_at = NOW() WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("update cart item: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgCartRepo) RemoveItem(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) RemoveItems(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID) error {
	if len(listingIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND listing_id = ANY($2)`, userID, listingIDs)
	if err != nil {
		return fmt.Errorf("prune cart items: %w", err)
	}
	return nil
}

func (r *pgCartRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
