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

type TransactionRepository interface {
	// Create stores the transaction header and its item snapshots as one unit.
	Create(ctx context.Context, txn *model.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TransactionEntry, error)
	List(ctx context.Context, filter model.TransactionFilter, page model.Page) ([]model.TransactionEntry, int, error)
}

type pgTransactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &pgTransactionRepo{pool: pool}
}

func (r *pgTransactionRepo) Create(ctx context.Context, txn *model.Transaction) error {
	txn.ID = uuid.New()
	if txn.Status == "" {
		txn.Status = model.TransactionStatusCompleted
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (id, buyer_id, total_amount, status, timestamp, created_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), NOW()) RETURNING timestamp, created_at`,
		txn.ID, txn.BuyerID, txn.TotalAmount, string(txn.Status), nullTime(txn.Timestamp),
	).Scan(&txn.Timestamp, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i, item := range txn.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO transaction_items (transaction_id, position, listing_id, title, price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			txn.ID, i, item.ListingID, item.Title, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert transaction item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *pgTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.TransactionEntry, error) {
	e := &model.TransactionEntry{}
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.buyer_id, t.total_amount, t.status, t.timestamp, t.created_at,
		        COALESCE(u.first_name || ' ' || u.last_name, ''), COALESCE(u.email, '')
		 FROM transactions t LEFT JOIN users u ON u.id = t.buyer_id
		 WHERE t.id = $1`, id,
	).Scan(&e.ID, &e.BuyerID, &e.TotalAmount, &e.Status, &e.Timestamp, &e.CreatedAt, &e.BuyerName, &e.BuyerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	items, err := r.items(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	e.Items = items[id]
	return e, nil
}

func (r *pgTransactionRepo) List(ctx context.Context, filter model.TransactionFilter, page model.Page) ([]model.TransactionEntry, int, error) {
	sort := sortColumn(page.Sort, map[string]string{
		"timestamp": "t.timestamp", "totalAmount": "t.total_amount", "status": "t.status",
	}, "t.timestamp")
	order := sortOrder(page.Order)

	from := `FROM transactions t LEFT JOIN users u ON u.id = t.buyer_id
			 WHERE ($1 = '' OR t.status = $1)
			   AND ($2::timestamptz IS NULL OR t.timestamp >= $2)
			   AND ($3::timestamptz IS NULL OR t.timestamp <= $3)
			   AND ($4::uuid IS NULL OR t.buyer_id = $4)
			   AND ($5 = ''
			        OR u.email ILIKE '%' || $5 || '%'
			        OR (u.first_name || ' ' || u.last_name) ILIKE '%' || $5 || '%'
			        OR EXISTS (SELECT 1 FROM transaction_items ti
			                   WHERE ti.transaction_id = t.id AND ti.title ILIKE '%' || $5 || '%'))`
	args := []any{string(filter.Status), filter.From, filter.To, filter.BuyerID, filter.Search}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := fmt.Sprintf(`SELECT t.id, t.buyer_id, t.total_amount, t.status, t.timestamp, t.created_at,
			COALESCE(u.first_name || ' ' || u.last_name, ''), COALESCE(u.email, '')
		%s ORDER BY %s %s, t.id LIMIT $6 OFFSET $7`, from, sort, order)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var (
		entries []model.TransactionEntry
		ids     []uuid.UUID
	)
	for rows.Next() {
		var e model.TransactionEntry
		if err := rows.Scan(&e.ID, &e.BuyerID, &e.TotalAmount, &e.Status, &e.Timestamp, &e.CreatedAt,
			&e.BuyerName, &e.BuyerEmail); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range entries {
		entries[i].Items = items[entries[i].ID]
	}
	return entries, total, nil
}

func (r *pgTransactionRepo) items(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.TransactionItem, error) {
	out := make(map[uuid.UUID][]model.TransactionItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT transaction_id, listing_id, title, price, quantity
		 FROM transaction_items WHERE transaction_id = ANY($1) ORDER BY transaction_id, position`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txnID uuid.UUID
			item  model.TransactionItem
		)
		if err := rows.Scan(&txnID, &item.ListingID, &item.Title, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan transaction item: %w", err)
		}
		out[txnID] = append(out[txnID], item)
	}
	return out, rows.Err()
}
