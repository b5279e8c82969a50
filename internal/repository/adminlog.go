package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/phone-marketplace/internal/model"
)

type AdminLogRepository interface {
	Create(ctx context.Context, entry *model.AdminLog) error
	List(ctx context.Context, filter model.AdminLogFilter, page model.Page) ([]model.AdminLog, int, error)
}

type pgAdminLogRepo struct{ pool *pgxpool.Pool }

func NewAdminLogRepository(pool *pgxpool.Pool) AdminLogRepository {
	return &pgAdminLogRepo{pool: pool}
}

func (r *pgAdminLogRepo) Create(ctx context.Context, entry *model.AdminLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	details := entry.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO admin_logs (id, admin_id, admin_name, action, target_type, target_id, details, ip_address, user_agent, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW())) RETURNING timestamp`,
		entry.ID, entry.AdminID, entry.AdminName, entry.Action, entry.TargetType, entry.TargetID,
		string(details), entry.IPAddress, entry.UserAgent, nullTime(entry.Timestamp),
	).Scan(&entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert admin log: %w", err)
	}
	return nil
}

func (r *pgAdminLogRepo) List(ctx context.Context, filter model.AdminLogFilter, page model.Page) ([]model.AdminLog, int, error) {
	order := sortOrder(page.Order)
	where := `WHERE ($1 = '' OR action = $1)
			  AND ($2 = '' OR target_type = $2)
			  AND ($3::uuid IS NULL OR admin_id = $3)`
	args := []any{filter.Action, filter.TargetType, filter.AdminID}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin logs: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, admin_id, admin_name, action, target_type, target_id, details::text,
			ip_address, user_agent, timestamp
		FROM admin_logs %s ORDER BY timestamp %s, id LIMIT $4 OFFSET $5`, where, order)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admin logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AdminLog
	for rows.Next() {
		var (
			l       model.AdminLog
			details string
		)
		if err := rows.Scan(&l.ID, &l.AdminID, &l.AdminName, &l.Action, &l.TargetType, &l.TargetID,
			&details, &l.IPAddress, &l.UserAgent, &l.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan admin log: %w", err)
		}
		l.Details = []byte(details)
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
