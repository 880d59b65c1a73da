package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

type prepayRepository struct {
	db *sql.DB
}

// NewPrepayRepository создаёт PostgreSQL-реализацию PrepayRepository.
func NewPrepayRepository(store *Store) domain.PrepayRepository {
	return &prepayRepository{db: store.DB()}
}

func (r *prepayRepository) Create(rec domain.PrepayRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO prepay_records (
			token, order_id, user_id, order_type, pay_status, usable_times, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		rec.Token, rec.OrderID, rec.UserID, string(rec.OrderType),
		string(rec.PayStatus), rec.UsableTimes, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prepay record: %w", err)
	}
	return nil
}

func (r *prepayRepository) LatestByOrder(orderID string, orderType domain.OrderType) (domain.PrepayRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rec, err := scanPrepay(r.db.QueryRowContext(ctx, `
		SELECT token, order_id, user_id, order_type, pay_status, usable_times, created_at, updated_at
		FROM prepay_records
		WHERE order_id = $1
		  AND order_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID, string(orderType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PrepayRecord{}, domain.ErrPrepayNotFound
		}
		return domain.PrepayRecord{}, fmt.Errorf("select prepay record: %w", err)
	}
	return rec, nil
}

func scanPrepay(scanner rowScanner) (domain.PrepayRecord, error) {
	var (
		rec       domain.PrepayRecord
		orderType string
		payStatus string
	)
	err := scanner.Scan(
		&rec.Token, &rec.OrderID, &rec.UserID, &orderType,
		&payStatus, &rec.UsableTimes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.PrepayRecord{}, err
	}
	rec.OrderType = domain.OrderType(orderType)
	rec.PayStatus = domain.PrepayStatus(payStatus)
	return rec, nil
}

var _ domain.PrepayRepository = (*prepayRepository)(nil)
