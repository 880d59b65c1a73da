package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

const orderColumns = `
	id, order_no, user_id, order_type, delivery_type,
	pay_status, delivery_status, receipt_status, order_status,
	pay_price_minor, update_price_minor, express_fee_minor,
	coupon_id, discount_minor, transaction_id, campaign_id, is_refunded, remark,
	address_name, address_phone, address_province, address_city, address_region, address_detail,
	pay_time, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = insertOrder(ctx, tx, order); err != nil {
		return err
	}

	for _, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, goods_id, sku_id, goods_name, sku_name,
				price_minor, qty, total_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			line.ID, order.ID, line.GoodsID, line.SkuID, line.GoodsName, line.SkuName,
			line.PriceMinor, line.Qty, line.TotalMinor, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_no, user_id, order_type, delivery_type,
			pay_status, delivery_status, receipt_status, order_status,
			pay_price_minor, update_price_minor, express_fee_minor,
			coupon_id, discount_minor, transaction_id, campaign_id, is_refunded, remark,
			address_name, address_phone, address_province, address_city, address_region, address_detail,
			pay_time, version, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
		)
	`,
		order.ID, order.OrderNo, order.UserID, string(order.OrderType), string(order.DeliveryType),
		string(order.PayStatus), string(order.DeliveryStatus), string(order.ReceiptStatus), string(order.OrderStatus),
		order.PayPriceMinor, order.UpdatePriceMinor, order.ExpressFeeMinor,
		order.CouponID, order.DiscountMinor, order.TransactionID, order.CampaignID, order.IsRefunded, order.Remark,
		order.Address.Name, order.Address.Phone, order.Address.Province, order.Address.City, order.Address.Region, order.Address.Detail,
		nullableTime(order.PayTime), order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return queryOrder(ctx, r.db, `WHERE id = $1`, id)
}

func (r *orderRepository) GetByNo(orderNo string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return queryOrder(ctx, r.db, `WHERE order_no = $1`, orderNo)
}

func (r *orderRepository) ListByUser(userID string, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", userID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(ctx, r.db, rows)
}

func (r *orderRepository) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET pay_status = $1,
		    delivery_status = $2,
		    receipt_status = $3,
		    order_status = $4,
		    transaction_id = $5,
		    campaign_id = $6,
		    is_refunded = $7,
		    update_price_minor = $8,
		    pay_price_minor = $9,
		    pay_time = $10,
		    version = version + 1,
		    updated_at = $11
		WHERE id = $12
		  AND version = $13
	`,
		string(order.PayStatus), string(order.DeliveryStatus), string(order.ReceiptStatus), string(order.OrderStatus),
		order.TransactionID, order.CampaignID, order.IsRefunded,
		order.UpdatePriceMinor, order.PayPriceMinor, nullableTime(order.PayTime),
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// ListFailedCampaignOrders выбирает оплаченные невозвращённые заказы,
// переведённые в campaign_failed после неудачи акции.
func (r *orderRepository) ListFailedCampaignOrders(limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+qualifyOrderColumns("o")+`
		FROM orders o
		JOIN campaigns c ON c.id = o.campaign_id
		WHERE o.order_type = $1
		  AND o.pay_status = $2
		  AND o.order_status = $3
		  AND o.is_refunded = FALSE
		  AND c.status = $4
		ORDER BY o.created_at ASC, o.id ASC
		LIMIT $5
	`,
		string(domain.OrderTypeGroupBuy), string(domain.PayStatusPaid),
		string(domain.OrderStatusCampaignFailed), string(domain.CampaignStatusFailed),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list failed campaign orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(ctx, r.db, rows)
}

// MarkRefunded атомарно помечает заказ возвращённым и отменённым. Условие
// is_refunded = FALSE делает флаг единственной защитой от двойного возврата.
func (r *orderRepository) MarkRefunded(orderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET is_refunded = TRUE,
		    order_status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND is_refunded = FALSE
	`, string(domain.OrderStatusCancelled), orderID)
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrAlreadyRefunded
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// queryer покрывает *sql.DB и *sql.Tx для общих функций чтения.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanOrder(scanner rowScanner) (domain.Order, error) {
	var (
		order                                      domain.Order
		orderType, deliveryType, payStatus         string
		deliveryStatus, receiptStatus, orderStatus string
		payTime                                    sql.NullTime
	)

	err := scanner.Scan(
		&order.ID, &order.OrderNo, &order.UserID, &orderType, &deliveryType,
		&payStatus, &deliveryStatus, &receiptStatus, &orderStatus,
		&order.PayPriceMinor, &order.UpdatePriceMinor, &order.ExpressFeeMinor,
		&order.CouponID, &order.DiscountMinor, &order.TransactionID, &order.CampaignID, &order.IsRefunded, &order.Remark,
		&order.Address.Name, &order.Address.Phone, &order.Address.Province,
		&order.Address.City, &order.Address.Region, &order.Address.Detail,
		&payTime, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order.OrderType = domain.OrderType(orderType)
	order.DeliveryType = domain.DeliveryType(deliveryType)
	order.PayStatus = domain.PayStatus(payStatus)
	order.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)
	order.ReceiptStatus = domain.ReceiptStatus(receiptStatus)
	order.OrderStatus = domain.OrderStatus(orderStatus)
	if payTime.Valid {
		order.PayTime = payTime.Time
	}

	return order, nil
}

func queryOrder(ctx context.Context, db *sql.DB, where string, arg any) (domain.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := loadLines(ctx, db, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func collectOrders(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		lines, err := loadLines(ctx, db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}

	return orders, nil
}

func loadLines(ctx context.Context, q queryer, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, goods_id, sku_id, goods_name, sku_name,
		       price_minor, qty, total_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.GoodsID, &line.SkuID, &line.GoodsName, &line.SkuName,
			&line.PriceMinor, &line.Qty, &line.TotalMinor, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// qualifyOrderColumns добавляет алиас таблицы к списку колонок заказа.
func qualifyOrderColumns(alias string) string {
	out := ""
	for i, col := range strings.Split(orderColumns, ",") {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + strings.TrimSpace(col)
	}
	return out
}

var _ domain.OrderRepository = (*orderRepository)(nil)
