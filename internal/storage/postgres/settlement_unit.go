package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

const (
	maxSettlementAttempts = 3
	settlementRetryDelay  = 50 * time.Millisecond
)

// settlementUnit исполняет расчёт в сериализуемой транзакции PostgreSQL.
// Конфликты сериализации перезапускаются ограниченное число раз; бизнес-ошибки
// откатывают транзакцию без повтора.
type settlementUnit struct {
	db     *sql.DB
	logger *log.Entry
}

// NewSettlementUnit возвращает единицу атомарного расчёта поверх PostgreSQL.
func NewSettlementUnit(store *Store, logger *log.Entry) domain.SettlementUnit {
	if logger == nil {
		logger = log.WithField("component", "settlement-unit")
	}
	return &settlementUnit{db: store.DB(), logger: logger}
}

func (u *settlementUnit) WithinSettlement(ctx context.Context, orderNo string, fn func(tx domain.SettlementTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxSettlementAttempts; attempt++ {
		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableTxError(err) {
			return err
		}

		lastErr = err
		u.logger.WithError(err).WithFields(log.Fields{
			"order_no": orderNo,
			"attempt":  attempt,
		}).Warn("settlement tx serialization conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlementRetryDelay * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("settlement retries exhausted: %w", lastErr)
}

func (u *settlementUnit) runOnce(ctx context.Context, fn func(tx domain.SettlementTx) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}

	stx := &settlementTx{ctx: ctx, tx: tx}
	if err := fn(stx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement tx: %w", err)
	}
	return nil
}

// settlementTx реализует операции расчёта внутри одной транзакции.
type settlementTx struct {
	ctx context.Context
	tx  *sql.Tx
}

// OrderByNo читает заказ с блокировкой строки: конкурентные расчёты одного
// заказа выстраиваются в очередь уже на этом шаге.
func (t *settlementTx) OrderByNo(orderNo string) (domain.Order, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_no = $1
		FOR UPDATE
	`, orderNo)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order for settlement: %w", err)
	}

	lines, err := loadLines(t.ctx, t.tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (t *settlementTx) AdjustStockSales(lines []domain.OrderLine) error {
	for _, line := range lines {
		res, err := t.tx.ExecContext(t.ctx, `
			UPDATE goods_sku
			SET stock_num = stock_num - $1,
			    sales_num = sales_num + $1
			WHERE goods_id = $2
			  AND sku_id = $3
			  AND stock_num >= $1
		`, line.Qty, line.GoodsID, line.SkuID)
		if err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Строки нет либо остатка не хватает: исход для расчёта одинаков.
			return domain.ErrInsufficientStock
		}
	}
	return nil
}

func (t *settlementTx) SaveOrderPaid(order domain.Order) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE orders
		SET pay_status = $1,
		    pay_time = $2,
		    transaction_id = $3,
		    campaign_id = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		string(order.PayStatus), nullableTime(order.PayTime), order.TransactionID, order.CampaignID,
		order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("save order paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderVersionConflict
	}
	return nil
}

func (t *settlementTx) AccrueUserSpend(userID string, amountMinor int64) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO user_spend (user_id, total_minor, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_minor = user_spend.total_minor + EXCLUDED.total_minor,
		    updated_at = NOW()
	`, userID, amountMinor)
	if err != nil {
		return fmt.Errorf("accrue user spend: %w", err)
	}
	return nil
}

func (t *settlementTx) ConsumePrepay(orderID string, orderType domain.OrderType) (domain.PrepayRecord, error) {
	rec, err := scanPrepay(t.tx.QueryRowContext(t.ctx, `
		SELECT token, order_id, user_id, order_type, pay_status, usable_times, created_at, updated_at
		FROM prepay_records
		WHERE order_id = $1
		  AND order_type = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE
	`, orderID, string(orderType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PrepayRecord{}, domain.ErrPrepayNotFound
		}
		return domain.PrepayRecord{}, fmt.Errorf("select prepay for settlement: %w", err)
	}

	if rec.PayStatus == domain.PrepayStatusUsed {
		return domain.PrepayRecord{}, domain.ErrPrepayAlreadyUsed
	}

	now := time.Now().UTC()
	if _, err := t.tx.ExecContext(t.ctx, `
		UPDATE prepay_records
		SET pay_status = $1,
		    usable_times = $2,
		    updated_at = $3
		WHERE token = $4
	`, string(domain.PrepayStatusUsed), domain.PrepayUsableTimes, now, rec.Token); err != nil {
		return domain.PrepayRecord{}, fmt.Errorf("consume prepay: %w", err)
	}

	rec.PayStatus = domain.PrepayStatusUsed
	rec.UsableTimes = domain.PrepayUsableTimes
	rec.UpdatedAt = now
	return rec, nil
}

func (t *settlementTx) CreateCampaign(c domain.Campaign) (domain.Campaign, error) {
	if _, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO campaigns (
			id, initiator_order_id, goods_id, required_members, status,
			expires_at, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		c.ID, c.InitiatorOrderID, c.GoodsID, c.RequiredMembers, string(c.Status),
		c.ExpiresAt, c.Version, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return domain.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}

	for _, orderID := range c.MemberOrderIDs {
		if err := t.insertMember(c.ID, orderID); err != nil {
			return domain.Campaign{}, err
		}
	}

	return c, nil
}

// JoinCampaign добавляет участника под блокировкой строки акции: сравнение
// числа участников с порогом и перевод в succeeded неделимы.
func (t *settlementTx) JoinCampaign(campaignID, orderID string) (domain.Campaign, error) {
	campaign, err := scanCampaign(t.tx.QueryRowContext(t.ctx, `
		SELECT id, initiator_order_id, goods_id, required_members, status,
		       expires_at, version, created_at, updated_at
		FROM campaigns
		WHERE id = $1
		FOR UPDATE
	`, campaignID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, fmt.Errorf("select campaign for join: %w", err)
	}

	if campaign.Status != domain.CampaignStatusPending {
		return domain.Campaign{}, domain.ErrCampaignClosed
	}

	if err := t.insertMember(campaignID, orderID); err != nil {
		return domain.Campaign{}, err
	}

	members, err := loadMembers(t.ctx, t.tx, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaign.MemberOrderIDs = members

	now := time.Now().UTC()
	newStatus := campaign.Status
	if len(members) >= campaign.RequiredMembers {
		newStatus = domain.CampaignStatusSucceeded
	}

	if _, err := t.tx.ExecContext(t.ctx, `
		UPDATE campaigns
		SET status = $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
	`, string(newStatus), now, campaignID); err != nil {
		return domain.Campaign{}, fmt.Errorf("update campaign after join: %w", err)
	}

	campaign.Status = newStatus
	campaign.Version++
	campaign.UpdatedAt = now
	return campaign, nil
}

func (t *settlementTx) insertMember(campaignID, orderID string) error {
	if _, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO campaign_members (campaign_id, order_id, joined_at)
		VALUES ($1, $2, NOW())
	`, campaignID, orderID); err != nil {
		if isUniqueViolation(err) {
			// Заказ уже в акции; для расчёта это не ошибка.
			return nil
		}
		return fmt.Errorf("insert campaign member: %w", err)
	}
	return nil
}

var (
	_ domain.SettlementUnit = (*settlementUnit)(nil)
	_ domain.SettlementTx   = (*settlementTx)(nil)
)
