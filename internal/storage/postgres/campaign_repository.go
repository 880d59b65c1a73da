package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository создаёт PostgreSQL-реализацию CampaignRepository.
func NewCampaignRepository(store *Store) domain.CampaignRepository {
	return &campaignRepository{db: store.DB()}
}

func (r *campaignRepository) Get(id string) (domain.Campaign, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, `
		SELECT id, initiator_order_id, goods_id, required_members, status,
		       expires_at, version, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Campaign{}, domain.ErrCampaignNotFound
		}
		return domain.Campaign{}, fmt.Errorf("select campaign: %w", err)
	}

	members, err := loadMembers(ctx, r.db, campaign.ID)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaign.MemberOrderIDs = members

	return campaign, nil
}

func (r *campaignRepository) ListByStatus(status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, initiator_order_id, goods_id, required_members, status,
		       expires_at, version, created_at, updated_at
		FROM campaigns
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", string(status), limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]domain.Campaign, 0)
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}

	for i := range campaigns {
		members, err := loadMembers(ctx, r.db, campaigns[i].ID)
		if err != nil {
			return nil, err
		}
		campaigns[i].MemberOrderIDs = members
	}

	return campaigns, nil
}

// MarkFailed переводит pending-акцию в failed вместе с её оплаченными активными
// заказами: они получают статус campaign_failed одной транзакцией.
// Терминальные состояния не перезаписываются: опоздавший планировщик
// не отменит успех.
func (r *campaignRepository) MarkFailed(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark-failed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE campaigns
		SET status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $2
		  AND status = $3
	`, string(domain.CampaignStatusFailed), id, string(domain.CampaignStatusPending))
	if err != nil {
		return fmt.Errorf("mark campaign failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCampaignNotFound
		}
		if err != nil {
			return fmt.Errorf("check campaign status: %w", err)
		}
		return domain.ErrCampaignClosed
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $1,
		    version = version + 1,
		    updated_at = NOW()
		WHERE campaign_id = $2
		  AND order_status = $3
		  AND pay_status = $4
	`, string(domain.OrderStatusCampaignFailed), id, string(domain.OrderStatusActive),
		string(domain.PayStatusPaid))
	if err != nil {
		return fmt.Errorf("mark campaign orders failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark-failed tx: %w", err)
	}
	return nil
}

func scanCampaign(scanner rowScanner) (domain.Campaign, error) {
	var (
		campaign domain.Campaign
		status   string
	)
	err := scanner.Scan(
		&campaign.ID, &campaign.InitiatorOrderID, &campaign.GoodsID, &campaign.RequiredMembers, &status,
		&campaign.ExpiresAt, &campaign.Version, &campaign.CreatedAt, &campaign.UpdatedAt,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	campaign.Status = domain.CampaignStatus(status)
	return campaign, nil
}

func loadMembers(ctx context.Context, q queryer, campaignID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id
		FROM campaign_members
		WHERE campaign_id = $1
		ORDER BY joined_at ASC, order_id ASC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign members: %w", err)
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("scan campaign member: %w", err)
		}
		members = append(members, orderID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign members: %w", err)
	}

	return members, nil
}

var _ domain.CampaignRepository = (*campaignRepository)(nil)
