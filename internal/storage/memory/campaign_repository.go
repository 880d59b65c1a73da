package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// campaignRepositoryInMemory — реализация CampaignRepository поверх общего Store.
type campaignRepositoryInMemory struct {
	store *Store
}

// NewCampaignRepository возвращает in-memory репозиторий групповых акций.
func NewCampaignRepository(store *Store) domain.CampaignRepository {
	return &campaignRepositoryInMemory{store: store}
}

// Get возвращает акцию или ErrCampaignNotFound, если её нет.
func (r *campaignRepositoryInMemory) Get(id string) (domain.Campaign, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return cloneCampaign(campaign), nil
}

// ListByStatus возвращает акции в указанном состоянии.
func (r *campaignRepositoryInMemory) ListByStatus(status domain.CampaignStatus, limit int) ([]domain.Campaign, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Campaign, 0)
	for _, campaign := range s.campaigns {
		if campaign.Status != status {
			continue
		}
		result = append(result, cloneCampaign(campaign))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// MarkFailed переводит pending-акцию в failed вместе с её оплаченными активными
// заказами: они получают статус campaign_failed и ждут возврата.
// Терминальные состояния не перезаписываются: опоздавший планировщик
// не отменит успех.
func (r *campaignRepositoryInMemory) MarkFailed(id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	campaign, ok := s.campaigns[id]
	if !ok {
		return domain.ErrCampaignNotFound
	}
	if campaign.Status.Terminal() {
		return domain.ErrCampaignClosed
	}

	now := time.Now().UTC()
	campaign.Status = domain.CampaignStatusFailed
	campaign.UpdatedAt = now
	campaign.Version++
	s.campaigns[id] = campaign

	for orderID, order := range s.orders {
		if order.CampaignID != id || order.OrderStatus != domain.OrderStatusActive {
			continue
		}
		if order.PayStatus != domain.PayStatusPaid {
			continue
		}
		order.OrderStatus = domain.OrderStatusCampaignFailed
		order.UpdatedAt = now
		order.Version++
		s.orders[orderID] = order
	}
	return nil
}

var _ domain.CampaignRepository = (*campaignRepositoryInMemory)(nil)
