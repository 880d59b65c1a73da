package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// orderRepositoryInMemory — реализация OrderRepository поверх общего Store.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет новый заказ, если ID и OrderNo ещё не заняты.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	if _, exists := s.orderNoIdx[order.OrderNo]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	s.orders[order.ID] = cloneOrder(order)
	s.orderNoIdx[order.OrderNo] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByNo возвращает заказ по внешнему номеру.
func (r *orderRepositoryInMemory) GetByNo(orderNo string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.orderNoIdx[orderNo]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(s.orders[id]), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByUser(userID string, limit int) ([]domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(order domain.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order.Version++
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

// ListFailedCampaignOrders выбирает оплаченные невозвращённые заказы,
// переведённые в campaign_failed после неудачи акции.
func (r *orderRepositoryInMemory) ListFailedCampaignOrders(limit int) ([]domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.OrderType != domain.OrderTypeGroupBuy || order.PayStatus != domain.PayStatusPaid {
			continue
		}
		if order.IsRefunded || order.OrderStatus != domain.OrderStatusCampaignFailed {
			continue
		}
		campaign, ok := s.campaigns[order.CampaignID]
		if !ok || campaign.Status != domain.CampaignStatusFailed {
			continue
		}
		result = append(result, cloneOrder(order))
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

// MarkRefunded атомарно помечает заказ возвращённым и отменённым.
// Повторный вызов возвращает ErrAlreadyRefunded: флаг служит единственной
// защитой от двойного возврата.
func (r *orderRepositoryInMemory) MarkRefunded(orderID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.IsRefunded {
		return domain.ErrAlreadyRefunded
	}

	order.IsRefunded = true
	order.OrderStatus = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	order.Version++
	s.orders[orderID] = order
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
