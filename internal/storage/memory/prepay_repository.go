package memory

import (
	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// prepayRepositoryInMemory — реализация PrepayRepository поверх общего Store.
type prepayRepositoryInMemory struct {
	store *Store
}

// NewPrepayRepository возвращает in-memory репозиторий платёжных намерений.
func NewPrepayRepository(store *Store) domain.PrepayRepository {
	return &prepayRepositoryInMemory{store: store}
}

// Create сохраняет новую запись намерения.
func (r *prepayRepositoryInMemory) Create(rec domain.PrepayRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prepays[rec.OrderID] = append(s.prepays[rec.OrderID], rec)
	return nil
}

// LatestByOrder возвращает последнюю запись по заказу и типу заказа.
func (r *prepayRepositoryInMemory) LatestByOrder(orderID string, orderType domain.OrderType) (domain.PrepayRecord, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.prepays[orderID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].OrderType == orderType {
			return records[i], nil
		}
	}
	return domain.PrepayRecord{}, domain.ErrPrepayNotFound
}

var _ domain.PrepayRepository = (*prepayRepositoryInMemory)(nil)
