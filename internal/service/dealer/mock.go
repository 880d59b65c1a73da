package dealer

import (
	"context"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// MockService — конфигурируемая заглушка дилерской программы для локальной
// разработки и тестов.
type MockService struct {
	TriggerGoodsIDs map[string]bool // покупка этих товаров делает дилером
	Err             error

	EnrollCalls     int
	EnrolledUserIDs []string
}

// NewMockService возвращает mock без товаров-триггеров.
func NewMockService() *MockService {
	return &MockService{TriggerGoodsIDs: make(map[string]bool)}
}

// MaybeEnroll записывает пользователя в дилеры, если в заказе есть
// товар-триггер, и считает вызовы.
func (m *MockService) MaybeEnroll(ctx context.Context, userID string, goodsIDs []string) (bool, error) {
	m.EnrollCalls++
	if m.Err != nil {
		return false, m.Err
	}

	for _, goodsID := range goodsIDs {
		if m.TriggerGoodsIDs[goodsID] {
			m.EnrolledUserIDs = append(m.EnrolledUserIDs, userID)
			return true, nil
		}
	}
	return false, nil
}

var _ domain.DealerService = (*MockService)(nil)
