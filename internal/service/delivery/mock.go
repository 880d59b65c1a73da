package delivery

import (
	"context"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// MockService — конфигурируемая заглушка правил доставки для локальной
// разработки и тестов.
type MockService struct {
	Serviceable     bool
	UnservedGoodsID string
	FeeMinor        int64
	ServiceableErr  error
	FeeErr          error

	ServiceableCalls int
	FeeCalls         int
}

// NewMockService возвращает mock, доставляющий всё бесплатно.
func NewMockService() *MockService {
	return &MockService{Serviceable: true}
}

// IsServiceable возвращает заранее настроенный результат и считает вызовы.
func (m *MockService) IsServiceable(ctx context.Context, cityID string, goodsIDs []string) (bool, string, error) {
	m.ServiceableCalls++
	if m.ServiceableErr != nil {
		return false, "", m.ServiceableErr
	}
	if !m.Serviceable {
		unserved := m.UnservedGoodsID
		if unserved == "" && len(goodsIDs) > 0 {
			unserved = goodsIDs[0]
		}
		return false, unserved, nil
	}
	return true, "", nil
}

// ComputeFee возвращает настроенную стоимость доставки.
func (m *MockService) ComputeFee(ctx context.Context, cityID string, totalMinor int64) (int64, error) {
	m.FeeCalls++
	if m.FeeErr != nil {
		return 0, m.FeeErr
	}
	return m.FeeMinor, nil
}

var _ domain.DeliveryRuleService = (*MockService)(nil)
