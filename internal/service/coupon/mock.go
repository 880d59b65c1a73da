package coupon

import (
	"context"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// MockService — конфигурируемая заглушка купонного сервиса для локальной
// разработки и тестов.
type MockService struct {
	DiscountMinor int64
	ResolveErr    error
	Coupons       []domain.Coupon
	ListErr       error

	ResolveCalls int
	ListCalls    int
}

// NewMockService возвращает mock без купонов.
func NewMockService() *MockService {
	return &MockService{}
}

// Resolve возвращает настроенную скидку и считает вызовы.
func (m *MockService) Resolve(ctx context.Context, couponID, userID string, orderTotalMinor int64) (int64, error) {
	m.ResolveCalls++
	if m.ResolveErr != nil {
		return 0, m.ResolveErr
	}
	return m.DiscountMinor, nil
}

// ListUsable возвращает купоны, подходящие под сумму заказа.
func (m *MockService) ListUsable(ctx context.Context, userID string, orderTotalMinor int64) ([]domain.Coupon, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	usable := make([]domain.Coupon, 0, len(m.Coupons))
	for _, c := range m.Coupons {
		if orderTotalMinor >= c.MinOrderMinor {
			usable = append(usable, c)
		}
	}
	return usable, nil
}

var _ domain.CouponService = (*MockService)(nil)
