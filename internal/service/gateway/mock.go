package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// MockGateway — конфигурируемая заглушка платёжного шлюза для локальной
// разработки и тестов. Токены намерений генерируются последовательно.
type MockGateway struct {
	mu sync.Mutex

	CreateIntentErr error
	RefundErr       error

	CreateIntentCalls int
	RefundCalls       int
	RefundedTxIDs     []string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// CreateIntent возвращает детерминированный prepay-токен и считает вызовы.
func (m *MockGateway) CreateIntent(ctx context.Context, orderNo, payerRef string, amountMinor int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateIntentCalls++
	if m.CreateIntentErr != nil {
		return "", m.CreateIntentErr
	}
	return fmt.Sprintf("prepay-%s-%d", orderNo, m.CreateIntentCalls), nil
}

// Refund возвращает настроенную ошибку и запоминает транзакции возвратов.
func (m *MockGateway) Refund(ctx context.Context, transactionID string, amountMinor int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefundCalls++
	if m.RefundErr != nil {
		return m.RefundErr
	}
	m.RefundedTxIDs = append(m.RefundedTxIDs, transactionID)
	return nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
