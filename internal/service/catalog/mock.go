package catalog

import (
	"context"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// MockService — конфигурируемая заглушка CatalogService для локальной
// разработки и тестов. Каталог недоступен как отдельный сервис, поэтому
// витрина задаётся напрямую.
type MockService struct {
	Items          map[string]domain.GoodsInfo // по SkuRef.Key()
	GroupRules     map[string]int              // goodsID -> требуемое число участников
	GoodsBySkusErr error
	IsListedErr    error
	GroupRuleErr   error

	GoodsBySkusCalls int
	IsListedCalls    int
	GroupRuleCalls   int
}

// NewMockService возвращает mock с пустой витриной.
func NewMockService() *MockService {
	return &MockService{
		Items:      make(map[string]domain.GoodsInfo),
		GroupRules: make(map[string]int),
	}
}

// AddGoods добавляет sku на витрину.
func (m *MockService) AddGoods(info domain.GoodsInfo) {
	key := domain.SkuRef{GoodsID: info.GoodsID, SkuID: info.SkuID}.Key()
	m.Items[key] = info
}

// GoodsBySkus возвращает данные витрины по запрошенным ссылкам.
// Отсутствующие ключи опускаются, как это делает живой каталог.
func (m *MockService) GoodsBySkus(ctx context.Context, refs []domain.SkuRef) (map[string]domain.GoodsInfo, error) {
	m.GoodsBySkusCalls++
	if m.GoodsBySkusErr != nil {
		return nil, m.GoodsBySkusErr
	}

	result := make(map[string]domain.GoodsInfo, len(refs))
	for _, ref := range refs {
		if info, ok := m.Items[ref.Key()]; ok {
			result[ref.Key()] = info
		}
	}
	return result, nil
}

// IsListed сообщает, продаётся ли товар: достаточно одного листингового sku.
func (m *MockService) IsListed(ctx context.Context, goodsID string) (bool, error) {
	m.IsListedCalls++
	if m.IsListedErr != nil {
		return false, m.IsListedErr
	}

	for _, info := range m.Items {
		if info.GoodsID == goodsID && info.IsListed {
			return true, nil
		}
	}
	return false, nil
}

// GroupBuyRule возвращает порог участников групповой акции товара.
func (m *MockService) GroupBuyRule(ctx context.Context, goodsID string) (int, error) {
	m.GroupRuleCalls++
	if m.GroupRuleErr != nil {
		return 0, m.GroupRuleErr
	}
	if rule, ok := m.GroupRules[goodsID]; ok {
		return rule, nil
	}
	return 2, nil
}

var _ domain.CatalogService = (*MockService)(nil)
