package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// skuState — остаток и счётчик продаж одного sku.
type skuState struct {
	Stock int32
	Sales int32
}

// Store — общее in-memory состояние магазина для локальной разработки и
// тестов. Все репозитории и единица расчёта делят один mutex, поэтому
// расчёт видит согласованный срез данных.
type Store struct {
	mu sync.RWMutex

	orders      map[string]domain.Order // по ID
	orderNoIdx  map[string]string       // orderNo -> ID
	campaigns   map[string]domain.Campaign
	prepays     map[string][]domain.PrepayRecord // по OrderID, в порядке создания
	stock       map[string]skuState              // по SkuRef.Key()
	userSpend   map[string]int64
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		orders:     make(map[string]domain.Order),
		orderNoIdx: make(map[string]string),
		campaigns:  make(map[string]domain.Campaign),
		prepays:    make(map[string][]domain.PrepayRecord),
		stock:      make(map[string]skuState),
		userSpend:  make(map[string]int64),
	}
}

// SeedStock задаёт начальный остаток sku. Используется при старте с
// in-memory бэкендом и в тестах.
func (s *Store) SeedStock(goodsID, skuID string, stock int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.SkuRef{GoodsID: goodsID, SkuID: skuID}.Key()
	state := s.stock[key]
	state.Stock = stock
	s.stock[key] = state
}

// StockOf возвращает текущий остаток и продажи sku.
func (s *Store) StockOf(goodsID, skuID string) (stock, sales int32) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := s.stock[domain.SkuRef{GoodsID: goodsID, SkuID: skuID}.Key()]
	return state.Stock, state.Sales
}

// UserSpend возвращает накопленные траты пользователя.
func (s *Store) UserSpend(userID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userSpend[userID]
}

// cloneOrder возвращает независимую копию заказа вместе с позициями.
func cloneOrder(o domain.Order) domain.Order {
	out := o
	if len(o.Lines) > 0 {
		out.Lines = make([]domain.OrderLine, len(o.Lines))
		copy(out.Lines, o.Lines)
	}
	return out
}

// cloneCampaign возвращает независимую копию акции вместе со списком участников.
func cloneCampaign(c domain.Campaign) domain.Campaign {
	out := c
	if len(c.MemberOrderIDs) > 0 {
		out.MemberOrderIDs = make([]string, len(c.MemberOrderIDs))
		copy(out.MemberOrderIDs, c.MemberOrderIDs)
	}
	return out
}
