package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// settlementUnitInMemory исполняет расчёт под общим mutex хранилища: пока
// единица работает, никакой другой расчёт или репозиторий данные не видит
// и не меняет. Это даёт ту же сериализуемость, что транзакция в Postgres.
type settlementUnitInMemory struct {
	store *Store
}

// NewSettlementUnit возвращает in-memory единицу атомарного расчёта.
func NewSettlementUnit(store *Store) domain.SettlementUnit {
	return &settlementUnitInMemory{store: store}
}

// WithinSettlement выполняет fn атомарно: при ошибке все изменения,
// сделанные через tx, откатываются к снимку на момент входа.
func (u *settlementUnitInMemory) WithinSettlement(ctx context.Context, orderNo string, fn func(tx domain.SettlementTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	tx := &settlementTxInMemory{store: s}
	if err := fn(tx); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

// storeSnapshot — полная копия изменяемого состояния для отката.
type storeSnapshot struct {
	orders     map[string]domain.Order
	orderNoIdx map[string]string
	campaigns  map[string]domain.Campaign
	prepays    map[string][]domain.PrepayRecord
	stock      map[string]skuState
	userSpend  map[string]int64
}

func (s *Store) snapshotLocked() storeSnapshot {
	snap := storeSnapshot{
		orders:     make(map[string]domain.Order, len(s.orders)),
		orderNoIdx: make(map[string]string, len(s.orderNoIdx)),
		campaigns:  make(map[string]domain.Campaign, len(s.campaigns)),
		prepays:    make(map[string][]domain.PrepayRecord, len(s.prepays)),
		stock:      make(map[string]skuState, len(s.stock)),
		userSpend:  make(map[string]int64, len(s.userSpend)),
	}
	for id, order := range s.orders {
		snap.orders[id] = cloneOrder(order)
	}
	for no, id := range s.orderNoIdx {
		snap.orderNoIdx[no] = id
	}
	for id, campaign := range s.campaigns {
		snap.campaigns[id] = cloneCampaign(campaign)
	}
	for id, records := range s.prepays {
		copied := make([]domain.PrepayRecord, len(records))
		copy(copied, records)
		snap.prepays[id] = copied
	}
	for key, state := range s.stock {
		snap.stock[key] = state
	}
	for id, spend := range s.userSpend {
		snap.userSpend[id] = spend
	}
	return snap
}

func (s *Store) restoreLocked(snap storeSnapshot) {
	s.orders = snap.orders
	s.orderNoIdx = snap.orderNoIdx
	s.campaigns = snap.campaigns
	s.prepays = snap.prepays
	s.stock = snap.stock
	s.userSpend = snap.userSpend
}

// settlementTxInMemory работает с живыми картами хранилища; mutex уже
// удерживается единицей расчёта.
type settlementTxInMemory struct {
	store *Store
}

func (t *settlementTxInMemory) OrderByNo(orderNo string) (domain.Order, error) {
	id, ok := t.store.orderNoIdx[orderNo]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(t.store.orders[id]), nil
}

func (t *settlementTxInMemory) AdjustStockSales(lines []domain.OrderLine) error {
	// Сначала проверяем все позиции, потом применяем: откат здесь не нужен.
	for _, line := range lines {
		key := domain.SkuRef{GoodsID: line.GoodsID, SkuID: line.SkuID}.Key()
		if t.store.stock[key].Stock < line.Qty {
			return domain.ErrInsufficientStock
		}
	}
	for _, line := range lines {
		key := domain.SkuRef{GoodsID: line.GoodsID, SkuID: line.SkuID}.Key()
		state := t.store.stock[key]
		state.Stock -= line.Qty
		state.Sales += line.Qty
		t.store.stock[key] = state
	}
	return nil
}

func (t *settlementTxInMemory) SaveOrderPaid(order domain.Order) error {
	current, ok := t.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	t.store.orders[order.ID] = cloneOrder(order)
	return nil
}

func (t *settlementTxInMemory) AccrueUserSpend(userID string, amountMinor int64) error {
	t.store.userSpend[userID] += amountMinor
	return nil
}

func (t *settlementTxInMemory) ConsumePrepay(orderID string, orderType domain.OrderType) (domain.PrepayRecord, error) {
	records := t.store.prepays[orderID]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].OrderType != orderType {
			continue
		}
		if records[i].PayStatus == domain.PrepayStatusUsed {
			return domain.PrepayRecord{}, domain.ErrPrepayAlreadyUsed
		}
		records[i].PayStatus = domain.PrepayStatusUsed
		records[i].UsableTimes = domain.PrepayUsableTimes
		records[i].UpdatedAt = time.Now().UTC()
		return records[i], nil
	}
	return domain.PrepayRecord{}, domain.ErrPrepayNotFound
}

func (t *settlementTxInMemory) CreateCampaign(c domain.Campaign) (domain.Campaign, error) {
	t.store.campaigns[c.ID] = cloneCampaign(c)
	return c, nil
}

func (t *settlementTxInMemory) JoinCampaign(campaignID, orderID string) (domain.Campaign, error) {
	campaign, ok := t.store.campaigns[campaignID]
	if !ok {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	if campaign.Status != domain.CampaignStatusPending {
		return domain.Campaign{}, domain.ErrCampaignClosed
	}

	campaign = cloneCampaign(campaign)
	campaign.MemberOrderIDs = append(campaign.MemberOrderIDs, orderID)
	if campaign.MemberCount() >= campaign.RequiredMembers {
		campaign.Status = domain.CampaignStatusSucceeded
	}
	campaign.UpdatedAt = time.Now().UTC()
	campaign.Version++
	t.store.campaigns[campaignID] = campaign
	return cloneCampaign(campaign), nil
}

var (
	_ domain.SettlementUnit = (*settlementUnitInMemory)(nil)
	_ domain.SettlementTx   = (*settlementTxInMemory)(nil)
)
