package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/campaign"
	"github.com/vladislavdragonenkov/minishop/internal/service/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/service/dealer"
	"github.com/vladislavdragonenkov/minishop/internal/storage/memory"
)

// chanNotifier сигнализирует о доставке уведомления через канал: побочные
// эффекты уходят в фоне, тесту нужна синхронизация.
type chanNotifier struct {
	events chan string
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{events: make(chan string, 8)}
}

func (n *chanNotifier) Notify(ctx context.Context, order domain.Order, event string) error {
	n.events <- event
	return nil
}

func (n *chanNotifier) await(t *testing.T) string {
	t.Helper()
	select {
	case event := <-n.events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("notification did not arrive")
		return ""
	}
}

type env struct {
	svc       *Service
	orders    domain.OrderRepository
	campaigns domain.CampaignRepository
	prepays   domain.PrepayRepository
	memory    *memory.Store
	catalog   *catalog.MockService
	dealers   *dealer.MockService
	notifier  *chanNotifier
	machine   *campaign.Machine
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	return logger.WithField("test", "settlement")
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := memory.NewStore()
	store.SeedStock("goods-1", "sku-1", 10)

	catalogSvc := catalog.NewMockService()
	catalogSvc.GroupRules["goods-1"] = 2

	dealers := dealer.NewMockService()
	notifier := newChanNotifier()
	machine := campaign.NewMachine(testLogger())

	svc := NewServiceWithoutMetrics(
		memory.NewSettlementUnit(store),
		catalogSvc, dealers, notifier, nil, machine, testLogger(),
	)

	return &env{
		svc:       svc,
		orders:    memory.NewOrderRepository(store),
		campaigns: memory.NewCampaignRepository(store),
		prepays:   memory.NewPrepayRepository(store),
		memory:    store,
		catalog:   catalogSvc,
		dealers:   dealers,
		notifier:  notifier,
		machine:   machine,
	}
}

// seedOrder создаёт неоплаченный заказ с платёжным намерением.
func (e *env) seedOrder(t *testing.T, orderType domain.OrderType, campaignID string, qty int32) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	orderID := uuid.NewString()
	order := domain.Order{
		ID:            orderID,
		OrderNo:       now.Format("20060102150405") + uuid.NewString()[:8],
		UserID:        "user-1",
		OrderType:     orderType,
		DeliveryType:  domain.DeliveryTypeCourier,
		PayStatus:     domain.PayStatusUnpaid,
		OrderStatus:   domain.OrderStatusActive,
		PayPriceMinor: int64(qty) * 5000,
		CampaignID:    campaignID,
		Lines: []domain.OrderLine{{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			GoodsID:    "goods-1",
			SkuID:      "sku-1",
			GoodsName:  "Чай улун",
			PriceMinor: 5000,
			Qty:        qty,
			TotalMinor: int64(qty) * 5000,
			CreatedAt:  now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.orders.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := e.prepays.Create(domain.PrepayRecord{
		Token:     "prepay-" + order.OrderNo,
		OrderID:   order.ID,
		UserID:    order.UserID,
		OrderType: orderType,
		PayStatus: domain.PrepayStatusUnused,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create prepay: %v", err)
	}

	return order
}

func TestSettle_DirectOrder(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeDirect, "", 2)

	result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result != ResultSettled {
		t.Fatalf("expected settled, got %s", result)
	}

	paid, err := e.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if paid.PayStatus != domain.PayStatusPaid || paid.TransactionID != "tx-1" || paid.PayTime.IsZero() {
		t.Fatalf("order not settled: %+v", paid)
	}

	stock, sales := e.memory.StockOf("goods-1", "sku-1")
	if stock != 8 || sales != 2 {
		t.Fatalf("expected stock 8 / sales 2, got %d / %d", stock, sales)
	}
	if spend := e.memory.UserSpend("user-1"); spend != 10000 {
		t.Fatalf("expected user spend 100.00, got %s", domain.FormatMinor(spend))
	}
	if e.dealers.EnrollCalls != 1 {
		t.Fatalf("expected dealer rule evaluated once, got %d", e.dealers.EnrollCalls)
	}

	if event := e.notifier.await(t); event != "order.paid" {
		t.Fatalf("unexpected notification: %s", event)
	}
}

func TestSettle_DuplicateConfirmation(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeDirect, "", 2)

	if _, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	e.notifier.await(t)

	result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if result != ResultDuplicate {
		t.Fatalf("expected duplicate, got %s", result)
	}

	// Списание выполнилось ровно один раз.
	stock, sales := e.memory.StockOf("goods-1", "sku-1")
	if stock != 8 || sales != 2 {
		t.Fatalf("duplicate must not decrement stock twice: %d / %d", stock, sales)
	}
	if spend := e.memory.UserSpend("user-1"); spend != 10000 {
		t.Fatalf("duplicate must not accrue spend twice: %d", spend)
	}

	select {
	case event := <-e.notifier.events:
		t.Fatalf("duplicate must not notify, got %s", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSettle_InsufficientStockRollsBack(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeDirect, "", 2)
	e.memory.SeedStock("goods-1", "sku-1", 1)

	result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if result != ResultFailed {
		t.Fatalf("expected failed, got %s", result)
	}

	// Откат целиком: заказ неоплачен, намерение не потрачено, остаток цел.
	unpaid, _ := e.orders.Get(order.ID)
	if unpaid.PayStatus != domain.PayStatusUnpaid {
		t.Fatalf("order must stay unpaid, got %s", unpaid.PayStatus)
	}
	rec, err := e.prepays.LatestByOrder(order.ID, domain.OrderTypeDirect)
	if err != nil {
		t.Fatalf("get prepay: %v", err)
	}
	if rec.PayStatus != domain.PrepayStatusUnused {
		t.Fatalf("prepay must stay unused after rollback, got %s", rec.PayStatus)
	}
	if spend := e.memory.UserSpend("user-1"); spend != 0 {
		t.Fatalf("spend must roll back, got %d", spend)
	}

	// Повторная доставка после пополнения остатка проходит.
	e.memory.SeedStock("goods-1", "sku-1", 5)
	result, err = e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
	if err != nil || result != ResultSettled {
		t.Fatalf("retry must settle, got %s %v", result, err)
	}
	e.notifier.await(t)
}

func TestSettle_UnknownOrder(t *testing.T) {
	e := newEnv(t)

	result, err := e.svc.Settle(context.Background(), "missing", "tx-1")
	if !errors.Is(err, domain.ErrOrderNotFound) || result != ResultFailed {
		t.Fatalf("expected order not found, got %s %v", result, err)
	}
}

func TestSettle_GroupBuyInitiatorOpensCampaign(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeGroupBuy, "", 1)

	result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
	if err != nil || result != ResultSettled {
		t.Fatalf("settle: %s %v", result, err)
	}
	e.notifier.await(t)

	paid, _ := e.orders.Get(order.ID)
	if paid.CampaignID == "" {
		t.Fatal("initiator order must carry campaign id")
	}

	created, err := e.campaigns.Get(paid.CampaignID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if created.Status != domain.CampaignStatusPending || created.MemberCount() != 1 {
		t.Fatalf("expected pending campaign with initiator, got %+v", created)
	}
	if created.RequiredMembers != 2 || created.GoodsID != "goods-1" {
		t.Fatalf("unexpected campaign rule: %+v", created)
	}
}

func TestSettle_GroupBuyJoinReachesThreshold(t *testing.T) {
	e := newEnv(t)

	initiator := e.seedOrder(t, domain.OrderTypeGroupBuy, "", 1)
	if _, err := e.svc.Settle(context.Background(), initiator.OrderNo, "tx-1"); err != nil {
		t.Fatalf("settle initiator: %v", err)
	}
	e.notifier.await(t)

	paidInitiator, _ := e.orders.Get(initiator.ID)
	campaignID := paidInitiator.CampaignID

	joiner := e.seedOrder(t, domain.OrderTypeGroupBuy, campaignID, 1)
	result, err := e.svc.Settle(context.Background(), joiner.OrderNo, "tx-2")
	if err != nil || result != ResultSettled {
		t.Fatalf("settle joiner: %s %v", result, err)
	}
	e.notifier.await(t)

	// Порог 2 достигнут: акция завершилась успехом ровно один раз.
	succeeded, err := e.campaigns.Get(campaignID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if succeeded.Status != domain.CampaignStatusSucceeded || succeeded.MemberCount() != 2 {
		t.Fatalf("expected succeeded campaign with 2 members, got %+v", succeeded)
	}

	// Опоздавший участник получает отказ, его заказ остаётся неоплаченным.
	late := e.seedOrder(t, domain.OrderTypeGroupBuy, campaignID, 1)
	result, err = e.svc.Settle(context.Background(), late.OrderNo, "tx-3")
	if !errors.Is(err, domain.ErrCampaignClosed) || result != ResultFailed {
		t.Fatalf("expected campaign closed, got %s %v", result, err)
	}
	lateOrder, _ := e.orders.Get(late.ID)
	if lateOrder.PayStatus != domain.PayStatusUnpaid {
		t.Fatalf("late joiner must stay unpaid, got %s", lateOrder.PayStatus)
	}
}

func TestSettle_SequentialDuplicatesDecrementOnce(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeDirect, "", 1)

	settledCount := 0
	for i := 0; i < 5; i++ {
		result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
		if err != nil {
			t.Fatalf("settle #%d: %v", i, err)
		}
		if result == ResultSettled {
			settledCount++
		}
	}
	if settledCount != 1 {
		t.Fatalf("expected exactly one settled outcome, got %d", settledCount)
	}
	stock, _ := e.memory.StockOf("goods-1", "sku-1")
	if stock != 9 {
		t.Fatalf("expected single decrement, stock %d", stock)
	}
	e.notifier.await(t)
}

func TestSettle_ConcurrentFinalSlotRace(t *testing.T) {
	e := newEnv(t)
	e.catalog.GroupRules["goods-1"] = 3

	initiator := e.seedOrder(t, domain.OrderTypeGroupBuy, "", 1)
	if _, err := e.svc.Settle(context.Background(), initiator.OrderNo, "tx-1"); err != nil {
		t.Fatalf("settle initiator: %v", err)
	}
	paidInitiator, _ := e.orders.Get(initiator.ID)
	campaignID := paidInitiator.CampaignID

	second := e.seedOrder(t, domain.OrderTypeGroupBuy, campaignID, 1)
	if _, err := e.svc.Settle(context.Background(), second.OrderNo, "tx-2"); err != nil {
		t.Fatalf("settle second member: %v", err)
	}

	// Два участника конкурируют за последнее, третье место.
	racerA := e.seedOrder(t, domain.OrderTypeGroupBuy, campaignID, 1)
	racerB := e.seedOrder(t, domain.OrderTypeGroupBuy, campaignID, 1)

	type attempt struct {
		order  domain.Order
		result Result
		err    error
	}
	outcomes := make(chan attempt, 2)
	var wg sync.WaitGroup
	for i, racer := range []domain.Order{racerA, racerB} {
		wg.Add(1)
		go func(n int, order domain.Order) {
			defer wg.Done()
			result, err := e.svc.Settle(context.Background(), order.OrderNo, fmt.Sprintf("tx-race-%d", n))
			outcomes <- attempt{order: order, result: result, err: err}
		}(i, racer)
	}
	wg.Wait()
	close(outcomes)

	var settled, closed int
	for got := range outcomes {
		switch {
		case got.err == nil && got.result == ResultSettled:
			settled++
		case errors.Is(got.err, domain.ErrCampaignClosed) && got.result == ResultFailed:
			closed++
			// Проигравший остаётся неоплаченным и вне акции.
			loser, _ := e.orders.Get(got.order.ID)
			if loser.PayStatus != domain.PayStatusUnpaid {
				t.Fatalf("loser must stay unpaid, got %s", loser.PayStatus)
			}
		default:
			t.Fatalf("unexpected outcome: %s %v", got.result, got.err)
		}
	}
	if settled != 1 || closed != 1 {
		t.Fatalf("expected exactly one winner and one rejection, got %d/%d", settled, closed)
	}

	// Ровно три участника, успех зафиксирован один раз.
	final, err := e.campaigns.Get(campaignID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if final.Status != domain.CampaignStatusSucceeded || final.MemberCount() != 3 {
		t.Fatalf("expected succeeded campaign with 3 members, got %+v", final)
	}
}

func TestSettle_ConcurrentDuplicatesDecrementOnce(t *testing.T) {
	e := newEnv(t)
	order := e.seedOrder(t, domain.OrderTypeDirect, "", 1)

	const confirmations = 4
	results := make(chan Result, confirmations)
	var wg sync.WaitGroup
	for i := 0; i < confirmations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1")
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	settled := 0
	for result := range results {
		if result == ResultSettled {
			settled++
		}
	}
	if settled != 1 {
		t.Fatalf("expected exactly one settled outcome, got %d", settled)
	}

	stock, _ := e.memory.StockOf("goods-1", "sku-1")
	if stock != 9 {
		t.Fatalf("expected single decrement, stock %d", stock)
	}
}

func TestSettle_ObserversNotifiedAfterCommit(t *testing.T) {
	e := newEnv(t)
	observer := &recordingObserver{events: make(chan domain.Campaign, 4)}
	e.machine.RegisterObserver(observer)

	order := e.seedOrder(t, domain.OrderTypeGroupBuy, "", 1)
	if _, err := e.svc.Settle(context.Background(), order.OrderNo, "tx-1"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	e.notifier.await(t)

	select {
	case c := <-observer.events:
		if c.Status != domain.CampaignStatusPending {
			t.Fatalf("expected pending campaign event, got %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("campaign observer not notified")
	}
}

type recordingObserver struct {
	events chan domain.Campaign
}

func (r *recordingObserver) OnCampaignStateChange(c domain.Campaign) {
	r.events <- c
}
