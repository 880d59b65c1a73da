package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/campaign"
	"github.com/vladislavdragonenkov/minishop/internal/service/cart"
	"github.com/vladislavdragonenkov/minishop/internal/service/catalog"
	"github.com/vladislavdragonenkov/minishop/internal/service/checkout"
	"github.com/vladislavdragonenkov/minishop/internal/service/coupon"
	"github.com/vladislavdragonenkov/minishop/internal/service/dealer"
	"github.com/vladislavdragonenkov/minishop/internal/service/delivery"
	"github.com/vladislavdragonenkov/minishop/internal/service/gateway"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
	"github.com/vladislavdragonenkov/minishop/internal/service/reconcile"
	"github.com/vladislavdragonenkov/minishop/internal/service/settlement"
	"github.com/vladislavdragonenkov/minishop/internal/storage/memory"
)

const testSecret = "test-secret"

type testEnv struct {
	router    *gin.Engine
	store     *memory.Store
	orders    domain.OrderRepository
	campaigns domain.CampaignRepository
	catalog   *catalog.MockService
	gateway   *gateway.MockGateway
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	return logger.WithField("test", "httpapi")
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	store.SeedStock("goods-1", "sku-1", 10)

	catalogSvc := catalog.NewMockService()
	catalogSvc.AddGoods(domain.GoodsInfo{
		GoodsID: "goods-1", GoodsName: "Чай улун", SkuID: "sku-1", SkuName: "100г",
		PriceMinor: 5000, StockNum: 10, IsListed: true,
	})

	deliverySvc := delivery.NewMockService()
	deliverySvc.FeeMinor = 800
	couponSvc := coupon.NewMockService()
	gatewaySvc := gateway.NewMockGateway()

	orders := memory.NewOrderRepository(store)
	campaigns := memory.NewCampaignRepository(store)
	prepays := memory.NewPrepayRepository(store)

	logger := testLogger()
	calc := pricing.NewCalculator(catalogSvc, deliverySvc, couponSvc, logger)
	carts := cart.NewStore(memory.NewCartCache(), catalogSvc, logger)
	factory := checkout.NewFactory(orders, prepays, catalogSvc, couponSvc, gatewaySvc, logger)
	machine := campaign.NewMachine(logger)
	settler := settlement.NewServiceWithoutMetrics(
		memory.NewSettlementUnit(store), catalogSvc, dealer.NewMockService(), nil, nil, machine, logger,
	)
	reconciler := reconcile.NewJob(orders, gatewaySvc, logger)

	server := NewServer(carts, calc, factory, settler, reconciler, orders, campaigns, testSecret, logger)
	return &testEnv{
		router:    server.Router(),
		store:     store,
		orders:    orders,
		campaigns: campaigns,
		catalog:   catalogSvc,
		gateway:   gatewaySvc,
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := SignUserToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuth_MissingToken(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodGet, "/api/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, 0, env.Code)
}

func TestAuth_WrongSecret(t *testing.T) {
	e := newTestEnv(t)

	forged, err := SignUserToken("other-secret", "user-1", time.Hour)
	require.NoError(t, err)

	rec, _ := e.do(t, http.MethodGet, "/api/cart", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	e := newTestEnv(t)

	expired, err := SignUserToken(testSecret, "user-1", -time.Minute)
	require.NoError(t, err)

	rec, _ := e.do(t, http.MethodGet, "/api/cart", expired, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_AddDetailCount(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	rec, _ := e.do(t, http.MethodPost, "/api/cart/add", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1", "qty": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := e.do(t, http.MethodGet, "/api/cart?city_id=city-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sum summaryView
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	require.Len(t, sum.Lines, 1)
	require.Equal(t, "100.00", sum.Total)
	require.Equal(t, "8.00", sum.ExpressFee)
	require.Equal(t, "108.00", sum.Payable)

	rec, env = e.do(t, http.MethodGet, "/api/cart/count", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		TotalNum    int32 `json:"total_num"`
		DistinctNum int   `json:"distinct_num"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &count))
	require.EqualValues(t, 2, count.TotalNum)
	require.Equal(t, 1, count.DistinctNum)
}

func TestCart_AddRejectsOverrun(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	rec, env := e.do(t, http.MethodPost, "/api/cart/add", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1", "qty": 20,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 0, env.Code)
}

func TestCheckout_SubmitCreatesOrderAndClearsCart(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	rec, _ := e.do(t, http.MethodPost, "/api/cart/add", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1", "qty": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := e.do(t, http.MethodPost, "/api/checkout", token, gin.H{
		"city_id":   "city-1",
		"payer_ref": "wx-openid-1",
		"address":   gin.H{"name": "Иван", "city": "city-1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Order       orderView `json:"order"`
		PrepayToken string    `json:"prepay_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.Order.OrderNo)
	require.NotEmpty(t, created.PrepayToken)
	require.Equal(t, "108.00", created.Order.PayPrice)
	require.Equal(t, "awaiting payment", created.Order.StateText)

	// Купленные позиции удалены из корзины.
	_, env = e.do(t, http.MethodGet, "/api/cart/count", token, nil)
	var count struct {
		TotalNum int32 `json:"total_num"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &count))
	require.EqualValues(t, 0, count.TotalNum)
}

func TestBuyNow_SubmitAndPay(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	rec, env := e.do(t, http.MethodPost, "/api/buynow", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1", "qty": 1,
		"delivery_type": "pickup", "shop_id": "shop-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Order       orderView `json:"order"`
		PrepayToken string    `json:"prepay_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Equal(t, "50.00", created.Order.PayPrice)

	// Подтверждение шлюза: без пользовательского токена.
	rec, env = e.do(t, http.MethodPost, "/api/pay/notify", "", gin.H{
		"order_no": created.Order.OrderNo, "transaction_id": "tx-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var settled struct {
		Result    string `json:"result"`
		Duplicate bool   `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &settled))
	require.Equal(t, "settled", settled.Result)
	require.False(t, settled.Duplicate)

	// Повторная доставка — успех без второго списания.
	rec, env = e.do(t, http.MethodPost, "/api/pay/notify", "", gin.H{
		"order_no": created.Order.OrderNo, "transaction_id": "tx-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &settled))
	require.True(t, settled.Duplicate)

	stock, sales := e.store.StockOf("goods-1", "sku-1")
	require.EqualValues(t, 9, stock)
	require.EqualValues(t, 1, sales)
}

func TestPayNotify_UnknownOrder(t *testing.T) {
	e := newTestEnv(t)

	rec, _ := e.do(t, http.MethodPost, "/api/pay/notify", "", gin.H{
		"order_no": "missing", "transaction_id": "tx-1",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOrderDetail_OwnershipHidden(t *testing.T) {
	e := newTestEnv(t)
	owner := userToken(t, "user-1")
	stranger := userToken(t, "user-2")

	_, env := e.do(t, http.MethodPost, "/api/buynow", owner, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1",
	})
	var created struct {
		Order orderView `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ := e.do(t, http.MethodGet, "/api/order/"+created.Order.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Чужой заказ неотличим от несуществующего.
	rec, _ = e.do(t, http.MethodGet, "/api/order/"+created.Order.ID, stranger, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderList(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	for i := 0; i < 2; i++ {
		rec, _ := e.do(t, http.MethodPost, "/api/buynow", token, gin.H{
			"goods_id": "goods-1", "sku_id": "sku-1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	_, env := e.do(t, http.MethodGet, "/api/orders", token, nil)
	var listing struct {
		Orders []orderView `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	require.Len(t, listing.Orders, 2)
}

func TestPickup_CompletesOrderOnce(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	_, env := e.do(t, http.MethodPost, "/api/buynow", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1",
		"delivery_type": "pickup", "shop_id": "shop-1",
	})
	var created struct {
		Order orderView `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	// Неоплаченный заказ не выдаётся.
	rec, _ := e.do(t, http.MethodPost, "/admin/order/"+created.Order.ID+"/pickup", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/api/pay/notify", "", gin.H{
		"order_no": created.Order.OrderNo, "transaction_id": "tx-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = e.do(t, http.MethodPost, "/admin/order/"+created.Order.ID+"/pickup", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var picked orderView
	require.NoError(t, json.Unmarshal(env.Data, &picked))
	require.Equal(t, "completed", picked.OrderStatus)
	require.Equal(t, "completed", picked.StateText)

	// Повторная выдача отклоняется.
	rec, _ = e.do(t, http.MethodPost, "/admin/order/"+created.Order.ID+"/pickup", token, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestReconcile_RefundsFailedCampaign(t *testing.T) {
	e := newTestEnv(t)
	token := userToken(t, "user-1")

	// Групповой заказ-инициатор: оплата открывает акцию.
	_, env := e.do(t, http.MethodPost, "/api/buynow", token, gin.H{
		"goods_id": "goods-1", "sku_id": "sku-1",
		"order_type": "group_buy",
		"city_id":    "city-1",
	})
	var created struct {
		Order orderView `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	rec, _ := e.do(t, http.MethodPost, "/api/pay/notify", "", gin.H{
		"order_no": created.Order.OrderNo, "transaction_id": "tx-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Срок истёк, участников не хватило: планировщик помечает акцию failed.
	paid, err := e.orders.Get(created.Order.ID)
	require.NoError(t, err)
	require.NotEmpty(t, paid.CampaignID)
	require.NoError(t, e.campaigns.MarkFailed(paid.CampaignID))

	rec, env = e.do(t, http.MethodPost, "/admin/reconcile", token, gin.H{})
	require.Equal(t, http.StatusOK, rec.Code)

	var report reportView
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Len(t, report.Refunded, 1)
	require.Empty(t, report.Failed)
	require.Equal(t, created.Order.OrderNo, report.Refunded[0].OrderNo)

	refunded, err := e.orders.Get(created.Order.ID)
	require.NoError(t, err)
	require.True(t, refunded.IsRefunded)
	require.Equal(t, []string{"tx-1"}, e.gateway.RefundedTxIDs)

	// Повторный проход пуст.
	_, env = e.do(t, http.MethodPost, "/admin/reconcile", token, gin.H{})
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Empty(t, report.Refunded)
}
