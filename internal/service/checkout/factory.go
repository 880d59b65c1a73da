package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
	"github.com/vladislavdragonenkov/minishop/internal/service/pricing"
)

// CreateOptions — параметры создания заказа сверх расчёта корзины.
type CreateOptions struct {
	OrderType  domain.OrderType
	CampaignID string // для присоединения к существующей акции
	CouponID   string
	Remark     string
	Address    domain.OrderAddress
	PayerRef   string // ссылка плательщика для шлюза
}

// Result — созданный заказ вместе с платёжным токеном шлюза.
type Result struct {
	Order       domain.Order
	PrepayToken string
}

// Factory валидирует расчитанную корзину против актуального состояния
// каталога и сохраняет новый заказ одной атомарной записью.
type Factory struct {
	orders  domain.OrderRepository
	prepays domain.PrepayRepository
	catalog domain.CatalogService
	coupons domain.CouponService
	gateway domain.PaymentGateway
	logger  *log.Entry
}

// NewFactory создаёт фабрику заказов с зависимостями.
func NewFactory(
	orders domain.OrderRepository,
	prepays domain.PrepayRepository,
	catalog domain.CatalogService,
	coupons domain.CouponService,
	gateway domain.PaymentGateway,
	logger *log.Entry,
) *Factory {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Factory{
		orders:  orders,
		prepays: prepays,
		catalog: catalog,
		coupons: coupons,
		gateway: gateway,
		logger:  logger,
	}
}

// CreateOrder создаёт заказ из расчёта. Отказывает без сохранения, если
// расчёт нёс ошибку, остаток изменился к моменту записи или купон
// неприменим. При успехе регистрирует платёжное намерение и сохраняет
// PrepayRecord.
func (f *Factory) CreateOrder(ctx context.Context, userID string, sum pricing.Summary, sel pricing.DeliverySelection, opts CreateOptions) (Result, error) {
	if userID == "" {
		return Result{}, domain.ErrUserRequired
	}
	if !sum.OK() {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrPricingFailed, sum.Err)
	}
	if len(sum.Lines) == 0 {
		return Result{}, domain.ErrLinesRequired
	}

	// Повторная проверка остатка и листинга закрывает гонку между
	// расчётом и записью.
	if err := f.recheckStock(ctx, sum.Lines); err != nil {
		return Result{}, err
	}

	var discount int64
	if opts.CouponID != "" {
		var err error
		discount, err = f.coupons.Resolve(ctx, opts.CouponID, userID, sum.TotalMinor)
		if err != nil {
			return Result{}, err
		}
	}

	orderType := opts.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeDirect
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()
	lines := make([]domain.OrderLine, 0, len(sum.Lines))
	for _, pl := range sum.Lines {
		lines = append(lines, domain.OrderLine{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			GoodsID:    pl.GoodsID,
			SkuID:      pl.SkuID,
			GoodsName:  pl.GoodsName,
			SkuName:    pl.SkuName,
			PriceMinor: pl.PriceMinor,
			Qty:        pl.Qty,
			TotalMinor: pl.TotalMinor,
			CreatedAt:  now,
		})
	}

	payPrice := sum.TotalMinor + sum.ExpressFeeMinor - discount
	if payPrice < 0 {
		payPrice = 0
	}

	order := domain.Order{
		ID:              orderID,
		OrderNo:         newOrderNo(now),
		UserID:          userID,
		OrderType:       orderType,
		DeliveryType:    sel.Type,
		PayStatus:       domain.PayStatusUnpaid,
		DeliveryStatus:  domain.DeliveryStatusPending,
		ReceiptStatus:   domain.ReceiptStatusPending,
		OrderStatus:     domain.OrderStatusActive,
		PayPriceMinor:   payPrice,
		ExpressFeeMinor: sum.ExpressFeeMinor,
		CouponID:        opts.CouponID,
		DiscountMinor:   discount,
		CampaignID:      opts.CampaignID,
		Remark:          opts.Remark,
		Address:         opts.Address,
		Lines:           lines,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return Result{}, fmt.Errorf("order invariants violated: %v", errs)
	}

	if err := f.orders.Create(order); err != nil {
		f.logger.WithError(err).WithField("order_no", order.OrderNo).Error("failed to persist order")
		return Result{}, err
	}

	token, err := f.requestPrepay(ctx, order, opts.PayerRef)
	if err != nil {
		// Заказ сохранён и останется неоплаченным; намерение можно
		// запросить повторно.
		f.logger.WithError(err).WithField("order_no", order.OrderNo).Warn("payment intent request failed")
		return Result{Order: order}, err
	}

	return Result{Order: order, PrepayToken: token}, nil
}

// BuyNow рассчитывает одну синтетическую позицию "купить сейчас" тем же
// калькулятором и создаёт заказ.
func (f *Factory) BuyNow(ctx context.Context, calc *pricing.Calculator, userID, goodsID, skuID string, qty int32, sel pricing.DeliverySelection, opts CreateOptions) (Result, error) {
	if qty <= 0 {
		return Result{}, domain.ErrLineQtyInvalid
	}
	line := domain.CartLine{
		GoodsID: goodsID,
		SkuID:   skuID,
		Qty:     qty,
		AddedAt: time.Now().UTC(),
	}
	sum, err := calc.Price(ctx, userID, []domain.CartLine{line}, sel)
	if err != nil {
		return Result{}, err
	}
	if len(sum.Lines) == 0 {
		return Result{}, domain.ErrGoodsUnavailable
	}
	return f.CreateOrder(ctx, userID, sum, sel, opts)
}

// PriceSingle возвращает расчёт одной позиции без создания заказа
// (GET-ветка подтверждения "купить сейчас").
func (f *Factory) PriceSingle(ctx context.Context, calc *pricing.Calculator, userID, goodsID, skuID string, qty int32, sel pricing.DeliverySelection) (pricing.Summary, error) {
	line := domain.CartLine{
		GoodsID: goodsID,
		SkuID:   skuID,
		Qty:     qty,
		AddedAt: time.Now().UTC(),
	}
	return calc.Price(ctx, userID, []domain.CartLine{line}, sel)
}

func (f *Factory) recheckStock(ctx context.Context, lines []domain.PricedLine) error {
	refs := make([]domain.SkuRef, 0, len(lines))
	for _, line := range lines {
		refs = append(refs, domain.SkuRef{GoodsID: line.GoodsID, SkuID: line.SkuID})
	}
	goodsData, err := f.catalog.GoodsBySkus(ctx, refs)
	if err != nil {
		return fmt.Errorf("recheck stock: %w", err)
	}
	for _, line := range lines {
		info, ok := goodsData[domain.CartKey(line.GoodsID, line.SkuID)]
		if !ok || !info.IsListed {
			return domain.ErrGoodsUnavailable
		}
		if line.Qty > info.StockNum {
			return domain.ErrInsufficientStock
		}
	}
	return nil
}

func (f *Factory) requestPrepay(ctx context.Context, order domain.Order, payerRef string) (string, error) {
	token, err := f.gateway.CreateIntent(ctx, order.OrderNo, payerRef, order.PayPriceMinor)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := domain.PrepayRecord{
		Token:     token,
		OrderID:   order.ID,
		UserID:    order.UserID,
		OrderType: order.OrderType,
		PayStatus: domain.PrepayStatusUnused,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.prepays.Create(rec); err != nil {
		return "", fmt.Errorf("persist prepay record: %w", err)
	}
	return token, nil
}

// newOrderNo формирует внешний номер заказа: метка времени плюс случайный
// суффикс. Уникальность дополнительно гарантирует ограничение хранилища.
func newOrderNo(now time.Time) string {
	suffix := uuid.NewString()[:8]
	return now.Format("20060102150405") + suffix
}
