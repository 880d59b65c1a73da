package pricing

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/minishop/internal/domain"
)

// DeliverySelection — выбор способа получения для расчёта.
type DeliverySelection struct {
	Type   domain.DeliveryType
	CityID string // город получателя для courier
	ShopID string // пункт выдачи для pickup
}

// Summary — результат расчёта корзины. Считается заново на каждый запрос.
type Summary struct {
	Lines           []domain.PricedLine
	TotalNumber     int32
	TotalMinor      int64
	ExpressFeeMinor int64
	PayableMinor    int64
	IntraRegion     bool
	Coupons         []domain.Coupon
	// DroppedKeys — ключи позиций, чьи товары исчезли из каталога;
	// корзина использует их для самоочистки.
	DroppedKeys []string
	// Err — первая блокирующая ошибка расчёта. Снятый с продажи товар или
	// нехватка остатка не прерывают расчёт, но запрещают оформление.
	Err error
	// ErrGoodsName — товар, к которому относится Err, для сообщения покупателю.
	ErrGoodsName string
}

// OK сообщает, можно ли оформлять заказ по этому расчёту.
func (s *Summary) OK() bool {
	return s.Err == nil
}

func (s *Summary) setError(err error, goodsName string) {
	if s.Err == nil {
		s.Err = err
		s.ErrGoodsName = goodsName
	}
}

// Calculator выполняет расчёт позиций, доставки и применимых купонов.
// Чистая агрегация поверх коллабораторов, состояния не имеет.
type Calculator struct {
	catalog  domain.CatalogService
	delivery domain.DeliveryRuleService
	coupons  domain.CouponService
	logger   *log.Entry
}

// NewCalculator создаёт калькулятор с зависимостями.
func NewCalculator(
	catalog domain.CatalogService,
	delivery domain.DeliveryRuleService,
	coupons domain.CouponService,
	logger *log.Entry,
) *Calculator {
	if logger == nil {
		logger = log.WithField("component", "pricing")
	}
	return &Calculator{
		catalog:  catalog,
		delivery: delivery,
		coupons:  coupons,
		logger:   logger,
	}
}

// Price рассчитывает строки корзины, стоимость доставки и сумму к оплате.
func (c *Calculator) Price(ctx context.Context, userID string, lines []domain.CartLine, sel DeliverySelection) (Summary, error) {
	summary := Summary{IntraRegion: true}
	if len(lines) == 0 {
		return summary, nil
	}

	refs := make([]domain.SkuRef, 0, len(lines))
	for _, line := range lines {
		refs = append(refs, domain.SkuRef{GoodsID: line.GoodsID, SkuID: line.SkuID})
	}
	goodsData, err := c.catalog.GoodsBySkus(ctx, refs)
	if err != nil {
		return summary, fmt.Errorf("resolve goods from catalog: %w", err)
	}

	ordered := append([]domain.CartLine(nil), lines...)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].AddedAt.Equal(ordered[j].AddedAt) {
			return ordered[i].AddedAt.Before(ordered[j].AddedAt)
		}
		return ordered[i].Key() < ordered[j].Key()
	})

	for _, line := range ordered {
		info, ok := goodsData[line.Key()]
		if !ok {
			// Товар или sku исчез из каталога: позицию выбрасываем,
			// корзина удалит её при сбросе.
			summary.DroppedKeys = append(summary.DroppedKeys, line.Key())
			continue
		}
		if !info.IsListed {
			summary.setError(domain.ErrGoodsUnavailable, info.GoodsName)
		}
		if line.Qty > info.StockNum {
			summary.setError(domain.ErrInsufficientStock, info.GoodsName)
		}

		priced := domain.PricedLine{
			GoodsID:    info.GoodsID,
			SkuID:      info.SkuID,
			GoodsName:  info.GoodsName,
			SkuName:    info.SkuName,
			PriceMinor: info.PriceMinor,
			Qty:        line.Qty,
			TotalMinor: int64(line.Qty) * info.PriceMinor,
			StockNum:   info.StockNum,
			IsListed:   info.IsListed,
		}
		summary.Lines = append(summary.Lines, priced)
		summary.TotalNumber += line.Qty
		summary.TotalMinor += priced.TotalMinor
	}

	if sel.Type == domain.DeliveryTypeCourier && len(summary.Lines) > 0 {
		if err := c.priceDelivery(ctx, &summary, sel.CityID); err != nil {
			return summary, err
		}
	}

	summary.PayableMinor = summary.TotalMinor + summary.ExpressFeeMinor

	if c.coupons != nil && userID != "" {
		coupons, err := c.coupons.ListUsable(ctx, userID, summary.TotalMinor)
		if err != nil {
			// Недоступность купонного сервиса не блокирует расчёт.
			c.logger.WithError(err).WithField("user_id", userID).Warn("list usable coupons failed")
		} else {
			summary.Coupons = coupons
		}
	}

	return summary, nil
}

// priceDelivery проверяет зону доставки и считает стоимость для courier-режима.
func (c *Calculator) priceDelivery(ctx context.Context, summary *Summary, cityID string) error {
	goodsIDs := make([]string, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		goodsIDs = append(goodsIDs, line.GoodsID)
	}

	ok, unservedGoodsID, err := c.delivery.IsServiceable(ctx, cityID, goodsIDs)
	if err != nil {
		return fmt.Errorf("check delivery region: %w", err)
	}
	if !ok {
		summary.IntraRegion = false
		summary.setError(domain.ErrOutOfDeliveryRegion, c.goodsName(summary.Lines, unservedGoodsID))
		return nil
	}

	fee, err := c.delivery.ComputeFee(ctx, cityID, summary.TotalMinor)
	if err != nil {
		return fmt.Errorf("compute delivery fee: %w", err)
	}
	summary.ExpressFeeMinor = fee
	return nil
}

func (c *Calculator) goodsName(lines []domain.PricedLine, goodsID string) string {
	for _, line := range lines {
		if line.GoodsID == goodsID {
			return line.GoodsName
		}
	}
	return goodsID
}
