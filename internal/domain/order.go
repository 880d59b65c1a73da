package domain

import (
	"fmt"
	"time"
)

// OrderType определяет способ покупки.
type OrderType string

const (
	// OrderTypeDirect — обычная покупка (корзина или "купить сейчас").
	OrderTypeDirect OrderType = "direct"
	// OrderTypeGroupBuy — покупка в составе групповой акции (совместная покупка).
	OrderTypeGroupBuy OrderType = "group_buy"
)

// DeliveryType определяет способ получения заказа.
type DeliveryType string

const (
	// DeliveryTypeCourier — курьерская доставка по городу получателя.
	DeliveryTypeCourier DeliveryType = "courier"
	// DeliveryTypePickup — самовывоз из пункта выдачи.
	DeliveryTypePickup DeliveryType = "pickup"
)

// PayStatus описывает состояние оплаты заказа.
type PayStatus string

const (
	// PayStatusUnpaid — заказ создан, оплата не подтверждена.
	PayStatusUnpaid PayStatus = "unpaid"
	// PayStatusPaid — оплата подтверждена шлюзом. Переход выполняется ровно один раз.
	PayStatusPaid PayStatus = "paid"
)

// DeliveryStatus описывает состояние отгрузки.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusShipped DeliveryStatus = "shipped"
)

// ReceiptStatus описывает состояние получения заказа покупателем.
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "pending"
	ReceiptStatusReceived ReceiptStatus = "received"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusActive — заказ в работе.
	OrderStatusActive OrderStatus = "active"
	// OrderStatusCancelled — заказ отменён (в том числе после возврата по неудачной акции).
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusPendingCancel — запрошена отмена, ожидает подтверждения.
	OrderStatusPendingCancel OrderStatus = "pending_cancel"
	// OrderStatusCompleted — заказ выдан и закрыт.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCampaignFailed — групповая акция не состоялась.
	OrderStatusCampaignFailed OrderStatus = "campaign_failed"
)

// OrderLine — неизменяемый снимок позиции на момент создания заказа.
// Последующие изменения каталога на него не влияют.
type OrderLine struct {
	ID         string
	OrderID    string
	GoodsID    string
	SkuID      string
	GoodsName  string
	SkuName    string
	PriceMinor int64
	Qty        int32
	TotalMinor int64
	CreatedAt  time.Time
}

// OrderAddress — снимок адреса доставки, копируется по значению при создании заказа.
type OrderAddress struct {
	Name     string
	Phone    string
	Province string
	City     string
	Region   string
	Detail   string
}

// Order агрегирует состояние заказа, его позиции и адресный снимок.
type Order struct {
	ID               string
	OrderNo          string
	UserID           string
	OrderType        OrderType
	DeliveryType     DeliveryType
	PayStatus        PayStatus
	DeliveryStatus   DeliveryStatus
	ReceiptStatus    ReceiptStatus
	OrderStatus      OrderStatus
	PayPriceMinor    int64
	UpdatePriceMinor int64 // ручная корректировка цены, со знаком
	ExpressFeeMinor  int64
	CouponID         string
	DiscountMinor    int64
	TransactionID    string // ссылка шлюза, пустая до оплаты
	CampaignID       string // заполняется для group_buy после оплаты
	IsRefunded       bool
	Remark           string
	Address          OrderAddress
	Lines            []OrderLine
	PayTime          time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if o.OrderNo == "" {
		errs = append(errs, ErrOrderNoRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.PayPriceMinor < 0 {
		errs = append(errs, ErrPayPriceNegative)
	}

	// Сверяем сумму позиций: qty * price.
	var goodsTotal int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if line.TotalMinor != int64(line.Qty)*line.PriceMinor {
			errs = append(errs, ErrLineTotalMismatch)
		}
		goodsTotal += line.TotalMinor
	}

	// pay_price = товары + доставка - скидка + корректировка, но не ниже нуля.
	expected := goodsTotal + o.ExpressFeeMinor - o.DiscountMinor + o.UpdatePriceMinor
	if expected < 0 {
		expected = 0
	}
	if len(o.Lines) > 0 && expected != o.PayPriceMinor {
		errs = append(errs, ErrPayPriceMismatch)
	}

	return errs
}

// GoodsIDs возвращает идентификаторы товаров заказа без дублей.
func (o *Order) GoodsIDs() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	ids := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
		if _, ok := seen[line.GoodsID]; ok {
			continue
		}
		seen[line.GoodsID] = struct{}{}
		ids = append(ids, line.GoodsID)
	}
	return ids
}

// ConfirmPickup выполняет выдачу заказа на пункте самовывоза: отгружен,
// получен и завершён одним переходом. Возвращает ошибку, если заказ не
// удовлетворяет условиям выдачи.
func (o *Order) ConfirmPickup(campaignStatus CampaignStatus, now time.Time) error {
	switch {
	case o.PayStatus != PayStatusPaid:
		return ErrPickupNotEligible
	case o.DeliveryType != DeliveryTypePickup:
		return ErrPickupNotEligible
	case o.DeliveryStatus == DeliveryStatusShipped:
		return ErrPickupNotEligible
	case o.OrderStatus == OrderStatusCancelled || o.OrderStatus == OrderStatusPendingCancel:
		return ErrPickupNotEligible
	case o.OrderType == OrderTypeGroupBuy && campaignStatus != CampaignStatusSucceeded:
		return ErrPickupNotEligible
	}

	o.DeliveryStatus = DeliveryStatusShipped
	o.ReceiptStatus = ReceiptStatusReceived
	o.OrderStatus = OrderStatusCompleted
	o.UpdatedAt = now.UTC()
	return nil
}

// FormatMinor переводит сумму в минимальных единицах в строку с двумя знаками.
func FormatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
