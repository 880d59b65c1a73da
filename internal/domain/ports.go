package domain

import (
	"context"
	"time"
)

// CatalogService описывает взаимодействие с каталогом товаров.
type CatalogService interface {
	// GoodsBySkus возвращает данные каталога по ссылкам, ключ — SkuRef.Key().
	// Отсутствие ключа в ответе означает, что товар или sku больше не существует.
	GoodsBySkus(ctx context.Context, refs []SkuRef) (map[string]GoodsInfo, error)
	// IsListed сообщает, продаётся ли товар в данный момент.
	IsListed(ctx context.Context, goodsID string) (bool, error)
	// GroupBuyRule возвращает требуемое число участников групповой акции товара.
	GroupBuyRule(ctx context.Context, goodsID string) (int, error)
}

// DeliveryRuleService описывает правила курьерской доставки.
type DeliveryRuleService interface {
	// IsServiceable проверяет, доставляются ли все товары в город получателя.
	// При отказе возвращает id первого недоставляемого товара.
	IsServiceable(ctx context.Context, cityID string, goodsIDs []string) (bool, string, error)
	// ComputeFee возвращает стоимость доставки для города и суммы заказа.
	ComputeFee(ctx context.Context, cityID string, totalMinor int64) (int64, error)
}

// CouponService описывает применение купонов к заказу.
type CouponService interface {
	// Resolve возвращает сумму скидки либо ErrCouponIneligible.
	Resolve(ctx context.Context, couponID, userID string, orderTotalMinor int64) (int64, error)
	// ListUsable возвращает купоны пользователя, применимые к данной сумме.
	ListUsable(ctx context.Context, userID string, orderTotalMinor int64) ([]Coupon, error)
}

// PaymentGateway описывает контракт платёжного шлюза. Протокол подписи и
// шифрования остаётся за реализацией.
type PaymentGateway interface {
	// CreateIntent регистрирует платёжное намерение и возвращает prepay-токен.
	CreateIntent(ctx context.Context, orderNo, payerRef string, amountMinor int64) (string, error)
	// Refund возвращает средства по транзакции исходным путём.
	Refund(ctx context.Context, transactionID string, amountMinor int64, reason string) error
}

// Notifier отправляет уведомление о событии заказа. Вызывается после коммита
// расчёта; ошибка не влияет на зафиксированное состояние.
type Notifier interface {
	Notify(ctx context.Context, order Order, event string) error
}

// Printer отправляет заказ на печать чека. Вызывается после коммита расчёта.
type Printer interface {
	PrintTicket(ctx context.Context, order Order, event string) error
}

// DealerService оценивает правило "купи отмеченный товар — стань дистрибьютором".
type DealerService interface {
	MaybeEnroll(ctx context.Context, userID string, goodsIDs []string) (bool, error)
}

// CartCache — кеш корзин: хранилище по ключу с TTL и семантикой
// read-modify-write в пределах одного пользователя.
type CartCache interface {
	Get(key string) ([]CartLine, bool)
	Set(key string, lines []CartLine, ttl time.Duration)
	Delete(key string)
}

// SettlementTx — операции, доступные внутри атомарной единицы расчёта.
// Все вызовы видят друг друга; ошибка любого из них откатывает единицу целиком.
type SettlementTx interface {
	// OrderByNo возвращает заказ по номеру независимо от статуса оплаты.
	OrderByNo(orderNo string) (Order, error)
	// AdjustStockSales выполняет условное списание остатка и прирост продаж по
	// каждой позиции; при нехватке остатка возвращает ErrInsufficientStock.
	AdjustStockSales(lines []OrderLine) error
	// SaveOrderPaid фиксирует платёжные поля заказа (pay_status, pay_time,
	// transaction_id, campaign_id).
	SaveOrderPaid(order Order) error
	// AccrueUserSpend накапливает пожизненные траты пользователя.
	AccrueUserSpend(userID string, amountMinor int64) error
	// ConsumePrepay помечает платёжное намерение использованным ровно один раз;
	// повторный вызов возвращает ErrPrepayAlreadyUsed.
	ConsumePrepay(orderID string, orderType OrderType) (PrepayRecord, error)
	// CreateCampaign сохраняет новую акцию.
	CreateCampaign(c Campaign) (Campaign, error)
	// JoinCampaign атомарно добавляет участника и, при достижении порога,
	// переводит акцию в succeeded. Сравнение и инкремент неделимы.
	JoinCampaign(campaignID, orderID string) (Campaign, error)
}

// SettlementUnit исполняет fn как одну атомарную единицу с сериализуемой
// изоляцией по затронутым строкам. Конкурентные расчёты одного заказа
// взаимоисключены.
type SettlementUnit interface {
	WithinSettlement(ctx context.Context, orderNo string, fn func(tx SettlementTx) error) error
}
