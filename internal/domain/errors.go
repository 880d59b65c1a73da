package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствующего номера заказа.
	ErrOrderNoRequired = errors.New("order_no is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отрицательной суммы к оплате.
	ErrPayPriceNegative = errors.New("pay_price must be non-negative")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия суммы позиции цене и количеству.
	ErrLineTotalMismatch = errors.New("line total does not match price and qty")
	// Ошибка несоответствия суммы заказа сумме позиций, доставки и скидки.
	ErrPayPriceMismatch = errors.New("pay_price does not match lines, fee and discount")
	// Ошибка отсутствующего идентификатора заказа в связанных записях.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего товара у акции.
	ErrCampaignGoodsRequired = errors.New("campaign goods_id is required")
	// Ошибка некорректного порога участников акции (< 2).
	ErrCampaignMembersInvalid = errors.New("campaign requires at least two members")
	// Ошибка отсутствующего платёжного токена.
	ErrPrepayTokenRequired = errors.New("prepay token is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrCampaignNotFound возвращается, если акция не найдена.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignClosed — попытка присоединиться к акции в терминальном состоянии.
	ErrCampaignClosed = errors.New("campaign is closed")
	// ErrPrepayNotFound возвращается, если запись платёжного намерения отсутствует.
	ErrPrepayNotFound = errors.New("prepay record not found")
	// ErrPrepayAlreadyUsed — подтверждение с этим токеном уже обработано.
	ErrPrepayAlreadyUsed = errors.New("prepay record already used")
	// ErrAlreadyRefunded — заказ уже помечен возвращённым; повторный возврат запрещён.
	ErrAlreadyRefunded = errors.New("order already refunded")

	// ErrGoodsUnavailable — товар отсутствует в каталоге или снят с продажи (бизнес-ошибка).
	ErrGoodsUnavailable = errors.New("goods unavailable or delisted")
	// ErrInsufficientStock — остатка недостаточно; заказ/расчёт не выполняется.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOutOfDeliveryRegion — адрес получателя вне зоны доставки товара.
	ErrOutOfDeliveryRegion = errors.New("address is out of delivery region")
	// ErrCouponIneligible — купон не применим к заказу.
	ErrCouponIneligible = errors.New("coupon is not eligible for this order")
	// ErrPricingFailed — расчёт корзины завершился с ошибкой, оформление запрещено.
	ErrPricingFailed = errors.New("cart pricing carried an error")
	// ErrPickupNotEligible — заказ не удовлетворяет условиям выдачи на пункте.
	ErrPickupNotEligible = errors.New("order is not eligible for pickup extraction")

	// ErrGatewayUnavailable — временная ошибка платёжного шлюза, операцию можно повторить.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayDeclined — шлюз отклонил операцию.
	ErrGatewayDeclined = errors.New("payment gateway declined operation")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsBusinessFailure отличает бизнес-отказ от системного сбоя: такие ошибки
// возвращаются вызывающему как результат, а не откатываются с повтором.
func IsBusinessFailure(err error) bool {
	return errors.Is(err, ErrGoodsUnavailable) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrOutOfDeliveryRegion) ||
		errors.Is(err, ErrCouponIneligible) ||
		errors.Is(err, ErrPricingFailed)
}
