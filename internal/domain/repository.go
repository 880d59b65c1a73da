package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями и адресным снимком одной
	// атомарной записью. Возвращает ошибку, если ID или OrderNo уже заняты.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// GetByNo возвращает заказ по внешнему номеру или ErrOrderNotFound.
	GetByNo(orderNo string) (Order, error)
	// ListByUser возвращает заказы пользователя с ограничением на количество.
	ListByUser(userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// ListFailedCampaignOrders выбирает оплаченные невозвращённые активные
	// заказы, чья акция находится в состоянии failed.
	ListFailedCampaignOrders(limit int) ([]Order, error)
	// MarkRefunded атомарно помечает заказ возвращённым и отменённым.
	// Повторный вызов возвращает ErrAlreadyRefunded.
	MarkRefunded(orderID string) error
}

// CampaignRepository описывает хранилище групповых акций.
type CampaignRepository interface {
	// Get возвращает акцию по идентификатору или ErrCampaignNotFound.
	Get(id string) (Campaign, error)
	// ListByStatus возвращает акции в указанном состоянии.
	ListByStatus(status CampaignStatus, limit int) ([]Campaign, error)
	// MarkFailed переводит pending-акцию в failed, а её оплаченные активные заказы —
	// в campaign_failed. Используется внешним планировщиком истечения;
	// терминальные состояния не перезаписываются.
	MarkFailed(id string) error
}

// PrepayRepository описывает хранилище платёжных намерений.
type PrepayRepository interface {
	// Create сохраняет новую запись намерения.
	Create(rec PrepayRecord) error
	// LatestByOrder возвращает последнюю запись по заказу и типу заказа
	// или ErrPrepayNotFound.
	LatestByOrder(orderID string, orderType OrderType) (PrepayRecord, error)
}
