package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderPaid     EventType = "order.paid"
	EventTypeOrderRefunded EventType = "order.refunded"
	EventTypeOrderPicked   EventType = "order.picked_up"

	// Campaign события
	EventTypeCampaignCreated   EventType = "campaign.created"
	EventTypeCampaignSucceeded EventType = "campaign.succeeded"
	EventTypeCampaignFailed    EventType = "campaign.failed"
)

// Topics для Kafka
const (
	TopicOrderEvents    = "shop.order.events"
	TopicCampaignEvents = "shop.campaign.events"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType     EventType              `json:"event_type"`
	OrderID       string                 `json:"order_id"`
	OrderNo       string                 `json:"order_no"`
	UserID        string                 `json:"user_id"`
	OrderType     string                 `json:"order_type"`
	PayPriceMinor int64                  `json:"pay_price_minor"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// CampaignEvent представляет событие групповой акции
type CampaignEvent struct {
	EventType   EventType `json:"event_type"`
	CampaignID  string    `json:"campaign_id"`
	GoodsID     string    `json:"goods_id"`
	Status      string    `json:"status"`
	MemberCount int       `json:"member_count"`
	Required    int       `json:"required_members"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, orderNo, userID, orderType string, payPriceMinor int64) *OrderEvent {
	return &OrderEvent{
		EventType:     eventType,
		OrderID:       orderID,
		OrderNo:       orderNo,
		UserID:        userID,
		OrderType:     orderType,
		PayPriceMinor: payPriceMinor,
		Timestamp:     time.Now(),
	}
}

// NewCampaignEvent создает новое событие акции
func NewCampaignEvent(eventType EventType, campaignID, goodsID, status string, memberCount, required int) *CampaignEvent {
	return &CampaignEvent{
		EventType:   eventType,
		CampaignID:  campaignID,
		GoodsID:     goodsID,
		Status:      status,
		MemberCount: memberCount,
		Required:    required,
		Timestamp:   time.Now(),
	}
}
